package models

// RiskLevel is the coarse risk classification of a project.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// DerivedMetrics are the dashboard summary metrics. They are recomputed on
// every render and never persisted.
type DerivedMetrics struct {
	SuccessfulAgents int       `json:"successfulAgents"`
	TotalAgents      int       `json:"totalAgents"`
	CompetitorCount  int       `json:"competitorCount"`
	MarketScore      int       `json:"marketScore"` // 1-10
	RiskLevel        RiskLevel `json:"riskLevel"`
}
