package render

import (
	"html/template"
	"strings"
)

var funcs = template.FuncMap{
	"join":  strings.Join,
	"lower": strings.ToLower,
}

var templates = template.Must(template.New("render").Funcs(funcs).Parse(`
{{define "placeholder"}}<div class="placeholder"><p>{{.Title}} is not available for this run.</p></div>{{end}}

{{define "overview"}}<div class="overview">
  <dl class="process-info">
    <dt>Status</dt><dd class="status status-{{lower .Status}}">{{.Status}}</dd>
    <dt>Started</dt><dd>{{.Start}}</dd>
    <dt>Finished</dt><dd>{{.End}}</dd>
    <dt>Duration</dt><dd>{{.Duration}}</dd>
    <dt>Agents</dt><dd>{{.Succeeded}} succeeded, {{.Failed}} failed of {{.Total}}</dd>
  </dl>
  {{if .Error}}<p class="process-error">{{.Error}}</p>{{end}}
  {{if .Agents}}<table class="agents">
    <thead><tr><th>Agent</th><th>Status</th></tr></thead>
    <tbody>{{range .Agents}}<tr class="{{if .Success}}ok{{else}}failed{{end}}"><td>{{.Name}}</td><td>{{.Status}}</td></tr>{{end}}</tbody>
  </table>{{end}}
</div>{{end}}

{{define "blueprint"}}<div class="blueprint">
  {{if .Text}}<div class="blueprint-text">{{.Text}}</div>{{end}}
  <div class="architecture architecture-{{.Arch.Kind}}">
    <h3>Architecture</h3>
    {{- if eq (print .Arch.Kind) "diagram"}}<pre class="diagram">{{.Arch.Diagram}}</pre>
    {{- else if eq (print .Arch.Kind) "image"}}{{if .Image}}<img class="architecture-image" src="{{.Image}}" alt="Architecture diagram">{{else}}<p class="placeholder">Architecture image could not be displayed.</p>{{end}}
    {{- else if eq (print .Arch.Kind) "description"}}<div class="architecture-description">{{.Description}}</div>
    {{- else}}<p class="placeholder">No architecture representation was produced.</p>{{end}}
    {{if .Arch.Note}}<p class="note">{{.Arch.Note}}</p>{{end}}
    {{if .Layers}}<div class="layers">{{range .Layers}}<div class="layer"><h4>{{.Name}}</h4><ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul></div>{{end}}</div>{{end}}
  </div>
</div>{{end}}

{{define "market"}}<div class="market">
  <div class="market-stats">
    <div class="stat"><span class="value">{{.Total}}</span><span class="label">Projects found</span></div>
    <div class="stat"><span class="value">{{.Languages}}</span><span class="label">Languages</span></div>
    <div class="stat"><span class="value">{{.AvgStars}}</span><span class="label">Average stars</span></div>
  </div>
  {{if .HasProjects}}<div class="project-cards">
    {{range .Cards}}<div class="project-card">
      <h4>{{if .URL}}<a href="{{.URL}}" target="_blank" rel="noopener">{{.Name}}</a>{{else}}{{.Name}}{{end}}</h4>
      {{if .Description}}<p>{{.Description}}</p>{{end}}
      <ul class="project-meta">
        <li>Language: {{.LanguageLabel}}</li>
        <li>Stars: {{.Stars}}</li>
        <li>Forks: {{.Forks}}</li>
        <li>License: {{.LicenseLabel}}</li>
        <li>Updated: {{.Updated}}</li>
      </ul>
      {{if .Topics}}<p class="topics">{{join .Topics ", "}}</p>{{end}}
    </div>{{end}}
  </div>
  {{if lt .Shown .Total}}<p class="more">Showing {{.Shown}} of {{.Total}} projects.</p>{{end}}
  {{else}}<p class="placeholder">No comparable projects were found.</p>{{end}}
  {{if .Analysis}}<div class="market-analysis"><h3>Analysis</h3>{{.Analysis}}</div>{{end}}
  {{if .Papers}}<div class="papers"><h3>Research papers</h3><ul>{{range .Papers}}<li>{{if .URL}}<a href="{{.URL}}" target="_blank" rel="noopener">{{.Title}}</a>{{else}}{{.Title}}{{end}}{{if .Meta}} <span class="meta">{{.Meta}}</span>{{end}}</li>{{end}}</ul></div>{{end}}
  {{if .Keywords}}<p class="keywords">Keywords: {{join .Keywords ", "}}</p>{{end}}
</div>{{end}}

{{define "components"}}<div class="components">
  {{range .Components}}<div class="component"><h3>{{.Name}}</h3><div class="component-body">{{.Body}}</div></div>
  {{else}}<p class="placeholder">No {{lower .Heading}} were produced.</p>{{end}}
</div>{{end}}

{{define "synthesis"}}<div class="synthesis">
  {{if .Summary}}<div class="executive-summary"><h3>Executive summary</h3>{{.Summary}}</div>{{end}}
  {{if .Sections}}<ul class="report-sections">{{range .Sections}}<li>{{.}}</li>{{end}}</ul>{{end}}
  {{if .Report}}<div class="full-report">{{.Report}}</div>{{end}}
</div>{{end}}

{{define "action_plan"}}<div class="action-plan">
  {{if .Weeks}}<p class="timeline">Timeline: {{.Weeks}}</p>{{end}}
  {{if .Plan}}<div class="plan">{{.Plan}}</div>{{else}}<p class="placeholder">No plan text was produced.</p>{{end}}
</div>{{end}}

{{define "dashboard"}}<div class="dashboard">
  <div class="metric-tiles">
    <div class="tile"><span class="value">{{.Metrics.SuccessfulAgents}}/{{.Metrics.TotalAgents}}</span><span class="label">Agents succeeded</span></div>
    <div class="tile"><span class="value">{{.Metrics.CompetitorCount}}</span><span class="label">Competitors</span></div>
    <div class="tile"><span class="value">{{.Metrics.MarketScore}}/10</span><span class="label">Market opportunity</span></div>
    <div class="tile risk-{{lower (print .Metrics.RiskLevel)}}"><span class="value">{{.Metrics.RiskLevel}}</span><span class="label">Risk level</span></div>
  </div>
  <div class="insights"><h3>Key insights</h3><ul>{{range .Insights}}<li>{{.}}</li>{{end}}</ul></div>
  <div class="priority-actions"><h3>Priority actions</h3><ol>{{range .Actions}}<li>{{.}}</li>{{end}}</ol></div>
  <div class="charts" data-charts="{{.ChartsJSON}}"></div>
  {{if .Summary}}<div class="dashboard-summary">{{.Summary}}</div>{{end}}
</div>{{end}}

{{define "diagnostic"}}<div class="diagnostic">
  <h3>The dashboard could not be generated</h3>
  <p class="diagnostic-error">{{.Message}}</p>
  <details><summary>Raw payload</summary><pre>{{.Payload}}</pre></details>
</div>{{end}}

{{define "page"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1d2330}
header{padding:1rem 2rem;background:#1d2330;color:#fff}
nav{display:flex;gap:.25rem;padding:0 2rem;background:#fff;border-bottom:1px solid #dde1e7}
nav a{padding:.75rem 1rem;text-decoration:none;color:inherit}
nav a.unavailable{color:#9aa3b2}
section{padding:1.5rem 2rem;background:#fff;margin:1rem 2rem;border-radius:6px}
.placeholder{color:#6b7385;font-style:italic}
.diagnostic pre,.diagram{background:#f0f2f5;padding:1rem;overflow:auto}
.metric-tiles,.market-stats{display:flex;gap:1rem}
.tile,.stat{flex:1;padding:1rem;border:1px solid #dde1e7;border-radius:6px}
.value{display:block;font-size:1.5rem;font-weight:600}
.project-cards{display:grid;grid-template-columns:repeat(auto-fill,minmax(240px,1fr));gap:1rem}
.project-card{border:1px solid #dde1e7;border-radius:6px;padding:1rem}
</style>
</head>
<body>
<header><h1>{{.Title}}</h1>{{if .Metrics}}<p>Market score {{.Metrics.MarketScore}}/10 · Risk {{.Metrics.RiskLevel}}</p>{{end}}</header>
<nav>{{range .Sections}}<a href="#{{.ID}}"{{if not .Available}} class="unavailable"{{end}}>{{.Title}}</a>{{end}}</nav>
{{range .Sections}}<section id="{{.ID}}"><h2>{{.Title}}</h2>{{.HTML}}</section>
{{end}}
</body>
</html>{{end}}
`))
