package models

import "time"

// UploadedFile is a validated file staged for the next submission.
type UploadedFile struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	MIMEType string    `json:"mimeType"`
	StagedAt time.Time `json:"stagedAt"`
}

// FileInfo represents metadata about a file held by the staging store.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "staged", "submitted"
}
