package models

import (
	"time"
)

type Release struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	Version        string    `json:"version"`
	Notes          string    `json:"notes,omitempty"`
	ArtifactURL    string    `json:"artifact_url"`
	ArtifactSHA256 *string   `json:"artifact_sha256,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type CreateReleaseInput struct {
	UserID      int64
	Version     string
	ArtifactURL string
	Notes       string
}
