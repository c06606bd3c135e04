package models

import (
	"time"
)

type Route struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Slug      string    `json:"slug"`
	TargetURL string    `json:"target_url"`
	ReleaseID *int64    `json:"release_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateRouteInput struct {
	UserID    int64
	Slug      string
	TargetURL string
	ReleaseID *int64
}
