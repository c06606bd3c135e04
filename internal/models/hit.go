package models

import (
	"time"
)

// RouteHit неизменяемая запись о переходе по короткой ссылке
type RouteHit struct {
	ID        int64     `json:"id"`
	RouteID   int64     `json:"route_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"ua"`
	Ref       string    `json:"ref"` // host?utm_... или сырой referrer
	CreatedAt time.Time `json:"ts"`
}

type HitStats struct {
	Slug       string `json:"slug"`
	TotalHits  int64  `json:"total_hits"`
	UniqueHits int64  `json:"unique_hits"`
}

type DailyHitStats struct {
	Date string `json:"date"`
	Hits int64  `json:"hits"`
}

// RefCount количество переходов с одинаковым сериализованным ref
type RefCount struct {
	Ref  string
	Hits int64
}

type ReferrerStats struct {
	Host      string `json:"host"`
	UTMSource string `json:"utm_source,omitempty"`
	Hits      int64  `json:"hits"`
}
