package route

import "time"

type Route struct {
	ParticipantID string    `json:"participant_id"`
	SessionID     string    `json:"session_id"`
	Geometry      string    `json:"geometry"`
	DistanceM     float64   `json:"distance_m"`
	DurationS     float64   `json:"duration_s"`
	OriginLat     float64   `json:"origin_lat"`
	OriginLng     float64   `json:"origin_lng"`
	DestLat       float64   `json:"dest_lat"`
	DestLng       float64   `json:"dest_lng"`
	ComputedAt    time.Time `json:"computed_at"`
}

type ETA struct {
	ParticipantID  string    `json:"participant_id"`
	Geometry       string    `json:"geometry"`
	DistanceM      float64   `json:"distance_m"`
	EtaSeconds     float64   `json:"eta_s"`
	IsStale        bool      `json:"is_stale"`
	NeedsRecompute bool      `json:"needs_recompute"`
	ComputedAt     time.Time `json:"computed_at"`
}

type ETAList struct {
	HasDestination bool  `json:"has_destination"`
	Routes         []ETA `json:"routes"`
}
