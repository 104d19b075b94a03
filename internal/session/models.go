package session

import "time"

type Session struct {
	ID               string     `json:"id"`
	Code             string     `json:"code"`
	Status           string     `json:"status"`
	DestinationLat   *float64   `json:"destination_lat,omitempty"`
	DestinationLng   *float64   `json:"destination_lng,omitempty"`
	DestinationLabel *string    `json:"destination_label,omitempty"`
	DestinationSetAt *time.Time `json:"destination_set_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
}

func (s Session) HasDestination() bool {
	return s.DestinationLat != nil && s.DestinationLng != nil
}

type Participant struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	DeviceID    string    `json:"device_id"`
	DisplayName string    `json:"display_name"`
	Color       string    `json:"color"`
	JoinedAt    time.Time `json:"joined_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

type Roster struct {
	Session      Session       `json:"session"`
	Participants []Participant `json:"participants"`
}
