package presence

import "time"

type LocationUpdate struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Heading  *float64 `json:"heading,omitempty"`
	Speed    *float64 `json:"speed,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// SubmitResult distinguishes soft rejections (expected client behavior,
// retried on the next GPS tick) from hard errors.
type SubmitResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

const (
	ReasonLowAccuracy     = "LowAccuracy"
	ReasonImpossibleSpeed = "ImpossibleSpeed"
)

type Delay struct {
	Kind       string    `json:"kind"`
	Minutes    int       `json:"minutes"`
	ReportedAt time.Time `json:"reported_at"`
}

var delayKinds = map[string]struct{}{
	"traffic": {},
	"blocked": {},
	"slow":    {},
	"other":   {},
}

func ValidDelayKind(kind string) bool {
	_, ok := delayKinds[kind]
	return ok
}

type Position struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Heading   *float64  `json:"heading,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LiveParticipant struct {
	ParticipantID string    `json:"participant_id"`
	DeviceID      string    `json:"device_id"`
	DisplayName   string    `json:"display_name"`
	Color         string    `json:"color"`
	Position      *Position `json:"position,omitempty"`
	Delay         *Delay    `json:"delay,omitempty"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}

type event struct {
	Type          string   `json:"type"`
	ParticipantID string   `json:"participant_id"`
	DisplayName   string   `json:"display_name"`
	Color         string   `json:"color"`
	Lat           float64  `json:"lat,omitempty"`
	Lng           float64  `json:"lng,omitempty"`
	Heading       *float64 `json:"heading,omitempty"`
	Speed         *float64 `json:"speed,omitempty"`
	Delay         *Delay   `json:"delay,omitempty"`
}
