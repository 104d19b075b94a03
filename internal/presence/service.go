package presence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Ashborn-047/gather-waypoint/internal/db"
	"github.com/Ashborn-047/gather-waypoint/internal/session"
	"github.com/Ashborn-047/gather-waypoint/internal/shared/geo"
	"github.com/Ashborn-047/gather-waypoint/internal/stream"
)

const (
	maxAccuracyM   = 100.0
	maxSpeedMps    = 50.0
	livenessWindow = 60 * time.Second
	delayTTL       = 15 * time.Minute
)

var ErrNoPresenceRecord = errors.New("no presence record")

var nowFn = time.Now

// Sessions is the lifecycle gate plus the participant lookup the ingestion
// path needs. *session.Service satisfies it.
type Sessions interface {
	RequireActive(ctx context.Context, code string) (session.Session, error)
	ParticipantByDevice(ctx context.Context, sessionID, deviceID string) (session.Participant, error)
}

type Service struct {
	db       db.Querier
	sessions Sessions
	hub      *stream.Hub
}

func NewService(db db.Querier, sessions Sessions, hub *stream.Hub) *Service {
	return &Service{db: db, sessions: sessions, hub: hub}
}

// SubmitLocation runs the ingestion gate and, on acceptance, upserts the
// participant's single presence row. The delay annotation columns are never
// written here, so a declared delay survives position patches.
func (s *Service) SubmitLocation(ctx context.Context, code, deviceID string, in LocationUpdate) (SubmitResult, error) {
	sess, err := s.sessions.RequireActive(ctx, code)
	if err != nil {
		return SubmitResult{}, err
	}
	p, err := s.sessions.ParticipantByDevice(ctx, sess.ID, deviceID)
	if err != nil {
		return SubmitResult{}, err
	}

	// Last-seen means "device is alive and talking", so it is refreshed even
	// when the fix itself is rejected below.
	if _, err := s.db.Exec(ctx, `
		UPDATE participants SET last_seen_at=now() WHERE id=$1
	`, p.ID); err != nil {
		return SubmitResult{}, err
	}

	if in.Accuracy != nil && *in.Accuracy > maxAccuracyM {
		return SubmitResult{Accepted: false, Reason: ReasonLowAccuracy}, nil
	}

	var lastLat, lastLng float64
	var lastAt time.Time
	_ = s.db.QueryRow(ctx, `
		SELECT ST_Y(location::geometry), ST_X(location::geometry), updated_at
		FROM presence WHERE participant_id=$1
	`, p.ID).Scan(&lastLat, &lastLng, &lastAt)

	// Skipped when there is no prior baseline, which also covers a stored
	// null-island position.
	if lastLat != 0 || lastLng != 0 {
		elapsed := nowFn().Sub(lastAt).Seconds()
		if elapsed > 0 {
			dist := geo.DistanceMeters(lastLat, lastLng, in.Lat, in.Lng)
			if dist/elapsed > maxSpeedMps {
				return SubmitResult{Accepted: false, Reason: ReasonImpossibleSpeed}, nil
			}
		}
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO presence (participant_id, session_id, location, heading, speed, accuracy, updated_at)
		VALUES ($1,$2, ST_SetSRID(ST_MakePoint($3,$4), 4326)::geography, $5,$6,$7, now())
		ON CONFLICT (participant_id) DO UPDATE
		SET location=EXCLUDED.location, heading=EXCLUDED.heading, speed=EXCLUDED.speed,
		    accuracy=EXCLUDED.accuracy, updated_at=EXCLUDED.updated_at
	`, p.ID, sess.ID, in.Lng, in.Lat, in.Heading, in.Speed, in.Accuracy)
	if err != nil {
		return SubmitResult{}, err
	}

	s.broadcast(sess.ID, event{
		Type:          "location",
		ParticipantID: p.ID,
		DisplayName:   p.DisplayName,
		Color:         p.Color,
		Lat:           in.Lat,
		Lng:           in.Lng,
		Heading:       in.Heading,
		Speed:         in.Speed,
	})
	return SubmitResult{Accepted: true}, nil
}

// DeclareDelay replaces the presence row's delay annotation. The annotation
// is a social signal only and never feeds route or ETA computation.
func (s *Service) DeclareDelay(ctx context.Context, code, deviceID, kind string, minutes int) (Delay, error) {
	sess, err := s.sessions.RequireActive(ctx, code)
	if err != nil {
		return Delay{}, err
	}
	p, err := s.sessions.ParticipantByDevice(ctx, sess.ID, deviceID)
	if err != nil {
		return Delay{}, err
	}

	delay := Delay{Kind: kind, Minutes: minutes}
	row := s.db.QueryRow(ctx, `
		UPDATE presence
		SET delay_kind=$2, delay_minutes=$3, delay_reported_at=now()
		WHERE participant_id=$1
		RETURNING delay_reported_at
	`, p.ID, kind, minutes)
	if err := row.Scan(&delay.ReportedAt); err != nil {
		return Delay{}, ErrNoPresenceRecord
	}

	s.broadcast(sess.ID, event{
		Type:          "delay",
		ParticipantID: p.ID,
		DisplayName:   p.DisplayName,
		Color:         p.Color,
		Delay:         &delay,
	})
	return delay, nil
}

// ClearDelay is idempotent: clearing an absent annotation is a no-op.
func (s *Service) ClearDelay(ctx context.Context, code, deviceID string) error {
	sess, err := s.sessions.RequireActive(ctx, code)
	if err != nil {
		return err
	}
	p, err := s.sessions.ParticipantByDevice(ctx, sess.ID, deviceID)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		UPDATE presence
		SET delay_kind=NULL, delay_minutes=NULL, delay_reported_at=NULL
		WHERE participant_id=$1
	`, p.ID)
	if err != nil {
		return err
	}

	s.broadcast(sess.ID, event{
		Type:          "delay",
		ParticipantID: p.ID,
		DisplayName:   p.DisplayName,
		Color:         p.Color,
	})
	return nil
}

// LiveParticipants derives the "who is on the map" view. Liveness and delay
// expiry are evaluated here at read time; no write occurs.
func (s *Service) LiveParticipants(ctx context.Context, code string) ([]LiveParticipant, error) {
	sess, err := s.sessions.RequireActive(ctx, code)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.device_id, p.display_name, p.color, p.last_seen_at,
		       ST_Y(pr.location::geometry), ST_X(pr.location::geometry),
		       pr.heading, pr.speed, pr.accuracy,
		       pr.delay_kind, pr.delay_minutes, pr.delay_reported_at, pr.updated_at
		FROM participants p
		LEFT JOIN presence pr ON pr.participant_id = p.id
		WHERE p.session_id=$1
		ORDER BY p.joined_at
	`, sess.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := nowFn()
	var live []LiveParticipant
	for rows.Next() {
		var lp LiveParticipant
		var lat, lng *float64
		var heading, speed, accuracy *float64
		var delayKind *string
		var delayMinutes *int
		var delayReportedAt, updatedAt *time.Time
		if err := rows.Scan(&lp.ParticipantID, &lp.DeviceID, &lp.DisplayName, &lp.Color, &lp.LastSeenAt,
			&lat, &lng, &heading, &speed, &accuracy,
			&delayKind, &delayMinutes, &delayReportedAt, &updatedAt); err != nil {
			return nil, err
		}

		if now.Sub(lp.LastSeenAt) >= livenessWindow {
			continue
		}
		if lat != nil && lng != nil && updatedAt != nil {
			lp.Position = &Position{
				Lat: *lat, Lng: *lng,
				Heading: heading, Speed: speed, Accuracy: accuracy,
				UpdatedAt: *updatedAt,
			}
		}
		if delayKind != nil && delayMinutes != nil && delayReportedAt != nil &&
			now.Sub(*delayReportedAt) <= delayTTL {
			lp.Delay = &Delay{Kind: *delayKind, Minutes: *delayMinutes, ReportedAt: *delayReportedAt}
		}
		live = append(live, lp)
	}
	return live, nil
}

func (s *Service) broadcast(sessionID string, ev event) {
	if s.hub == nil {
		return
	}
	payload, _ := json.Marshal(ev)
	s.hub.Broadcast(sessionID, payload)
}
