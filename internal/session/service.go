package session

import (
	"context"
	"errors"
	"time"

	"github.com/Ashborn-047/gather-waypoint/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const sessionTTL = 4 * time.Hour

var (
	ErrSessionNotActive = errors.New("session not active")
	ErrNotInSession     = errors.New("device not in session")
)

// markerPalette is cycled deterministically by join order so a participant's
// color is stable for the lifetime of the session.
var markerPalette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231",
	"#911eb4", "#42d4f4", "#f032e6", "#9a6324",
}

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

var newCodeFn = NewCode

func (s *Service) CreateSession(ctx context.Context, deviceID, displayName string) (Session, Participant, error) {
	var sess Session
	for attempt := 0; ; attempt++ {
		sess = Session{
			ID:     uuid.NewString(),
			Code:   newCodeFn(),
			Status: "active",
		}
		row := s.db.QueryRow(ctx, `
			INSERT INTO sessions (id, code, status, expires_at)
			VALUES ($1,$2,$3,$4)
			RETURNING created_at, expires_at
		`, sess.ID, sess.Code, sess.Status, time.Now().Add(sessionTTL))
		err := row.Scan(&sess.CreatedAt, &sess.ExpiresAt)
		if err == nil {
			break
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && attempt < 4 {
			continue // code collision, draw again
		}
		return Session{}, Participant{}, err
	}

	participant, err := s.addParticipant(ctx, sess.ID, deviceID, displayName)
	if err != nil {
		return Session{}, Participant{}, err
	}
	return sess, participant, nil
}

func (s *Service) Join(ctx context.Context, code, deviceID, displayName string) (Session, Participant, error) {
	sess, err := s.RequireActive(ctx, code)
	if err != nil {
		return Session{}, Participant{}, err
	}

	participant, err := s.addParticipant(ctx, sess.ID, deviceID, displayName)
	if err != nil {
		return Session{}, Participant{}, err
	}
	return sess, participant, nil
}

func (s *Service) addParticipant(ctx context.Context, sessionID, deviceID, displayName string) (Participant, error) {
	var joined int
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM participants WHERE session_id=$1
	`, sessionID).Scan(&joined); err != nil {
		return Participant{}, err
	}

	p := Participant{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		DeviceID:    deviceID,
		DisplayName: displayName,
		Color:       markerPalette[joined%len(markerPalette)],
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO participants (id, session_id, device_id, display_name, color)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (session_id, device_id) DO UPDATE SET display_name=EXCLUDED.display_name
		RETURNING id, color, joined_at, last_seen_at
	`, p.ID, p.SessionID, p.DeviceID, p.DisplayName, p.Color)
	if err := row.Scan(&p.ID, &p.Color, &p.JoinedAt, &p.LastSeenAt); err != nil {
		return Participant{}, err
	}
	return p, nil
}

func (s *Service) Leave(ctx context.Context, code, deviceID string) error {
	sess, err := s.RequireActive(ctx, code)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		DELETE FROM participants WHERE session_id=$1 AND device_id=$2
	`, sess.ID, deviceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotInSession
	}

	var remaining int
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM participants WHERE session_id=$1
	`, sess.ID).Scan(&remaining); err != nil {
		return err
	}
	if remaining == 0 {
		_, err = s.db.Exec(ctx, `UPDATE sessions SET status='ended' WHERE id=$1`, sess.ID)
		return err
	}
	return nil
}

func (s *Service) End(ctx context.Context, code, deviceID string) error {
	sess, err := s.RequireActive(ctx, code)
	if err != nil {
		return err
	}
	if _, err := s.ParticipantByDevice(ctx, sess.ID, deviceID); err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `UPDATE sessions SET status='ended' WHERE id=$1`, sess.ID)
	return err
}

// RequireActive is the lifecycle gate every presence and route operation
// passes through: the session must exist, be active, and not be past its
// expiry even if the background sweep has not caught it yet.
func (s *Service) RequireActive(ctx context.Context, code string) (Session, error) {
	sess, err := s.getByCode(ctx, code)
	if err != nil {
		return Session{}, ErrSessionNotActive
	}
	if sess.Status != "active" || time.Now().After(sess.ExpiresAt) {
		return Session{}, ErrSessionNotActive
	}
	return sess, nil
}

func (s *Service) GetRoster(ctx context.Context, code string) (Roster, error) {
	sess, err := s.getByCode(ctx, code)
	if err != nil {
		return Roster{}, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, device_id, display_name, color, joined_at, last_seen_at
		FROM participants WHERE session_id=$1
		ORDER BY joined_at
	`, sess.ID)
	if err != nil {
		return Roster{}, err
	}
	defer rows.Close()

	roster := Roster{Session: sess}
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.DeviceID, &p.DisplayName, &p.Color, &p.JoinedAt, &p.LastSeenAt); err != nil {
			return Roster{}, err
		}
		roster.Participants = append(roster.Participants, p)
	}
	return roster, nil
}

func (s *Service) ParticipantByDevice(ctx context.Context, sessionID, deviceID string) (Participant, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, session_id, device_id, display_name, color, joined_at, last_seen_at
		FROM participants WHERE session_id=$1 AND device_id=$2
	`, sessionID, deviceID)
	var p Participant
	if err := row.Scan(&p.ID, &p.SessionID, &p.DeviceID, &p.DisplayName, &p.Color, &p.JoinedAt, &p.LastSeenAt); err != nil {
		return Participant{}, ErrNotInSession
	}
	return p, nil
}

// SetDestination replaces the shared destination and hard-invalidates every
// cached route in the session: the old geometry points at the wrong target,
// so it is deleted outright rather than marked stale.
func (s *Service) SetDestination(ctx context.Context, code, deviceID string, lat, lng float64, label string) (Session, error) {
	sess, err := s.RequireActive(ctx, code)
	if err != nil {
		return Session{}, err
	}
	if _, err := s.ParticipantByDevice(ctx, sess.ID, deviceID); err != nil {
		return Session{}, err
	}

	_, err = s.db.Exec(ctx, `
		UPDATE sessions
		SET destination=ST_SetSRID(ST_MakePoint($2,$3), 4326)::geography,
		    destination_label=$4, destination_set_at=now()
		WHERE id=$1
	`, sess.ID, lng, lat, label)
	if err != nil {
		return Session{}, err
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM routes WHERE session_id=$1`, sess.ID); err != nil {
		return Session{}, err
	}
	return s.getByCode(ctx, code)
}

func (s *Service) ClearDestination(ctx context.Context, code, deviceID string) (Session, error) {
	sess, err := s.RequireActive(ctx, code)
	if err != nil {
		return Session{}, err
	}
	if _, err := s.ParticipantByDevice(ctx, sess.ID, deviceID); err != nil {
		return Session{}, err
	}

	_, err = s.db.Exec(ctx, `
		UPDATE sessions
		SET destination=NULL, destination_label=NULL, destination_set_at=NULL
		WHERE id=$1
	`, sess.ID)
	if err != nil {
		return Session{}, err
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM routes WHERE session_id=$1`, sess.ID); err != nil {
		return Session{}, err
	}
	return s.getByCode(ctx, code)
}

func (s *Service) getByCode(ctx context.Context, code string) (Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, code, status,
		       ST_Y(destination::geometry), ST_X(destination::geometry),
		       destination_label, destination_set_at, created_at, expires_at
		FROM sessions WHERE code=$1
	`, code)
	var sess Session
	if err := row.Scan(&sess.ID, &sess.Code, &sess.Status,
		&sess.DestinationLat, &sess.DestinationLng,
		&sess.DestinationLabel, &sess.DestinationSetAt,
		&sess.CreatedAt, &sess.ExpiresAt); err != nil {
		return Session{}, err
	}
	return sess, nil
}
