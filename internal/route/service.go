package route

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ashborn-047/gather-waypoint/internal/db"
	"github.com/Ashborn-047/gather-waypoint/internal/routing"
	"github.com/Ashborn-047/gather-waypoint/internal/session"
	"github.com/Ashborn-047/gather-waypoint/internal/shared/geo"
)

const (
	maxRouteAge = 5 * time.Minute
	maxDriftM   = 500.0
)

var (
	ErrNoDestination = errors.New("session has no destination")
	ErrNoOrigin      = errors.New("no presence record for origin")
	ErrEngine        = errors.New("route computation failed")
)

var nowFn = time.Now

type Sessions interface {
	RequireActive(ctx context.Context, code string) (session.Session, error)
	ParticipantByDevice(ctx context.Context, sessionID, deviceID string) (session.Participant, error)
}

type Router interface {
	Route(ctx context.Context, originLat, originLng, destLat, destLng float64) (routing.Route, error)
}

type Service struct {
	db       db.Querier
	sessions Sessions
	router   Router
}

func NewService(db db.Querier, sessions Sessions, router Router) *Service {
	return &Service{db: db, sessions: sessions, router: router}
}

// Recompute calls the external engine and, only on success, upserts the
// participant's single cached route. Any engine failure leaves the cache
// untouched: a stale route is preferred over no route.
func (s *Service) Recompute(ctx context.Context, code, deviceID string, originLat, originLng *float64) (Route, error) {
	sess, err := s.sessions.RequireActive(ctx, code)
	if err != nil {
		return Route{}, err
	}
	if !sess.HasDestination() {
		return Route{}, ErrNoDestination
	}
	p, err := s.sessions.ParticipantByDevice(ctx, sess.ID, deviceID)
	if err != nil {
		return Route{}, err
	}

	var oLat, oLng float64
	if originLat != nil && originLng != nil {
		oLat, oLng = *originLat, *originLng
	} else {
		row := s.db.QueryRow(ctx, `
			SELECT ST_Y(location::geometry), ST_X(location::geometry)
			FROM presence WHERE participant_id=$1
		`, p.ID)
		if err := row.Scan(&oLat, &oLng); err != nil {
			return Route{}, ErrNoOrigin
		}
	}

	computed, err := s.router.Route(ctx, oLat, oLng, *sess.DestinationLat, *sess.DestinationLng)
	if err != nil {
		return Route{}, fmt.Errorf("%w: %v", ErrEngine, err)
	}

	r := Route{
		ParticipantID: p.ID,
		SessionID:     sess.ID,
		Geometry:      computed.Geometry,
		DistanceM:     computed.DistanceM,
		DurationS:     computed.DurationS,
		OriginLat:     oLat,
		OriginLng:     oLng,
		DestLat:       *sess.DestinationLat,
		DestLng:       *sess.DestinationLng,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO routes (participant_id, session_id, geometry, distance_m, duration_s, origin, dest_lat, dest_lng, computed_at)
		VALUES ($1,$2,$3,$4,$5, ST_SetSRID(ST_MakePoint($6,$7), 4326)::geography, $8,$9, now())
		ON CONFLICT (participant_id) DO UPDATE
		SET geometry=EXCLUDED.geometry, distance_m=EXCLUDED.distance_m,
		    duration_s=EXCLUDED.duration_s, origin=EXCLUDED.origin,
		    dest_lat=EXCLUDED.dest_lat, dest_lng=EXCLUDED.dest_lng,
		    computed_at=EXCLUDED.computed_at
		RETURNING computed_at
	`, r.ParticipantID, r.SessionID, r.Geometry, r.DistanceM, r.DurationS,
		r.OriginLng, r.OriginLat, r.DestLat, r.DestLng)
	if err := row.Scan(&r.ComputedAt); err != nil {
		return Route{}, err
	}
	return r, nil
}

// ETAs serves every cached route for the session with its staleness computed
// at read time. Stale routes are returned, not withheld; recomputation is the
// caller's decision, signalled via the flags.
func (s *Service) ETAs(ctx context.Context, code string) (ETAList, error) {
	sess, err := s.sessions.RequireActive(ctx, code)
	if err != nil {
		return ETAList{}, err
	}
	if !sess.HasDestination() {
		return ETAList{HasDestination: false}, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT r.participant_id, r.geometry, r.distance_m, r.duration_s,
		       ST_Y(r.origin::geometry), ST_X(r.origin::geometry),
		       r.dest_lat, r.dest_lng, r.computed_at,
		       ST_Y(pr.location::geometry), ST_X(pr.location::geometry)
		FROM routes r
		LEFT JOIN presence pr ON pr.participant_id = r.participant_id
		WHERE r.session_id=$1
	`, sess.ID)
	if err != nil {
		return ETAList{}, err
	}
	defer rows.Close()

	now := nowFn()
	list := ETAList{HasDestination: true}
	for rows.Next() {
		var eta ETA
		var originLat, originLng, destLat, destLng float64
		var liveLat, liveLng *float64
		if err := rows.Scan(&eta.ParticipantID, &eta.Geometry, &eta.DistanceM, &eta.EtaSeconds,
			&originLat, &originLng, &destLat, &destLng, &eta.ComputedAt,
			&liveLat, &liveLng); err != nil {
			return ETAList{}, err
		}

		if now.Sub(eta.ComputedAt) > maxRouteAge {
			eta.IsStale = true
		}
		if liveLat != nil && liveLng != nil {
			if geo.DistanceMeters(originLat, originLng, *liveLat, *liveLng) > maxDriftM {
				eta.IsStale = true
			}
		}
		eta.NeedsRecompute = eta.IsStale ||
			destLat != *sess.DestinationLat || destLng != *sess.DestinationLng

		list.Routes = append(list.Routes, eta)
	}
	return list, nil
}
