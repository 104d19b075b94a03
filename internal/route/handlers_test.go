package route

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Ashborn-047/gather-waypoint/internal/routing"
	"github.com/Ashborn-047/gather-waypoint/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func deviceStub(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("device_id", id)
		return c.Next()
	}
}

func TestETAsHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM routes r`).
		WithArgs("sess-1").
		WillReturnRows(etaRows().
			AddRow("p-1", "geom", 4200.0, 600.0, 12.90, 77.60, 12.95, 77.64, time.Now(), nil, nil))

	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(mock, withDestination(), &stubRouter{}), deviceStub("device-1"))

	req := httptest.NewRequest(http.MethodGet, "/sessions/CODE11/etas", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("etas status: %v", err)
	}

	var list ETAList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !list.HasDestination || len(list.Routes) != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestETAsHandlerGone(t *testing.T) {
	sessions := withDestination()
	sessions.requireErr = session.ErrSessionNotActive

	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(nil, sessions, &stubRouter{}), deviceStub("device-1"))

	req := httptest.NewRequest(http.MethodGet, "/sessions/CODE11/etas", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("expected gone, got %d", resp.StatusCode)
	}
}

func TestRecomputeHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO routes`).
		WithArgs("p-1", "sess-1", "geom", 4200.0, 600.0, 77.60, 12.90, 12.95, 77.64).
		WillReturnRows(pgxmock.NewRows([]string{"computed_at"}).AddRow(time.Now()))

	router := &stubRouter{route: routing.Route{Geometry: "geom", DistanceM: 4200, DurationS: 600}}
	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(mock, withDestination(), router), deviceStub("device-1"))

	body, _ := json.Marshal(map[string]float64{"origin_lat": 12.90, "origin_lng": 77.60})
	req := httptest.NewRequest(http.MethodPost, "/sessions/CODE11/routes/recompute", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("recompute status: %v", err)
	}

	var r Route
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Geometry != "geom" {
		t.Fatalf("unexpected route: %+v", r)
	}
}

func TestRecomputeHandlerNoDestination(t *testing.T) {
	sessions := withDestination()
	sessions.sess.DestinationLat = nil
	sessions.sess.DestinationLng = nil

	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(nil, sessions, &stubRouter{}), deviceStub("device-1"))

	req := httptest.NewRequest(http.MethodPost, "/sessions/CODE11/routes/recompute", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict, got %d", resp.StatusCode)
	}
}

func TestRecomputeHandlerEngineDown(t *testing.T) {
	router := &stubRouter{err: errors.New("engine unreachable")}
	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(nil, withDestination(), router), deviceStub("device-1"))

	body, _ := json.Marshal(map[string]float64{"origin_lat": 12.90, "origin_lng": 77.60})
	req := httptest.NewRequest(http.MethodPost, "/sessions/CODE11/routes/recompute", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected bad gateway, got %d", resp.StatusCode)
	}
}

func TestRecomputeHandlerNoOrigin(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM presence WHERE participant_id`).
		WithArgs("p-1").
		WillReturnError(errQuery)

	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(mock, withDestination(), &stubRouter{}), deviceStub("device-1"))

	req := httptest.NewRequest(http.MethodPost, "/sessions/CODE11/routes/recompute", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found, got %d", resp.StatusCode)
	}
}
