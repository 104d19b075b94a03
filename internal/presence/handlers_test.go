package presence

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

func TestLocationHandlerAccepted(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	expectTouch(mock)
	expectNoPrior(mock)
	expectUpsert(mock)

	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(mock, activeStub(), nil), deviceStub("device-1"))

	body, _ := json.Marshal(map[string]float64{"lat": 12.90, "lng": 77.60, "accuracy": 8})
	req := httptest.NewRequest(http.MethodPost, "/sessions/CODE11/location", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("location status: %v", err)
	}

	var result SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected accepted, got %+v", result)
	}
}

func TestLocationHandlerSoftRejectIsOK(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	expectTouch(mock)

	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(mock, activeStub(), nil), deviceStub("device-1"))

	body, _ := json.Marshal(map[string]float64{"lat": 12.90, "lng": 77.60, "accuracy": 250})
	req := httptest.NewRequest(http.MethodPost, "/sessions/CODE11/location", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("soft reject must still be 200: %v", err)
	}

	var result SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Accepted || result.Reason != ReasonLowAccuracy {
		t.Fatalf("expected LowAccuracy, got %+v", result)
	}
}

func TestLocationHandlerValidation(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(nil, activeStub(), nil), deviceStub("device-1"))

	req := httptest.NewRequest(http.MethodPost, "/sessions/CODE11/location", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for missing coords")
	}

	body, _ := json.Marshal(map[string]float64{"lat": 95.0, "lng": 77.6})
	req = httptest.NewRequest(http.MethodPost, "/sessions/CODE11/location", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for out-of-range lat")
	}
}

func TestLocationHandlerGone(t *testing.T) {
	sessions := &stubSessions{requireErr: session.ErrSessionNotActive}
	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(nil, sessions, nil), deviceStub("device-1"))

	body, _ := json.Marshal(map[string]float64{"lat": 12.90, "lng": 77.60})
	req := httptest.NewRequest(http.MethodPost, "/sessions/CODE11/location", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("expected gone, got %d", resp.StatusCode)
	}
}

func TestDelayHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`UPDATE presence`).
		WithArgs("p-1", "blocked", 15).
		WillReturnRows(pgxmock.NewRows([]string{"delay_reported_at"}).AddRow(time.Now()))

	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(mock, activeStub(), nil), deviceStub("device-1"))

	body, _ := json.Marshal(map[string]interface{}{"kind": "blocked", "minutes": 15})
	req := httptest.NewRequest(http.MethodPost, "/sessions/CODE11/delay", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("delay status: %v", err)
	}
}

func TestDelayHandlerBadKind(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(nil, activeStub(), nil), deviceStub("device-1"))

	body, _ := json.Marshal(map[string]interface{}{"kind": "weather", "minutes": 5})
	req := httptest.NewRequest(http.MethodPost, "/sessions/CODE11/delay", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for unknown kind")
	}
}

func TestDelayHandlerNoPresence(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`UPDATE presence`).
		WithArgs("p-1", "other", 0).
		WillReturnError(errQuery)

	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(mock, activeStub(), nil), deviceStub("device-1"))

	body, _ := json.Marshal(map[string]interface{}{"kind": "other"})
	req := httptest.NewRequest(http.MethodPost, "/sessions/CODE11/delay", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found, got %d", resp.StatusCode)
	}
}

func TestClearDelayHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE presence`).
		WithArgs("p-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(mock, activeStub(), nil), deviceStub("device-1"))

	req := httptest.NewRequest(http.MethodDelete, "/sessions/CODE11/delay", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear delay status: %v", err)
	}
}

func TestLiveHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	lat, lng := 12.90, 77.60
	updated := time.Now()
	mock.ExpectQuery(`LEFT JOIN presence`).
		WithArgs("sess-1").
		WillReturnRows(liveRows().
			AddRow("p-1", "device-1", "Al", "#e6194b", time.Now(),
				&lat, &lng, nil, nil, nil, nil, nil, nil, &updated))

	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(mock, activeStub(), nil), deviceStub("device-1"))

	req := httptest.NewRequest(http.MethodGet, "/sessions/CODE11/live", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("live status: %v", err)
	}

	var body struct {
		Participants []LiveParticipant `json:"participants"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Participants) != 1 || body.Participants[0].Position == nil {
		t.Fatalf("unexpected live payload: %+v", body)
	}
}
