package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/seat-holds-and-sales/internal/config"
	"github.com/robertarktes/seat-holds-and-sales/internal/coordinator"
	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/events"
	"github.com/robertarktes/seat-holds-and-sales/internal/lock"
	"github.com/robertarktes/seat-holds-and-sales/internal/memstore"
	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
	"github.com/robertarktes/seat-holds-and-sales/internal/ratelimit"
	"github.com/robertarktes/seat-holds-and-sales/internal/ws"
)

func setupRouter(t *testing.T, adminToken string) (http.Handler, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	hub := events.NewHub()
	logger := observability.NewLogger()
	cfg := &config.Config{
		AdminToken: adminToken,
		HoldTTL:    2 * time.Minute,
		TierPrices: config.ParseTierPrices(""),
	}
	coord := coordinator.New(st, lock.Noop{}, hub, cfg, logger)
	h := NewHandlers(cfg, coord, nil, logger)
	return SetupRouter(h, ws.NewHandler(hub, logger), logger, ratelimit.New(nil)), st
}

func seedSeat(st *memstore.Store, id string, floor int, status domain.SeatStatus, tier string, price int64) {
	now := time.Now().UTC()
	st.SeedSeats(domain.Seat{
		SeatID:    id,
		Floor:     floor,
		GridRow:   1,
		GridCol:   1,
		Zone:      "main",
		Tier:      tier,
		Price:     price,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

type holdResponse struct {
	Held      []string `json:"held"`
	Refreshed []string `json:"refreshed"`
	Conflicts []string `json:"conflicts"`
	ExpiresAt *string  `json:"expires_at"`
}

func TestCreateHoldEndpoint(t *testing.T) {
	router, st := setupRouter(t, "")
	seedSeat(st, "S1", 1, domain.SeatAvailable, "A", 1280)
	seedSeat(st, "S2", 1, domain.SeatAvailable, "A", 1280)

	rec := doJSON(t, router, http.MethodPost, "/v1/holds",
		map[string]interface{}{"holder_id": "h1", "seat_ids": []string{"S1", "S2", "S9"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp holdResponse
	decode(t, rec, &resp)
	assert.Equal(t, []string{"S1", "S2"}, resp.Held)
	assert.Empty(t, resp.Refreshed)
	assert.Equal(t, []string{"S9"}, resp.Conflicts)
	require.NotNil(t, resp.ExpiresAt)
	_, err := time.Parse(time.RFC3339, *resp.ExpiresAt)
	assert.NoError(t, err)

	seat, _ := st.Seat("S1")
	assert.Equal(t, domain.SeatHold, seat.Status)
}

func TestCreateHoldRejectsBadJSON(t *testing.T) {
	router, _ := setupRouter(t, "")
	req := httptest.NewRequest(http.MethodPost, "/v1/holds", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReleaseEndpointEmptyVersusAbsent(t *testing.T) {
	router, st := setupRouter(t, "")
	seedSeat(st, "S1", 1, domain.SeatAvailable, "A", 1280)
	seedSeat(st, "S2", 1, domain.SeatAvailable, "A", 1280)
	now := time.Now().UTC()
	st.SeedHold(domain.NewHold("S1", "h1", now, time.Minute))
	st.SeedHold(domain.NewHold("S2", "h1", now, time.Minute))

	// Explicit empty list: release nothing.
	rec := doJSON(t, router, http.MethodPost, "/v1/releases",
		map[string]interface{}{"holder_id": "h1", "seat_ids": []string{}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Released []string `json:"released"`
	}
	decode(t, rec, &resp)
	assert.Empty(t, resp.Released)
	assert.Equal(t, 2, st.HoldCount())

	// Absent seat_ids: release all of the holder's seats.
	rec = doJSON(t, router, http.MethodPost, "/v1/releases",
		map[string]interface{}{"holder_id": "h1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Equal(t, []string{"S1", "S2"}, resp.Released)
	assert.Equal(t, 0, st.HoldCount())
}

func TestConfirmEndpoint(t *testing.T) {
	router, st := setupRouter(t, "")
	seedSeat(st, "S1", 1, domain.SeatAvailable, "A", 1280)
	st.SeedHold(domain.NewHold("S1", "h1", time.Now().UTC(), time.Minute))

	rec := doJSON(t, router, http.MethodPost, "/v1/purchases",
		map[string]interface{}{"request_id": "rq-1", "holder_id": "h1", "seat_ids": []string{"S1"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Confirmed []string `json:"confirmed"`
		Skipped   []string `json:"skipped"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, []string{"S1"}, resp.Confirmed)
	assert.Empty(t, resp.Skipped)

	seat, _ := st.Seat("S1")
	assert.Equal(t, domain.SeatSold, seat.Status)
}

func TestConfirmEndpointValidation(t *testing.T) {
	router, _ := setupRouter(t, "")

	rec := doJSON(t, router, http.MethodPost, "/v1/purchases",
		map[string]interface{}{"holder_id": "h1", "seat_ids": []string{"S1"}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/purchases",
		map[string]interface{}{"request_id": "rq-1", "holder_id": "h1", "seat_ids": []string{}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmEndpointIdempotencyMismatch(t *testing.T) {
	router, st := setupRouter(t, "")
	seedSeat(st, "S1", 1, domain.SeatAvailable, "A", 1280)
	st.SeedHold(domain.NewHold("S1", "h1", time.Now().UTC(), time.Minute))

	rec := doJSON(t, router, http.MethodPost, "/v1/purchases",
		map[string]interface{}{"request_id": "rq-1", "holder_id": "h1", "seat_ids": []string{"S1"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/purchases",
		map[string]interface{}{"request_id": "rq-1", "holder_id": "h2", "seat_ids": []string{"S1"}}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListSeatsEndpoint(t *testing.T) {
	router, st := setupRouter(t, "")
	seedSeat(st, "S1", 1, domain.SeatAvailable, "A", 1280)
	seedSeat(st, "S2", 2, domain.SeatAvailable, "B", 880)
	st.SeedHold(domain.NewHold("S1", "h1", time.Now().UTC(), time.Minute))

	rec := doJSON(t, router, http.MethodGet, "/v1/seats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Floor       int        `json:"floor"`
		Seats       []seatView `json:"seats"`
		GeneratedAt string     `json:"generated_at"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 1, resp.Floor)
	require.Len(t, resp.Seats, 1)
	assert.Equal(t, "S1", resp.Seats[0].SeatID)
	assert.Equal(t, "HOLD", resp.Seats[0].Status)
	require.NotNil(t, resp.Seats[0].Hold)
	assert.Equal(t, "h1", resp.Seats[0].Hold.HolderID)
	_, err := time.Parse(time.RFC3339, resp.GeneratedAt)
	assert.NoError(t, err)

	rec = doJSON(t, router, http.MethodGet, "/v1/seats?floor=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Equal(t, 2, resp.Floor)
	require.Len(t, resp.Seats, 1)
	assert.Equal(t, "S2", resp.Seats[0].SeatID)
	assert.Nil(t, resp.Seats[0].Hold)

	rec = doJSON(t, router, http.MethodGet, "/v1/seats?floor=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/seats?floor=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	router, st := setupRouter(t, "")
	seedSeat(st, "S1", 1, domain.SeatSold, "VIP", 1680)
	seedSeat(st, "S2", 1, domain.SeatAvailable, "VIP", 1680)
	seedSeat(st, "S3", 1, domain.SeatSold, "A", 1280)

	rec := doJSON(t, router, http.MethodGet, "/v1/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Totals  map[string]int  `json:"totals"`
		PerTier []tierStatsView `json:"per_tier"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 2, resp.Totals["SOLD"])
	assert.Equal(t, 1, resp.Totals["AVAILABLE"])
	require.Len(t, resp.PerTier, 2)
	assert.Equal(t, "VIP", resp.PerTier[0].Tier)
	assert.Equal(t, int64(1680), resp.PerTier[0].Revenue)
	assert.Equal(t, "A", resp.PerTier[1].Tier)
	assert.Equal(t, int64(1280), resp.PerTier[1].Revenue)
}

func TestAdminTokenRequired(t *testing.T) {
	router, st := setupRouter(t, "secret")
	seedSeat(st, "S1", 1, domain.SeatAvailable, "A", 1280)

	body := map[string]interface{}{"price": 500}

	rec := doJSON(t, router, http.MethodPatch, "/v1/admin/seats/S1", body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/v1/admin/seats/S1", body,
		map[string]string{"X-Admin-Token": "wrong"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/v1/admin/seats/S1", body,
		map[string]string{"X-Admin-Token": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminTokenUnconfigured(t *testing.T) {
	router, st := setupRouter(t, "")
	seedSeat(st, "S1", 1, domain.SeatAvailable, "A", 1280)

	body := map[string]interface{}{"price": 500}

	rec := doJSON(t, router, http.MethodPatch, "/v1/admin/seats/S1", body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Without a configured token any non-empty header passes.
	rec = doJSON(t, router, http.MethodPatch, "/v1/admin/seats/S1", body,
		map[string]string{"X-Admin-Token": "anything"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Token": "t"}
}

func TestAdminUpdateSeatEndpoint(t *testing.T) {
	router, st := setupRouter(t, "")
	seedSeat(st, "S1", 1, domain.SeatAvailable, "A", 1280)

	rec := doJSON(t, router, http.MethodPatch, "/v1/admin/seats/S1",
		map[string]interface{}{"status": "BLOCKED"}, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	var view seatView
	decode(t, rec, &view)
	assert.Equal(t, "BLOCKED", view.Status)

	// A no-op update still returns the current seat.
	rec = doJSON(t, router, http.MethodPatch, "/v1/admin/seats/S1",
		map[string]interface{}{}, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Equal(t, "S1", view.SeatID)
	assert.Equal(t, "BLOCKED", view.Status)

	rec = doJSON(t, router, http.MethodPatch, "/v1/admin/seats/S9",
		map[string]interface{}{"price": 1}, adminHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/v1/admin/seats/S1",
		map[string]interface{}{"status": "PENDING"}, adminHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminBulkUpdateEndpoint(t *testing.T) {
	router, st := setupRouter(t, "")
	seedSeat(st, "S1", 1, domain.SeatAvailable, "A", 1280)

	rec := doJSON(t, router, http.MethodPost, "/v1/admin/seats/bulk",
		map[string]interface{}{"seat_ids": []string{}, "price": 700}, adminHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/admin/seats/bulk",
		map[string]interface{}{"seat_ids": []string{"S1"}}, adminHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/admin/seats/bulk",
		map[string]interface{}{"seat_ids": []string{"S1", "S9"}, "price": 700}, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Updated []seatView `json:"updated"`
		Missing []string   `json:"missing"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Updated, 1)
	assert.Equal(t, "S1", resp.Updated[0].SeatID)
	assert.Equal(t, int64(700), resp.Updated[0].Price)
	assert.Equal(t, []string{"S9"}, resp.Missing)
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := setupRouter(t, "")

	rec := doJSON(t, router, http.MethodGet, "/v1/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/v1/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ready", rec.Body.String())
}
