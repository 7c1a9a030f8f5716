package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robertarktes/seat-holds-and-sales/internal/adapters/mongo"
	"github.com/robertarktes/seat-holds-and-sales/internal/config"
	"github.com/robertarktes/seat-holds-and-sales/internal/coordinator"
	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
)

type Handlers struct {
	cfg    *config.Config
	coord  *coordinator.Coordinator
	audit  *mongo.AuditLogger
	logger observability.Logger
}

// NewHandlers wires the HTTP surface. audit may be nil when no Mongo is
// configured.
func NewHandlers(cfg *config.Config, coord *coordinator.Coordinator, audit *mongo.AuditLogger, logger observability.Logger) *Handlers {
	return &Handlers{
		cfg:    cfg,
		coord:  coord,
		audit:  audit,
		logger: logger,
	}
}

type holdView struct {
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type seatView struct {
	SeatID    string    `json:"seat_id"`
	Floor     int       `json:"floor"`
	GridRow   int       `json:"grid_row"`
	GridCol   int       `json:"grid_col"`
	LayoutRow *int      `json:"layout_row"`
	LayoutCol *int      `json:"layout_col"`
	Zone      string    `json:"zone"`
	Tier      string    `json:"tier"`
	Price     int64     `json:"price"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	Hold      *holdView `json:"hold"`
}

func toSeatView(s coordinator.SeatWithHold) seatView {
	view := seatView{
		SeatID:    s.Seat.SeatID,
		Floor:     s.Seat.Floor,
		GridRow:   s.Seat.GridRow,
		GridCol:   s.Seat.GridCol,
		LayoutRow: s.Seat.LayoutRow,
		LayoutCol: s.Seat.LayoutCol,
		Zone:      s.Seat.Zone,
		Tier:      s.Seat.Tier,
		Price:     s.Seat.Price,
		Status:    string(s.Seat.Status),
		UpdatedAt: s.Seat.UpdatedAt,
	}
	if s.Hold != nil {
		view.Hold = &holdView{HolderID: s.Hold.HolderID, ExpiresAt: s.Hold.ExpiresAt}
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrIdempotencyMismatch):
		http.Error(w, "request id used by another holder", http.StatusConflict)
	case errors.Is(err, domain.ErrSerializationFailure), errors.Is(err, domain.ErrConflict):
		http.Error(w, "conflict, try again", http.StatusConflict)
	default:
		requestLogger(r, h.logger).WithError(err).Error("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *Handlers) CreateHold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HolderID string   `json:"holder_id"`
		SeatIDs  []string `json:"seat_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.coord.RequestHold(r.Context(), req.HolderID, req.SeatIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"held":       res.Held,
		"refreshed":  res.Refreshed,
		"conflicts":  res.Conflicts,
		"expires_at": nil,
	}
	if res.ExpiresAt != nil {
		resp["expires_at"] = res.ExpiresAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ReleaseHolds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HolderID string    `json:"holder_id"`
		SeatIDs  *[]string `json:"seat_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Absent seat_ids means all of the holder's holds; an explicit empty
	// list means none.
	var seatIDs []string
	if req.SeatIDs != nil {
		seatIDs = *req.SeatIDs
		if seatIDs == nil {
			seatIDs = []string{}
		}
	}

	released, err := h.coord.ReleaseByHolder(r.Context(), req.HolderID, seatIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"released": released})
}

func (h *Handlers) ConfirmPurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestID string   `json:"request_id"`
		HolderID  string   `json:"holder_id"`
		SeatIDs   []string `json:"seat_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RequestID == "" {
		http.Error(w, "request_id is required", http.StatusBadRequest)
		return
	}

	res, err := h.coord.ConfirmPurchase(r.Context(), req.RequestID, req.HolderID, req.SeatIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.audit != nil && !res.Replayed && len(res.Confirmed) > 0 {
		h.audit.LogPurchase(r.Context(), req.RequestID, req.HolderID, res.Confirmed, res.Total)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"confirmed": res.Confirmed,
		"skipped":   res.Skipped,
	})
}

func (h *Handlers) ListSeats(w http.ResponseWriter, r *http.Request) {
	floor := 1
	if raw := r.URL.Query().Get("floor"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid floor", http.StatusBadRequest)
			return
		}
		floor = parsed
	}

	seats, err := h.coord.SeatsByFloor(r.Context(), floor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]seatView, len(seats))
	for i, seat := range seats {
		views[i] = toSeatView(seat)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"floor":        floor,
		"seats":        views,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	})
}

type tierStatsView struct {
	Tier      string `json:"tier"`
	Available int    `json:"available"`
	Hold      int    `json:"hold"`
	Sold      int    `json:"sold"`
	Blocked   int    `json:"blocked"`
	Revenue   int64  `json:"revenue"`
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.coord.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tiers := make([]tierStatsView, len(stats.PerTier))
	for i, row := range stats.PerTier {
		tiers[i] = tierStatsView{
			Tier:      row.Tier,
			Available: row.Available,
			Hold:      row.Hold,
			Sold:      row.Sold,
			Blocked:   row.Blocked,
			Revenue:   row.Revenue,
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totals": map[string]int{
			string(domain.SeatAvailable): stats.Totals[domain.SeatAvailable],
			string(domain.SeatHold):      stats.Totals[domain.SeatHold],
			string(domain.SeatSold):      stats.Totals[domain.SeatSold],
			string(domain.SeatBlocked):   stats.Totals[domain.SeatBlocked],
		},
		"per_tier": tiers,
	})
}

func (h *Handlers) AdminUpdateSeat(w http.ResponseWriter, r *http.Request) {
	seatID := chi.URLParam(r, "seatID")

	var req struct {
		Status *string `json:"status"`
		Tier   *string `json:"tier"`
		Price  *int64  `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.coord.AdminUpdateSeats(r.Context(), []string{seatID}, toSeatUpdate(req.Status, req.Tier, req.Price))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(res.Missing) > 0 {
		http.Error(w, "seat not found", http.StatusNotFound)
		return
	}

	if len(res.Updated) == 1 {
		if h.audit != nil {
			h.audit.LogSeatUpdate(r.Context(), []string{seatID}, nil)
		}
		writeJSON(w, http.StatusOK, toSeatView(res.Updated[0]))
		return
	}

	// Nothing changed: report the seat as it stands.
	view, err := h.coord.SeatByID(r.Context(), seatID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSeatView(*view))
}

func (h *Handlers) AdminBulkUpdateSeats(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SeatIDs []string `json:"seat_ids"`
		Status  *string  `json:"status"`
		Tier    *string  `json:"tier"`
		Price   *int64   `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if len(req.SeatIDs) == 0 {
		http.Error(w, "seat_ids must not be empty", http.StatusBadRequest)
		return
	}
	update := toSeatUpdate(req.Status, req.Tier, req.Price)
	if update.Empty() {
		http.Error(w, "at least one of status, tier, price is required", http.StatusBadRequest)
		return
	}

	res, err := h.coord.AdminUpdateSeats(r.Context(), req.SeatIDs, update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]seatView, len(res.Updated))
	updatedIDs := make([]string, len(res.Updated))
	for i, seat := range res.Updated {
		views[i] = toSeatView(seat)
		updatedIDs[i] = seat.Seat.SeatID
	}

	if h.audit != nil && len(updatedIDs) > 0 {
		h.audit.LogSeatUpdate(r.Context(), updatedIDs, res.Missing)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"updated": views,
		"missing": res.Missing,
	})
}

func toSeatUpdate(status, tier *string, price *int64) coordinator.SeatUpdate {
	update := coordinator.SeatUpdate{Tier: tier, Price: price}
	if status != nil {
		s := domain.SeatStatus(*status)
		update.Status = &s
	}
	return update
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
