package raffle

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

var (
	walletPattern = regexp.MustCompile(`^[A-Z]{60}$`)
	txidPattern   = regexp.MustCompile(`^[a-z]{60}$`)
)

// entryUnit is the ticket denomination: amounts must be positive multiples.
const entryUnit = 1000

// Handler serves the raffle HTTP surface.
type Handler struct {
	store         *Store
	appender      RowAppender
	adminPassword string
}

// NewHandler wires the raffle routes. An empty admin password disables the
// draw and reset endpoints.
func NewHandler(store *Store, appender RowAppender, adminPassword string) *Handler {
	if appender == nil {
		appender = NopAppender{}
	}
	return &Handler{store: store, appender: appender, adminPassword: adminPassword}
}

// Routes returns the raffle subrouter, mounted at /api/raffle.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/entry", h.handleEntry)
	r.Get("/status", h.handleStatus)
	if h.adminPassword != "" {
		r.Post("/draw", h.handleDraw)
		r.Post("/reset", h.handleReset)
	}
	return r
}

type entryRequest struct {
	Wallet string      `json:"wallet"`
	TxID   string      `json:"txid"`
	Amount json.Number `json:"amount"`
}

func (h *Handler) handleEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if !walletPattern.MatchString(req.Wallet) {
		writeError(w, http.StatusBadRequest, "invalid wallet id")
		return
	}
	if !txidPattern.MatchString(req.TxID) {
		writeError(w, http.StatusBadRequest, "invalid tx id")
		return
	}
	amount, err := strconv.ParseInt(req.Amount.String(), 10, 64)
	if err != nil || amount <= 0 || amount%entryUnit != 0 {
		writeError(w, http.StatusBadRequest, "amount must be a positive multiple of 1000")
		return
	}

	entry, err := h.store.AddEntry(req.Wallet, req.TxID, amount)
	if errors.Is(err, ErrDuplicateEntry) {
		writeError(w, http.StatusConflict, "tx id already entered")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Ledger append is best-effort: the entry already stands.
	row := []string{
		time.UnixMilli(entry.EnteredAt).UTC().Format(time.RFC3339),
		entry.Wallet,
		entry.TxID,
		strconv.FormatInt(entry.Amount, 10),
	}
	if err := h.appender.AppendRow(r.Context(), row); err != nil {
		log.Printf("raffle_sheet_append_failed txid=%s err=%v", entry.TxID, err)
	}

	log.Printf("raffle_entry wallet=%s txid=%s amount=%d", entry.Wallet, entry.TxID, entry.Amount)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "entry": entry})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Status())
}

type adminRequest struct {
	Password   string `json:"password"`
	DurationMS int64  `json:"durationMs"`
}

func (h *Handler) handleDraw(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password != h.adminPassword {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	winner, err := h.store.Draw()
	switch {
	case errors.Is(err, ErrRoundOpen):
		writeError(w, http.StatusConflict, "round still open")
	case errors.Is(err, ErrAlreadyDrawn):
		writeError(w, http.StatusConflict, "winner already drawn")
	case errors.Is(err, ErrEmptyPool):
		writeError(w, http.StatusConflict, "no entries")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		log.Printf("raffle_drawn winner=%s", winner)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "winner": winner})
	}
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password != h.adminPassword {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	duration := time.Duration(req.DurationMS) * time.Millisecond
	if duration <= 0 {
		duration = 7 * 24 * time.Hour
	}

	roundID, err := h.store.Reset(duration)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("raffle_reset round=%s duration=%s", roundID, duration)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "roundId": roundID})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
