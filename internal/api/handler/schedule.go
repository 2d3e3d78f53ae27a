package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/questboard/scheduler/internal/api/respond"
	"github.com/questboard/scheduler/internal/game"
	"github.com/questboard/scheduler/internal/store"
)

// scheduleRow is the JSON shape for one pending/sent row.
type scheduleRow struct {
	ID            string `json:"id"`
	GameID        string `json:"game_id"`
	Kind          string `json:"kind"`
	OffsetMinutes *int   `json:"offset_minutes"`
	DueTime       string `json:"due_time"`
	Sent          bool   `json:"sent"`
	CreatedAt     string `json:"created_at"`
}

func toScheduleRow(r store.Row) scheduleRow {
	return scheduleRow{
		ID:            r.ID.String(),
		GameID:        r.GameID.String(),
		Kind:          r.Kind.String(),
		OffsetMinutes: r.OffsetMinutes,
		DueTime:       r.DueTime.UTC().Format(time.RFC3339),
		Sent:          r.Sent,
		CreatedAt:     r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// GetSchedule returns all schedule rows for one game.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(chi.URLParam(r, "gameID"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_GAME_ID", "gameID must be a UUID")
		return
	}

	rows, err := h.store.ListByGame(r.Context(), gameID)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", "Could not load schedule")
		return
	}

	out := make([]scheduleRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, toScheduleRow(row))
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"game_id": gameID.String(),
		"rows":    out,
	})
}

// GetNextDue returns the earliest pending row across all games.
func (h *Handler) GetNextDue(w http.ResponseWriter, r *http.Request) {
	row, ok, err := h.store.PeekNextDue(r.Context())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", "Could not peek schedule")
		return
	}
	if !ok {
		respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"empty": true})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"empty":    false,
		"id":       row.ID.String(),
		"due_time": row.DueTime.UTC().Format(time.RFC3339),
	})
}

// RebuildSchedule recomputes a game's schedule from its current state.
// Populator errors surface here as HTTP failures; the scheduler loop itself
// never returns errors to users.
func (h *Handler) RebuildSchedule(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(chi.URLParam(r, "gameID"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_GAME_ID", "gameID must be a UUID")
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "TX_FAILED", "Could not open transaction")
		return
	}
	defer tx.Rollback(r.Context())

	if err := h.populator.Populate(r.Context(), tx, gameID, false); err != nil {
		switch {
		case errors.Is(err, game.ErrNotFound):
			respond.WriteError(w, http.StatusNotFound, "GAME_NOT_FOUND", "No such game")
		case errors.Is(err, store.ErrConstraint):
			respond.WriteError(w, http.StatusBadRequest, "CONSTRAINT_VIOLATION", err.Error())
		default:
			respond.WriteError(w, http.StatusInternalServerError, "POPULATE_FAILED", "Schedule rebuild failed")
		}
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "TX_FAILED", "Commit failed")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"game_id": gameID.String(),
		"rebuilt": true,
	})
}
