package stubapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"goaltracker/internal/analytics"
	"goaltracker/internal/apierr"
	"goaltracker/internal/auth"
	"goaltracker/internal/goals"
)

// ListResponse is the body of GET /goals.
type ListResponse struct {
	Goals []goals.Goal `json:"goals"`
}

func ListGoalsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			apierr.Write(w, http.StatusUnauthorized, apierr.CodeUnauthorized, "unauthorized")
			return
		}

		writeJSON(w, http.StatusOK, ListResponse{Goals: store.ListGoals(uid)})
	}
}

func CreateGoalHandler(store *Store, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			apierr.Write(w, http.StatusUnauthorized, apierr.CodeUnauthorized, "unauthorized")
			return
		}

		var body goals.NewGoal
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			apierr.Write(w, http.StatusBadRequest, apierr.CodeBadRequest, "invalid json")
			return
		}

		g, err := store.CreateGoal(uid, body)
		if err != nil {
			apierr.WriteErr(w, err)
			return
		}

		// goal_created: lengths only, never the raw text
		env := analytics.FromRequest(r)
		env.UserID = uid
		analytics.Log(r.Context(), log, env, "goal_created", map[string]any{
			"goal_id":  g.ID,
			"text_len": len(g.Title) + len(g.Description),
			"status":   g.Status,
		})

		writeJSON(w, http.StatusCreated, g)
	}
}

func GetGoalHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, id, ok := goalRequest(w, r)
		if !ok {
			return
		}

		g, err := store.GetGoal(uid, id)
		if err != nil {
			apierr.WriteErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func UpdateGoalHandler(store *Store, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, id, ok := goalRequest(w, r)
		if !ok {
			return
		}

		var patch goals.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			apierr.Write(w, http.StatusBadRequest, apierr.CodeBadRequest, "invalid json")
			return
		}

		g, err := store.UpdateGoal(uid, id, patch, analytics.IdempotencyKeyFromRequest(r))
		if err != nil {
			apierr.WriteErr(w, err)
			return
		}

		env := analytics.FromRequest(r)
		env.UserID = uid
		analytics.Log(r.Context(), log, env, "goal_updated", map[string]any{
			"goal_id":  g.ID,
			"status":   g.Status,
			"progress": g.Progress,
			"changed": map[string]any{
				"status":   patch.Status != nil,
				"progress": patch.Progress != nil,
			},
		})

		writeJSON(w, http.StatusOK, g)
	}
}

func DeleteGoalHandler(store *Store, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, id, ok := goalRequest(w, r)
		if !ok {
			return
		}

		if err := store.DeleteGoal(uid, id); err != nil {
			apierr.WriteErr(w, err)
			return
		}

		env := analytics.FromRequest(r)
		env.UserID = uid
		analytics.Log(r.Context(), log, env, "goal_deleted", map[string]any{"goal_id": id})

		w.WriteHeader(http.StatusNoContent)
	}
}

func goalRequest(w http.ResponseWriter, r *http.Request) (uid, id int64, ok bool) {
	uid, ok = auth.UserIDFromContext(r.Context())
	if !ok {
		apierr.Write(w, http.StatusUnauthorized, apierr.CodeUnauthorized, "unauthorized")
		return 0, 0, false
	}

	id, err := strconv.ParseInt(strings.TrimSpace(mux.Vars(r)["id"]), 10, 64)
	if err != nil || id <= 0 {
		apierr.Write(w, http.StatusNotFound, apierr.CodeNotFound, "no goal")
		return 0, 0, false
	}
	return uid, id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
