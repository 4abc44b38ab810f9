package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/spf13/cast"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/battlestore"
	syncerrors "github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/errors"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/runlock"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/stats"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/store"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/syncer"
)

const defaultRunListLimit = 20

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleSync handles POST /api/v1/sync?full=<bool>&limit=<n>
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.deps.Syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "sync is not configured")
		return
	}

	q := r.URL.Query()
	full, err := boolParam(q.Get("full"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "full must be a boolean")
		return
	}
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if limit > s.deps.MaxSyncLimit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be at most %d", s.deps.MaxSyncLimit))
		return
	}

	var res syncer.Result
	if full || limit > 0 {
		res, err = s.deps.Syncer.TriggerSync(r.Context(), syncer.Options{Limit: limit, SyncType: store.SyncTypeTriggered})
	} else {
		res, err = s.deps.Syncer.TriggerIncrementalSync(r.Context())
	}
	if syncerrors.Is(err, runlock.ErrLocked) {
		writeError(w, http.StatusConflict, "a sync run is already in progress")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to start sync")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

// handleStats handles GET /api/v1/stats?include_test=<bool>
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		writeError(w, http.StatusServiceUnavailable, "stats are not configured")
		return
	}
	includeTest, err := boolParam(r.URL.Query().Get("include_test"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "include_test must be a boolean")
		return
	}

	out, err := s.deps.Stats.Stats(r.Context(), includeTest)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to compute stats")
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleLeaderboard handles GET /api/v1/leaderboard?limit=<n>&sort_by=<earnings|wins|battles>
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		writeError(w, http.StatusServiceUnavailable, "stats are not configured")
		return
	}
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), stats.DefaultLeaderboardLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}

	board, err := s.deps.Stats.Leaderboard(r.Context(), stats.ClampLeaderboardLimit(limit), stats.ParseSortKey(q.Get("sort_by")))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build leaderboard")
		writeError(w, http.StatusInternalServerError, "failed to build leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handleBattles handles GET /api/v1/battles?status=&limit=&offset=&include_test=&artist=
func (s *Server) handleBattles(w http.ResponseWriter, r *http.Request) {
	if s.deps.Battles == nil {
		writeError(w, http.StatusServiceUnavailable, "battle cache is not configured")
		return
	}
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), battlestore.DefaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	includeTest, err := boolParam(q.Get("include_test"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "include_test must be a boolean")
		return
	}

	battles, err := s.deps.Battles.ListBattles(r.Context(), battlestore.ListFilter{
		Status:      q.Get("status"),
		IncludeTest: includeTest,
		Artist:      strings.TrimSpace(q.Get("artist")),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list battles")
		writeError(w, http.StatusInternalServerError, "failed to list battles")
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: battles, Count: len(battles)})
}

// handleBattle handles GET /api/v1/battles/{id}
func (s *Server) handleBattle(w http.ResponseWriter, r *http.Request) {
	if s.deps.Battles == nil {
		writeError(w, http.StatusServiceUnavailable, "battle cache is not configured")
		return
	}
	id, err := cast.ToUint64E(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "battle id must be an unsigned integer")
		return
	}

	battle, err := s.deps.Battles.GetBattle(r.Context(), id)
	if syncerrors.Is(err, battlestore.ErrBattleNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("battle %d not found", id))
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Uint64("battle_id", id).Msg("failed to get battle")
		writeError(w, http.StatusInternalServerError, "failed to get battle")
		return
	}
	writeJSON(w, http.StatusOK, battle)
}

// handleSyncRuns handles GET /api/v1/sync-runs?limit=<n>
func (s *Server) handleSyncRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run log is not configured")
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"), defaultRunListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if limit <= 0 || limit > battlestore.MaxListLimit {
		limit = defaultRunListLimit
	}

	runs, err := s.deps.Runs.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list sync runs")
		writeError(w, http.StatusInternalServerError, "failed to list sync runs")
		return
	}
	views := make([]SyncRunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, NewSyncRunView(run))
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: views, Count: len(views)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return cast.ToIntE(raw)
}

func boolParam(raw string, def bool) (bool, error) {
	if raw == "" {
		return def, nil
	}
	return cast.ToBoolE(raw)
}
