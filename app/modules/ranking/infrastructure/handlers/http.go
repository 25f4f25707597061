package rankinghandlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	rankingaggregator "github.com/Black-And-White-Club/courtrank/app/modules/ranking/aggregator"
	rankingservice "github.com/Black-And-White-Club/courtrank/app/modules/ranking/application"
	rankingdomain "github.com/Black-And-White-Club/courtrank/app/modules/ranking/domain"
	rankingevents "github.com/Black-And-White-Club/courtrank/app/modules/ranking/events"
	"github.com/Black-And-White-Club/courtrank/internal/observability/attr"
	"github.com/go-chi/chi/v5"
)

const (
	maxJSONBody   = 1 << 20
	maxImportBody = 10 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

// HandleHTTPSubmitMatch applies a match posted as JSON. A new match answers
// 201, a replay of an applied match 200 and a rejection 422.
func (h *RankingHandlers) HandleHTTPSubmitMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var raw rankingdomain.RawMatchSubmission
	if err := decodeJSON(w, r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid match body: "+err.Error())
		return
	}

	result, err := h.service.SubmitMatch(ctx, raw)
	if err != nil {
		h.logger.ErrorContext(ctx, "HTTP match submission failed", attr.MatchID(raw.MatchID), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "match could not be recorded")
		return
	}

	switch {
	case result.IsFailure():
		writeJSON(w, http.StatusUnprocessableEntity, result.Failure)
	case result.Success.Replayed:
		writeJSON(w, http.StatusOK, result.Success)
	default:
		writeJSON(w, http.StatusCreated, result.Success)
	}
}

// HandleHTTPImportMatches accepts a multipart upload in the "file" field.
func (h *RankingHandlers) HandleHTTPImportMatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file: "+err.Error())
		return
	}
	defer file.Close()

	report, err := h.service.ImportMatches(ctx, header.Filename, file)
	if errors.Is(err, rankingservice.ErrUnreadableSheet) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "HTTP import failed", attr.String("filename", header.Filename), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type playerBody struct {
	DisplayName string  `json:"display_name"`
	Rating      float64 `json:"rating"`
	Gender      string  `json:"gender"`
}

// HandleHTTPUpsertPlayer creates or replaces the profile named in the path.
func (h *RankingHandlers) HandleHTTPUpsertPlayer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playerID := chi.URLParam(r, "playerID")

	var body playerBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid player body: "+err.Error())
		return
	}

	result, err := h.service.UpsertPlayerProfile(ctx, rankingevents.PlayerProfileUpdatedPayloadV1{
		PlayerID:    playerID,
		DisplayName: body.DisplayName,
		Rating:      body.Rating,
		Gender:      body.Gender,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "HTTP player upsert failed", attr.PlayerID(playerID), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "player could not be saved")
		return
	}
	if result.IsFailure() {
		writeError(w, http.StatusUnprocessableEntity, result.Failure.Reason)
		return
	}
	writeJSON(w, http.StatusOK, result.Success)
}

// HandleHTTPLeaderboard serves GET /leaderboards/{format}/{division}.
func (h *RankingHandlers) HandleHTTPLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slice, err := parseSlice(chi.URLParam(r, "format"), chi.URLParam(r, "division"), r.URL.Query().Get("tier"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	board, err := h.service.GetLeaderboard(ctx, rankingaggregator.LeaderboardQuery{Slice: slice, Limit: limit, Offset: offset})
	if err != nil {
		h.logger.ErrorContext(ctx, "HTTP leaderboard failed", attr.Error(err))
		writeError(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// HandleHTTPPosition serves GET /leaderboards/{format}/{division}/players/{playerID}.
func (h *RankingHandlers) HandleHTTPPosition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slice, err := parseSlice(chi.URLParam(r, "format"), chi.URLParam(r, "division"), r.URL.Query().Get("tier"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pos, err := h.service.GetPosition(ctx, rankingaggregator.PositionQuery{
		PlayerID: chi.URLParam(r, "playerID"),
		Slice:    slice,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "HTTP position failed", attr.Error(err))
		writeError(w, http.StatusInternalServerError, "position unavailable")
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func historyQuery(r *http.Request) (rankingaggregator.HistoryQuery, error) {
	q := rankingaggregator.HistoryQuery{PlayerID: chi.URLParam(r, "playerID")}
	params := r.URL.Query()

	if v := params.Get("format"); v != "" {
		f, err := rankingdomain.ParsePlayFormat(v)
		if err != nil {
			return q, err
		}
		q.Format = f
	}
	if v := params.Get("age_division"); v != "" {
		d, err := rankingdomain.ParseAgeDivision(v)
		if err != nil {
			return q, err
		}
		q.AgeDivision = d
	}
	if v := params.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, errors.New("since must be an RFC 3339 timestamp")
		}
		q.Since = t
	}
	return q, nil
}

// HandleHTTPHistory serves a player's point changes in recording order.
func (h *RankingHandlers) HandleHTTPHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := historyQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.service.GetHistory(ctx, q, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "HTTP history failed", attr.PlayerID(q.PlayerID), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if entries == nil {
		entries = []rankingaggregator.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// HandleHTTPHistoryChart serves the history trend as a PNG.
func (h *RankingHandlers) HandleHTTPHistoryChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := historyQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	png, err := h.service.HistoryChart(ctx, q)
	if err != nil {
		h.logger.ErrorContext(ctx, "HTTP history chart failed", attr.PlayerID(q.PlayerID), attr.Error(err))
		writeError(w, http.StatusInternalServerError, "chart unavailable")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// HandleHTTPTiers serves the tier catalog.
func (h *RankingHandlers) HandleHTTPTiers(w http.ResponseWriter, r *http.Request) {
	tiers := h.service.GetTierCatalog(r.Context())
	if tiers == nil {
		tiers = []rankingdomain.RatingTier{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tiers": tiers})
}
