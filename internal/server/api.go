package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mdash/internal/models"
	"github.com/desertthunder/mdash/internal/services"
	"github.com/desertthunder/mdash/internal/shared"
	"github.com/desertthunder/mdash/internal/tasks"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FreshHeader reports whether a stats response came from the run started by that request.
const FreshHeader = "X-Mdash-Fresh"

const maxBodyBytes = 1 << 20

// statusClientClosedRequest is written when the client goes away before the response is ready.
const statusClientClosedRequest = 499

// API serves the dashboard endpoints over the aggregation core.
type API struct {
	engine    *tasks.StatsEngine
	news      *tasks.NewsAggregator
	generator *tasks.PlaylistGenerator
	stats     *tasks.Latest[*models.StreamingStats]
	logger    *log.Logger
}

// NewAPI creates an [API]. Any of the collaborators may be nil, in which case its routes answer 503.
func NewAPI(engine *tasks.StatsEngine, news *tasks.NewsAggregator, generator *tasks.PlaylistGenerator, logger *log.Logger) *API {
	if logger == nil {
		logger = log.Default()
	}
	return &API{
		engine:    engine,
		news:      news,
		generator: generator,
		stats:     &tasks.Latest[*models.StreamingStats]{Pipeline: "stats"},
		logger:    shared.WithLogger(logger, "component", "api"),
	}
}

// Register mounts the API routes on r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(a.health))
	r.Handle(http.MethodGet, "/metrics", promhttp.Handler())
	r.Handle(http.MethodGet, "/api/stats", http.HandlerFunc(a.getStats))
	r.Handle(http.MethodGet, "/api/news", http.HandlerFunc(a.getNews))
	r.Handle(http.MethodGet, "/api/genres", http.HandlerFunc(a.getGenres))
	r.Handle(http.MethodPost, "/api/playlists/generate", http.HandlerFunc(a.generatePlaylist))
	r.Handle(http.MethodGet, "/api/playlists/weekly", http.HandlerFunc(a.weeklyPlaylist))
	r.Handle(http.MethodPost, "/api/plays", http.HandlerFunc(a.recordPlay))
	r.Handle(http.MethodGet, "/api/plays/{id}", http.HandlerFunc(a.playCount))
}

// NewHandler builds the full router with logging, metrics and recovery middleware.
func NewHandler(api *API, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	r := NewMuxRouter()
	r.Use(Recover(logger), Logging(logger), Metrics())
	api.Register(r)
	return r
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) getStats(w http.ResponseWriter, r *http.Request) {
	if a.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "stats are not configured")
		return
	}

	stats, fresh, err := a.stats.Run(r.Context(), func(ctx context.Context) (*models.StreamingStats, error) {
		return a.engine.StreamingStats(ctx, nil)
	})
	if err != nil {
		a.writeUpstreamError(w, "stats", err)
		return
	}

	w.Header().Set(FreshHeader, strconv.FormatBool(fresh))
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) getNews(w http.ResponseWriter, r *http.Request) {
	if a.news == nil {
		writeError(w, http.StatusServiceUnavailable, "news is not configured")
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, a.news.GetMusicNews(r.Context(), q.Get("genre"), q.Get("q")))
}

type genresResponse struct {
	Music []string `json:"music"`
	News  []string `json:"news"`
}

func (a *API) getGenres(w http.ResponseWriter, r *http.Request) {
	resp := genresResponse{Music: []string{}, News: services.NewsGenres}

	if a.generator != nil {
		music, err := a.generator.AvailableGenres(r.Context())
		if err != nil {
			a.logger.Warn("music genres unavailable", "error", err)
		} else if music != nil {
			resp.Music = music
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GenerateRequest is the body of POST /api/playlists/generate.
type GenerateRequest struct {
	Seeds []models.Track `json:"seeds"`
	Genre string         `json:"genre"`
	Name  string         `json:"name"`
	Mood  string         `json:"mood"`
}

func (a *API) generatePlaylist(w http.ResponseWriter, r *http.Request) {
	if a.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "playlist generation is not configured")
		return
	}

	var req GenerateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var mood models.PlaylistMood
	if req.Mood != "" {
		m, ok := models.ParseMood(req.Mood)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown mood: "+req.Mood)
			return
		}
		mood = m
	}

	tracks, err := a.generator.Generate(r.Context(), req.Seeds, req.Genre, nil)
	if err != nil {
		a.writeUpstreamError(w, "generate", err)
		return
	}

	writeJSON(w, http.StatusOK, a.generator.BuildPlaylist(req.Name, tracks, req.Genre, mood))
}

func (a *API) weeklyPlaylist(w http.ResponseWriter, r *http.Request) {
	if a.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "playlist generation is not configured")
		return
	}

	playlist, err := a.generator.WeeklyPlaylist(r.Context())
	if err != nil {
		a.writeUpstreamError(w, "weekly", err)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (a *API) recordPlay(w http.ResponseWriter, r *http.Request) {
	if a.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "stats are not configured")
		return
	}

	var track models.Track
	if err := decodeBody(w, r, &track); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := a.engine.RecordPlay(r.Context(), track); err != nil {
		switch {
		case errors.Is(err, shared.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, shared.ErrServiceUnavailable):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			a.logger.Error("record play failed", "track", track.ID, "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PlayCountResponse is the body of GET /api/plays/{id}.
type PlayCountResponse struct {
	TrackID   string `json:"trackId"`
	PlayCount int    `json:"playCount"`
}

func (a *API) playCount(w http.ResponseWriter, r *http.Request) {
	if a.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "stats are not configured")
		return
	}

	id := mux.Vars(r)["id"]
	count, err := a.engine.PlayCount(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, shared.ErrServiceUnavailable):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			a.logger.Error("play count failed", "track", id, "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, PlayCountResponse{TrackID: id, PlayCount: count})
}

// writeUpstreamError maps collaborator failures onto HTTP statuses.
func (a *API) writeUpstreamError(w http.ResponseWriter, op string, err error) {
	switch {
	case shared.IsUnauthorized(err):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, shared.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled):
		a.logger.Debug("request cancelled", "op", op)
		writeError(w, statusClientClosedRequest, "request cancelled")
	default:
		a.logger.Error("upstream failure", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
