package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/storefront/cache"
	"github.com/briangreenhill/storefront/internal/jobs"
	"github.com/briangreenhill/storefront/internal/storefront"
)

const (
	maxPageSize           = 100
	defaultPreloadTimeout = time.Minute

	visitorKey = "visitor_id"
)

// Enqueuer submits background tasks; *asynq.Client satisfies it
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// StatsProvider exposes cache counters
type StatsProvider interface {
	Stats() cache.Stats
}

type Server struct {
	Router   *chi.Mux
	Sess     *scs.SessionManager
	Views    *storefront.ViewStore
	Catalog  *storefront.Catalog
	Admin    *storefront.Admin
	Stats    StatsProvider
	Jobs     Enqueuer // nil runs preloads in-process
	Queue    string
	PageSize int

	preloadTimeout time.Duration
}

type ServerOptions struct {
	Sess           *scs.SessionManager // nil uses an in-memory session store
	Views          *storefront.ViewStore
	Catalog        *storefront.Catalog
	Admin          *storefront.Admin
	Stats          StatsProvider
	Jobs           Enqueuer
	Queue          string
	PageSize       int
	Logger         zerolog.Logger
	PreloadTimeout time.Duration
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(chimw.RealIP)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)

	s := &Server{
		Router:         r,
		Sess:           opts.Sess,
		Views:          opts.Views,
		Catalog:        opts.Catalog,
		Admin:          opts.Admin,
		Stats:          opts.Stats,
		Jobs:           opts.Jobs,
		Queue:          opts.Queue,
		PageSize:       opts.PageSize,
		preloadTimeout: opts.PreloadTimeout,
	}
	if s.PageSize <= 0 {
		s.PageSize = storefront.DefaultPageSize
	}
	if s.preloadTimeout <= 0 {
		s.preloadTimeout = defaultPreloadTimeout
	}
	if s.Sess == nil {
		s.Sess = scs.New()
	}
	if s.Views == nil {
		s.Views = storefront.NewViewStore(s.Catalog, s.PageSize, 0, opts.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(s.Sess.LoadAndSave)

		api.Get("/products", s.handleProducts)
		api.Get("/categories", s.handleCategories)
		api.Get("/users/{userID}/orders", s.handleOrders)
		api.Get("/users/{userID}/orders/feed", s.handleOrdersFeed)
		api.Post("/users/{userID}/orders/feed/more", s.handleOrdersMore)
		api.Post("/users/{userID}/orders/feed/refetch", s.handleOrdersRefetch)

		api.Delete("/cache", s.handleInvalidate)
		api.Post("/cache/preload", s.handlePreload)
		api.Get("/cache/stats", s.handleStats)
		api.Get("/cache/entities", s.handleEntities)
	})

	return s
}

// visitor returns the views bound to the caller's session, starting a
// session on first contact
func (s *Server) visitor(r *http.Request) *storefront.Views {
	id := s.Sess.GetString(r.Context(), visitorKey)
	if id == "" {
		id = uuid.NewString()
		s.Sess.Put(r.Context(), visitorKey, id)
	}
	return s.Views.Get(id)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	writeState(w, r, load(r, s.visitor(r).Products))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeState(w, r, load(r, s.visitor(r).Categories))
}

func load[T any](r *http.Request, view *storefront.Collection[T]) storefront.State[T] {
	if wantRefresh(r) {
		return view.Refetch(r.Context())
	}
	return view.Load(r.Context())
}

// writeState answers 502 only when a failure left nothing to show; data
// kept from an earlier load is served with the error attached
func writeState[T any](w http.ResponseWriter, r *http.Request, state storefront.State[T]) {
	writeJSON(w, r, stateCode(state), state)
}

func stateCode[T any](state storefront.State[T]) int {
	if state.Status == storefront.StatusError && len(state.Data) == 0 {
		return http.StatusBadGateway
	}
	return http.StatusOK
}

type ordersPage struct {
	Data       []storefront.Order `json:"data"`
	HasMore    bool               `json:"has_more"`
	NextOffset int                `json:"next_offset"`
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if _, err := uuid.Parse(userID); err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		http.Error(w, "invalid offset", http.StatusBadRequest)
		return
	}
	limit, err := intParam(r, "limit", s.PageSize)
	if err != nil || limit <= 0 || limit > maxPageSize {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}

	orders, err := s.Catalog.OrdersPage(r.Context(), userID, offset, limit, wantRefresh(r))
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("user_id", userID).Int("offset", offset).Msg("load orders failed")
		http.Error(w, "could not load orders", http.StatusBadGateway)
		return
	}

	writeJSON(w, r, http.StatusOK, ordersPage{
		Data:       orders,
		HasMore:    len(orders) == limit,
		NextOffset: offset + len(orders),
	})
}

// ordersFeed resolves the visitor's pager for the path's user
func (s *Server) ordersFeed(w http.ResponseWriter, r *http.Request) (*storefront.Pager[storefront.Order], bool) {
	userID := chi.URLParam(r, "userID")
	if _, err := uuid.Parse(userID); err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return nil, false
	}
	return s.visitor(r).Orders(userID), true
}

func (s *Server) handleOrdersFeed(w http.ResponseWriter, r *http.Request) {
	feed, ok := s.ordersFeed(w, r)
	if !ok {
		return
	}
	state := feed.State()
	if state.Status == storefront.StatusIdle {
		state = feed.LoadMore(r.Context())
	}
	writeJSON(w, r, stateCode(state.State), state)
}

func (s *Server) handleOrdersMore(w http.ResponseWriter, r *http.Request) {
	feed, ok := s.ordersFeed(w, r)
	if !ok {
		return
	}
	state := feed.LoadMore(r.Context())
	writeJSON(w, r, stateCode(state.State), state)
}

func (s *Server) handleOrdersRefetch(w http.ResponseWriter, r *http.Request) {
	feed, ok := s.ordersFeed(w, r)
	if !ok {
		return
	}
	state := feed.Refetch(r.Context())
	writeJSON(w, r, stateCode(state.State), state)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	s.Admin.Invalidate(r.URL.Query().Get("key"))
	w.WriteHeader(http.StatusNoContent)
}

type preloadRequest struct {
	Entities []string `json:"entities"`
}

type preloadResponse struct {
	Status   string   `json:"status"`
	Entities []string `json:"entities"`
	TaskID   string   `json:"task_id,omitempty"`
}

func (s *Server) handlePreload(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)

	var req preloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Entities) == 0 {
		req.Entities = s.Admin.Entities()
	}
	if err := s.Admin.Check(req.Entities...); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if s.Jobs != nil {
		info, err := s.enqueuePreload(r.Context(), req.Entities)
		if err == nil {
			logger.Info().Str("task_id", info.ID).Strs("entities", req.Entities).Msg("preload job queued")
			writeJSON(w, r, http.StatusAccepted, preloadResponse{Status: "queued", Entities: req.Entities, TaskID: info.ID})
			return
		}
		logger.Warn().Err(err).Msg("enqueue preload failed, running in-process")
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.preloadTimeout)
	go func() {
		defer cancel()
		s.Admin.Preload(ctx, req.Entities...)
	}()
	writeJSON(w, r, http.StatusAccepted, preloadResponse{Status: "started", Entities: req.Entities})
}

func (s *Server) enqueuePreload(ctx context.Context, entities []string) (*asynq.TaskInfo, error) {
	task, err := jobs.NewPreloadTask(entities)
	if err != nil {
		return nil, err
	}
	return s.Jobs.EnqueueContext(ctx, task, asynq.Queue(s.Queue))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.Stats.Stats())
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string][]string{"entities": s.Admin.Entities()})
}

func wantRefresh(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	return v
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("write json response")
	}
}
