// Package api exposes the cloud shelf over HTTP.
//
// Every request runs one load, mutate, save sequence against the index
// document while holding the server lock, so a single server never races
// itself on the remote index.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vctfence/scrapbee/pkg/attachment"
	"github.com/vctfence/scrapbee/pkg/blob"
	"github.com/vctfence/scrapbee/pkg/model"
	"github.com/vctfence/scrapbee/pkg/query"
	"github.com/vctfence/scrapbee/pkg/share"
	"github.com/vctfence/scrapbee/pkg/shelf"
	"github.com/vctfence/scrapbee/pkg/version"
)

// maxBodyBytes bounds request bodies, notes included.
const maxBodyBytes = 8 << 20

// Server serves the shelf API.
type Server struct {
	mu      sync.Mutex
	store   *shelf.Store
	sharer  *share.Sharer
	filters *query.Engine
	logger  *slog.Logger
	limiter *ClientRateLimiter
	router  chi.Router

	sharedFolder string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l.With("component", "api") }
}

// WithSharedFolder sets the folder receiving shares that name none.
func WithSharedFolder(name string) Option {
	return func(s *Server) { s.sharedFolder = name }
}

// WithClientRateLimit throttles each client IP. rps <= 0 disables it.
func WithClientRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = NewClientRateLimiter(rps, burst)
		}
	}
}

// NewServer creates a server over store.
func NewServer(store *shelf.Store, opts ...Option) (*Server, error) {
	filters, err := query.NewEngine()
	if err != nil {
		return nil, err
	}
	s := &Server{
		store:        store,
		filters:      filters,
		logger:       slog.Default().With("component", "api"),
		sharedFolder: share.DefaultFolder,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sharer = share.New(store, share.WithFolder(s.sharedFolder), share.WithLogger(s.logger))
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/meta", s.handleMeta)
		r.Get("/nodes", s.handleListNodes)
		r.Get("/nodes/{uuid}", s.handleGetNode)
		r.Delete("/nodes/{uuid}", s.handleDeleteNode)
		r.Get("/nodes/{uuid}/subtree", s.handleSubtree)
		r.Get("/nodes/{uuid}/archive", s.handleGetArchive)
		r.Get("/nodes/{uuid}/notes", s.handleGetNotes)
		r.Put("/nodes/{uuid}/notes", s.handlePutNotes)
		r.Post("/groups", s.handleCreateGroup)
		r.Post("/share", s.handleShare)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// NodesResponse is the body of node listings.
type NodesResponse struct {
	Nodes []*model.Node `json:"nodes"`
}

// MetaResponse is the body of GET /api/meta.
type MetaResponse struct {
	Meta   model.Meta `json:"meta"`
	Nodes  int        `json:"nodes"`
	Digest string     `json:"digest"`
}

// GroupRequest is the body of POST /api/groups.
type GroupRequest struct {
	Path string `json:"path"`
}

// NotesRequest is the body of PUT /api/nodes/{uuid}/notes.
type NotesRequest struct {
	Content string `json:"content"`
}

// DeleteResponse is the body of DELETE /api/nodes/{uuid}.
type DeleteResponse struct {
	Deleted []string `json:"deleted"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Current().String()})
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Load(r.Context()); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	digest, err := s.store.Digest()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MetaResponse{Meta: s.store.Meta(), Nodes: len(s.store.Nodes()), Digest: digest})
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Load(r.Context()); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	nodes, err := s.filters.Filter(r.URL.Query().Get("filter"), s.store.Nodes())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NodesResponse{Nodes: nonNil(nodes)})
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Load(r.Context()); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	node, err := s.store.Node(chi.URLParam(r, "uuid"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleSubtree(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Load(r.Context()); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	id := chi.URLParam(r, "uuid")
	nodes := s.store.QuerySubtree(id)
	if len(nodes) == 0 {
		WriteNotFound(w, r, fmt.Sprintf("node %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, NodesResponse{Nodes: nodes})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	if err := s.store.Load(ctx); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	group, err := s.store.FindOrCreateGroup(req.Path)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.store.Save(ctx); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	var req share.Request
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.sharer.Share(r.Context(), req)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	if err := s.store.Load(ctx); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	id := chi.URLParam(r, "uuid")
	if _, err := s.store.Node(id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	removed := s.store.DeleteSubtree(ctx, id)
	if err := s.store.Save(ctx); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	resp := DeleteResponse{Deleted: make([]string, len(removed))}
	for i, n := range removed {
		resp.Deleted[i] = n.UUID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	if err := s.store.Load(ctx); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	node, err := s.store.Node(chi.URLParam(r, "uuid"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	data, err := s.store.ReadArchiveBytes(ctx, node.UUID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if data == nil {
		WriteNotFound(w, r, fmt.Sprintf("node %s has no archived content", node.UUID))
		return
	}
	contentType := node.ContentType
	if contentType == "" {
		contentType = attachment.TypeHTML
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	if err := s.store.Load(ctx); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	node, err := s.store.Node(chi.URLParam(r, "uuid"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	notes, err := s.store.ReadNotes(ctx, node.UUID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if notes == nil {
		WriteNotFound(w, r, fmt.Sprintf("node %s has no notes", node.UUID))
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handlePutNotes(w http.ResponseWriter, r *http.Request) {
	var req NotesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	if err := s.store.Load(ctx); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	node, err := s.store.Node(chi.URLParam(r, "uuid"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.store.StoreNotes(ctx, node, req.Content); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.store.Save(ctx); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	updated, err := s.store.Node(node.UUID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// writeStoreError maps store outcomes to statuses: credential problems to
// 401, unknown nodes to 404, rejected input to 400 and storage failures to
// 502.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case blob.IsNotAuthorized(err):
		WriteUnauthorized(w, r, "")
	case errors.Is(err, shelf.ErrNodeNotFound):
		WriteNotFound(w, r, err.Error())
	case shelf.IsInvariantViolation(err),
		errors.Is(err, share.ErrInvalidRequest),
		errors.Is(err, query.ErrInvalidFilter):
		WriteBadRequest(w, r, err.Error())
	default:
		WriteBadGateway(w, r, s.logger, err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteBadRequest(w, r, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

func nonNil(nodes []*model.Node) []*model.Node {
	if nodes == nil {
		return []*model.Node{}
	}
	return nodes
}
