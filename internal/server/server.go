// Package server exposes the secretary over HTTP: a chat endpoint that
// drives the dialogue router, an upload endpoint for attachments, and a
// static route serving uploaded files back to the browser.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinvoy/secretary/internal/attach"
	"github.com/clinvoy/secretary/internal/router"
)

// Router handles one chat turn. Implemented by router.Router.
type Router interface {
	HandleTurn(ctx context.Context, req router.TurnRequest) (*router.TurnResult, error)
}

// Config holds the HTTP server settings.
type Config struct {
	// Addr is the listen address (default ":8000").
	Addr string

	// UploadDir is the directory served under /uploads/.
	UploadDir string

	// PublicBaseURL prefixes URLs returned by the upload endpoint.
	PublicBaseURL string

	// AllowedOrigins is the CORS allow-list.
	AllowedOrigins []string
}

// Server wires the router and attachment handler to HTTP routes.
type Server struct {
	cfg    Config
	router Router
	attach *attach.Handler
}

// New creates a Server. The attachment handler persists uploads under
// cfg.UploadDir.
func New(cfg Config, rt Router, att *attach.Handler) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	return &Server{cfg: cfg, router: rt, attach: att}
}

// Handler returns the fully routed HTTP handler, CORS included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.cfg.UploadDir))))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.cors(mux)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// chatRequest is the JSON body accepted by POST /chat.
type chatRequest struct {
	Message        string   `json:"message"`
	Image          string   `json:"image,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	PreferredLinks []string `json:"preferred_links,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := s.router.HandleTurn(r.Context(), router.TurnRequest{
		Message:        req.Message,
		Image:          req.Image,
		ConversationID: req.ConversationID,
		PreferredLinks: req.PreferredLinks,
	})
	if err != nil {
		log.Error().Err(err).Msg("chat turn failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// uploadRequest is the JSON body accepted by POST /upload.
type uploadRequest struct {
	Image string `json:"image"`
}

// uploadResponse returns the public URL of the stored file.
type uploadResponse struct {
	URL string `json:"url"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Image == "" {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}

	name, err := s.attach.Persist(req.Image)
	if err != nil {
		log.Error().Err(err).Msg("upload failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		URL: s.cfg.PublicBaseURL + "/uploads/" + name,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// cors applies the configured origin allow-list and answers preflight
// requests.
func (s *Server) cors(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.cfg.AllowedOrigins))
	for _, o := range s.cfg.AllowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// errorResponse is the envelope for all error replies.
type errorResponse struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
