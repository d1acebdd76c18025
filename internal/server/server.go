// Package server exposes the analysis pipeline and the spam scorer over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dataloom-cli/internal/email"
	"github.com/KaramelBytes/dataloom-cli/internal/impute"
	"github.com/KaramelBytes/dataloom-cli/internal/ingest"
	"github.com/KaramelBytes/dataloom-cli/internal/organize"
	"github.com/KaramelBytes/dataloom-cli/internal/pipeline"
	"github.com/KaramelBytes/dataloom-cli/internal/tokenize"
)

// Options configure the handlers.
type Options struct {
	Ingest  ingest.Options
	Email   email.Config
	Impute  impute.Options
	Session *pipeline.Session
	// RequestTimeout bounds each request; zero means 60s.
	RequestTimeout time.Duration
}

// Server is the HTTP surface of the analyzer.
type Server struct {
	opt    Options
	log    *zap.Logger
	router *chi.Mux
	server *http.Server
}

// New creates a Server. A nil logger discards output.
func New(opt Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opt.RequestTimeout <= 0 {
		opt.RequestTimeout = 60 * time.Second
	}
	s := &Server{opt: opt, log: log, router: chi.NewRouter()}
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.accessLog)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(opt.RequestTimeout))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/email/spam", s.handleSpam)
	})
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr and serves until Shutdown. It is safe to call
// Shutdown from another goroutine at any time.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalyze runs the pipeline over the request body. Query parameters:
// name (used for format detection), format (json, markdown, yaml),
// impute=auto, sort, desc=true.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	doc, err := ingest.FromReader(r.Context(), name, r.Body, s.opt.Ingest)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if doc.Name == "" {
		doc.Name = "upload"
	}
	emailCfg := s.opt.Email
	res, err := pipeline.Run(r.Context(), doc, pipeline.Options{
		Organize: organize.Options{
			SortColumn: q.Get("sort"),
			Descending: q.Get("desc") == "true",
			Email:      &emailCfg,
		},
		Impute:     s.opt.Impute,
		AutoImpute: q.Get("impute") == "auto",
		Session:    s.opt.Session,
		Logger:     s.log.With(zap.String("request_id", middleware.GetReqID(r.Context()))),
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	format := q.Get("format")
	if format == "" {
		format = "json"
	}
	body, err := res.Render(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch strings.ToLower(format) {
	case "json":
		w.Header().Set("Content-Type", "application/json")
	case "yaml", "yml":
		w.Header().Set("Content-Type", "application/yaml")
	default:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// SpamRequest is one message to score.
type SpamRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SpamResponse is the assessment of one message.
type SpamResponse struct {
	ThreadID string   `json:"thread_id"`
	Priority int      `json:"priority"`
	Score    int      `json:"spam_score"`
	IsSpam   bool     `json:"is_spam"`
	Hits     []string `json:"hits,omitempty"`
}

// handleSpam accepts a single SpamRequest object or an array of them.
func (s *Server) handleSpam(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}
	var reqs []SpamRequest
	single := !strings.HasPrefix(strings.TrimSpace(string(raw)), "[")
	if single {
		var one SpamRequest
		if err := json.Unmarshal(raw, &one); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid message: %v", err))
			return
		}
		reqs = []SpamRequest{one}
	} else if err := json.Unmarshal(raw, &reqs); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid messages: %v", err))
		return
	}

	out := make([]SpamResponse, len(reqs))
	for i, m := range reqs {
		msg := email.Message{From: m.From, To: m.To, Subject: m.Subject, Body: m.Body}
		a := email.AssessSpam(msg, s.opt.Email)
		out[i] = SpamResponse{
			ThreadID: email.ThreadID(m.Subject),
			Priority: email.PriorityScore(msg, s.opt.Email),
			Score:    a.Score,
			IsSpam:   a.IsSpam,
			Hits:     a.Hits,
		}
	}
	if single {
		writeJSON(w, http.StatusOK, out[0])
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingest.ErrUnsupported), errors.Is(err, tokenize.ErrBinaryInput):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ingest.ErrIngestionTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
