package internal

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kazz187/sprintguild/internal/archive"
	"github.com/kazz187/sprintguild/internal/autotag"
	"github.com/kazz187/sprintguild/internal/board"
	"github.com/kazz187/sprintguild/internal/config"
	"github.com/kazz187/sprintguild/internal/eventjournal"
	"github.com/kazz187/sprintguild/internal/eventstream"
	"github.com/kazz187/sprintguild/internal/execution"
	"github.com/kazz187/sprintguild/internal/pushnotification"
	"github.com/kazz187/sprintguild/internal/taskimage"
	"github.com/kazz187/sprintguild/pkg/cerr"
	"github.com/kazz187/sprintguild/pkg/clog"
	"github.com/kazz187/sprintguild/pkg/storage"
)

type Server struct {
	server                 *http.Server
	env                    *config.Env
	blobs                  *storage.BlobStore
	boardServer            *board.Server
	archiveServer          *archive.Server
	executionServer        *execution.Server
	autotagServer          *autotag.Server
	taskImageServer        *taskimage.Server
	pushNotificationServer *pushnotification.Server
	eventStreamServer      *eventstream.Server
	eventJournalServer     *eventjournal.Server
}

func NewServer(
	env *config.Env,
	blobs *storage.BlobStore,
	boardServer *board.Server,
	archiveServer *archive.Server,
	executionServer *execution.Server,
	autotagServer *autotag.Server,
	taskImageServer *taskimage.Server,
	pushNotificationServer *pushnotification.Server,
	eventStreamServer *eventstream.Server,
	eventJournalServer *eventjournal.Server,
) *Server {
	return &Server{
		env:                    env,
		blobs:                  blobs,
		boardServer:            boardServer,
		archiveServer:          archiveServer,
		executionServer:        executionServer,
		autotagServer:          autotagServer,
		taskImageServer:        taskImageServer,
		pushNotificationServer: pushNotificationServer,
		eventStreamServer:      eventStreamServer,
		eventJournalServer:     eventJournalServer,
	}
}

// Handler builds the full HTTP handler tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(),
			cerr.NewConvertErrorChiMiddleware(),
		)
		s.boardServer.Register(r)
		s.archiveServer.Register(r)
		s.executionServer.Register(r)
		s.autotagServer.Register(r)
		s.taskImageServer.Register(r)
		s.pushNotificationServer.Register(r)
		s.eventJournalServer.Register(r)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	mux := http.NewServeMux()

	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/events", s.eventStreamServer)
	mux.Handle("/api/", r)
	blobPath := blobMountPath(s.env.BlobEnv.BaseURL)
	mux.Handle(blobPath+"/", http.StripPrefix(blobPath+"/", s.blobHandler()))
	mux.Handle(grpchealth.NewHandler(grpchealth.NewStaticChecker()))

	return h2c.NewHandler(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.apiKeyMiddleware(mux)), &http2.Server{})
}

// ListenAndServe starts the HTTP server. ctx becomes the base context of every
// request, so cancelling it ends open event streams before Shutdown waits on
// them.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// blobMountPath returns the local path blob URLs are served under. baseURL may
// be absolute when a proxy fronts the server.
func blobMountPath(baseURL string) string {
	if u, err := url.Parse(baseURL); err == nil {
		baseURL = u.Path
	}
	return "/" + strings.Trim(baseURL, "/")
}

func (s *Server) blobHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		key := r.URL.Path
		body, err := s.blobs.Open(r.Context(), key)
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to read blob", "key", key, "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		defer body.Close()

		br := bufio.NewReaderSize(body, 512)
		sniff, _ := br.Peek(512)
		w.Header().Set("Content-Type", http.DetectContentType(sniff))
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		if r.Method == http.MethodGet {
			if _, err := io.Copy(w, br); err != nil {
				slog.DebugContext(r.Context(), "blob download interrupted", "key", key, "error", err)
			}
		}
	})
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip API key check for health endpoints and when no key is configured.
		if s.env.APIKey == "" || r.URL.Path == "/health" || r.URL.Path == "/grpc.health.v1.Health/Check" {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if apiKey != s.env.APIKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
