package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/CardDesk/internal/flow"
	"github.com/BTreeMap/CardDesk/internal/messaging"
	"github.com/BTreeMap/CardDesk/internal/store"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// Server serves the browser chat surface and the Twilio webhook.
type Server struct {
	dispatcher *flow.Dispatcher
	sessions   *flow.SessionManager
	archive    store.ArchiveRepo
	twilio     *messaging.TwilioService // nil when the Twilio channel is disabled

	corsOrigins    []string
	rateLimit      int
	requestTimeout time.Duration
	secureCookies  bool
}

// NewServer creates a Server. twilio may be nil.
func NewServer(dispatcher *flow.Dispatcher, sessions *flow.SessionManager, archive store.ArchiveRepo, twilio *messaging.TwilioService, cfg Opts) *Server {
	return &Server{
		dispatcher:     dispatcher,
		sessions:       sessions,
		archive:        archive,
		twilio:         twilio,
		corsOrigins:    cfg.CORSOrigins,
		rateLimit:      cfg.RateLimit,
		requestTimeout: cfg.RequestTimeout,
		secureCookies:  cfg.SecureCookies,
	}
}

// Router builds the chi router with middleware and every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.requestTimeout > 0 {
		r.Use(middleware.Timeout(s.requestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.rateLimit > 0 {
		r.Use(httprate.LimitByIP(s.rateLimit, time.Minute))
	}

	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(methodNotAllowedHandler)

	r.Post("/handle_chat", s.chatHandler)
	r.Get("/history", s.historyHandler)
	r.Post("/reset", s.resetHandler)
	r.Post("/feedback", s.feedbackHandler)
	r.Get("/feedback", s.listFeedbackHandler)
	r.Get("/health", s.healthHandler)
	if s.twilio != nil {
		r.Post(TwilioWebhookPath, s.twilio.WebhookHandler)
		slog.Debug("Server.Router: Twilio webhook mounted", "path", TwilioWebhookPath)
	}
	return r
}

// requestLogger logs one line per request once the handler returns.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		}()
		next.ServeHTTP(ww, r)
	})
}
