package service

import (
	"net/http"
	"umsassist-backend/internal/components/assert"
	"umsassist-backend/internal/components/chrono"
	"umsassist-backend/internal/components/telemetry"
	"umsassist-backend/internal/leaderboard"
	"umsassist-backend/internal/scrapers/ums"
	"umsassist-backend/internal/session"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

const (
	report_api_init        = "api.init"
	report_api_login       = "api.login"
	report_api_semesters   = "api.semesters"
	report_api_attendance  = "api.attendance"
	report_api_leaderboard = "api.leaderboard"
	report_api_panic       = "api.panic"
	report_api_request     = "api.request"
)

// Service serves the JSON api in front of the portal.
type Service struct {
	registry     *session.Registry
	store        leaderboard.Store
	storeBackend string
	portal       ums.Options
	origins      []string
	time         chrono.API
	tel          telemetry.API
}

type serviceConfig struct {
	portal       ums.Options
	origins      []string
	storeBackend string
	time         chrono.API
	tel          telemetry.API
}

type Option func(cfg *serviceConfig)

// WithPortalOptions sets the options of every portal client the service creates.
func WithPortalOptions(opts ums.Options) Option {
	return func(cfg *serviceConfig) {
		cfg.portal = opts
	}
}

// WithAllowedOrigins restricts CORS to the given origins, the default is any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(cfg *serviceConfig) {
		cfg.origins = origins
	}
}

// WithStoreBackend names the leaderboard backend in diagnostics.
func WithStoreBackend(name string) Option {
	return func(cfg *serviceConfig) {
		cfg.storeBackend = name
	}
}

func WithCustomChronoAPI(time chrono.API) Option {
	return func(cfg *serviceConfig) {
		cfg.time = time
	}
}

func WithCustomTelemetryAPI(tel telemetry.API) Option {
	return func(cfg *serviceConfig) {
		cfg.tel = tel
	}
}

func NewService(registry *session.Registry, store leaderboard.Store, options ...Option) (*Service, error) {
	assert.NotNil(registry, "session registry")
	assert.NotNil(store, "leaderboard store")

	cfg := serviceConfig{}
	for _, opt := range options {
		opt(&cfg)
	}

	if cfg.tel == nil {
		cfg.tel = telemetry.SlogAPI{}
	}
	if cfg.time == nil {
		standard, err := chrono.NewStandardImpl()
		if err != nil {
			return nil, err
		}
		cfg.time = standard
	}
	if len(cfg.origins) == 0 {
		cfg.origins = []string{"*"}
	}

	return &Service{
		registry:     registry,
		store:        store,
		storeBackend: cfg.storeBackend,
		portal:       cfg.portal,
		origins:      cfg.origins,
		time:         cfg.time,
		tel:          telemetry.NewScopedAPI("service", cfg.tel),
	}, nil
}

// Handler returns the routes wrapped in CORS and panic recovery.
func (s *Service) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", s.handleHealth).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/init", s.handleInit).Methods("GET")
	api.HandleFunc("/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/logout", s.handleLogout).Methods("POST")
	api.HandleFunc("/semesters", s.handleSemesters).Methods("GET")
	api.HandleFunc("/attendance", s.handleAttendance).Methods("POST")
	api.HandleFunc("/leaderboard/join", s.handleLeaderboardJoin).Methods("POST")
	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods("GET")
	api.HandleFunc("/debug/store", s.handleDebugStore).Methods("GET")

	router.Use(s.logRequests)

	corsOptions := cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		// wildcard origins cannot be combined with credentials
		AllowCredentials: false,
	}
	return s.recoverPanics(cors.New(corsOptions).Handler(router))
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("UMS Backend Running"))
}
