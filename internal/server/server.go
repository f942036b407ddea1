package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/todoapi/apiserver/config"
	"github.com/todoapi/apiserver/internal/auth"
	"github.com/todoapi/apiserver/internal/db"
	"github.com/todoapi/apiserver/internal/handlers"
	"github.com/todoapi/apiserver/internal/logging"
	"github.com/todoapi/apiserver/internal/mq"
	"github.com/todoapi/apiserver/internal/services"
	"github.com/todoapi/apiserver/internal/storage"
	"github.com/todoapi/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
	storage    *storage.Storage
	log        logging.Logger
}

// Dependencies are the already-opened resources the router is built from.
type Dependencies struct {
	DB      *sql.DB
	Broker  *mq.MQ
	Storage *storage.Storage
	Log     logging.Logger
}

// New opens the database, broker and object storage named in cfg and
// constructs a Server.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logging.New(cfg.Log)

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open event broker: %w", err)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = broker.Close()
		_ = dbConn.Close()
		return nil, fmt.Errorf("open object storage: %w", err)
	}

	router, err := NewRouter(cfg, Dependencies{
		DB:      dbConn,
		Broker:  broker,
		Storage: objects,
		Log:     log,
	})
	if err != nil {
		_ = closeResources(dbConn, broker, objects)
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
		storage:    objects,
		log:        log,
	}, nil
}

// NewRouter wires repositories, services and handlers onto a chi router.
func NewRouter(cfg config.Config, deps Dependencies) (*chi.Mux, error) {
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	events := mq.NewEventBus(deps.Broker, cfg.MQ.Channel, deps.Log)

	userRepo := store.NewUserRepository(deps.DB)
	todoRepo := store.NewTodoRepository(deps.DB)

	userService := services.NewUserService(userRepo, hasher, tokens, cfg.Auth.TokenTTL, events, deps.Log)
	todoService := services.NewTodoService(todoRepo, events, deps.Log)

	var objects services.ObjectPutter
	if deps.Storage != nil {
		objects = deps.Storage
	}
	exportService := services.NewExportService(todoRepo, objects, deps.Log)

	authMiddleware := handlers.RequireAuth(tokens)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(deps.DB))
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, deps.Log)
	})
	router.Route("/user", func(r chi.Router) {
		handlers.UserRouter(r, userService, authMiddleware, deps.Log)
	})
	router.Route("/todos", func(r chi.Router) {
		handlers.TodoRouter(r, todoService, authMiddleware, deps.Log)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, todoService, userService, exportService, authMiddleware, deps.Log)
	})

	return router, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker, object storage
// and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, closeResources(s.db, s.broker, s.storage))
}

// closeResources closes whichever of the opened resources are non-nil. The
// database goes last so in-flight publishes and uploads can finish first.
func closeResources(dbConn *sql.DB, broker *mq.MQ, objects *storage.Storage) error {
	var err error
	if broker != nil {
		err = errors.Join(err, broker.Close())
	}
	if objects != nil {
		err = errors.Join(err, objects.Close())
	}
	if dbConn != nil {
		err = errors.Join(err, dbConn.Close())
	}
	return err
}
