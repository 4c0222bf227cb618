package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sparkride/apiserver/config"
	"github.com/sparkride/apiserver/internal/db"
	"github.com/sparkride/apiserver/internal/handlers"
	"github.com/sparkride/apiserver/internal/mq"
	"github.com/sparkride/apiserver/internal/services"
	"github.com/sparkride/apiserver/internal/storage"
	"github.com/sparkride/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	objectStorage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if objectStorage != nil {
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			return nil, fmt.Errorf("ensure bucket failed: %w", err)
		}
	}

	broker, err := newBroker(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	bikeRepo := store.NewBikeRepository(dbConn)
	stationRepo := store.NewStationRepository(dbConn)
	reservationRepo := store.NewReservationRepository(dbConn)
	analyticsRepo := store.NewAnalyticsRepository(dbConn)

	userService := services.NewUserService(userRepo)
	inventoryService := services.NewInventoryService(bikeRepo, stationRepo)
	analyticsService := services.NewAnalyticsService(analyticsRepo)
	imageService := services.NewImageService(objectStorage)

	var events services.EventPublisher
	if broker != nil {
		events = broker
	}
	reservationService := services.NewReservationService(reservationRepo, bikeRepo, events)

	// Older deployments created reservations without a public code.
	if n, err := reservationService.BackfillCodes(ctx); err != nil {
		log.Printf("reservation code backfill failed: %v", err)
	} else if n > 0 {
		log.Printf("backfilled reservation codes for %d reservations", n)
	}

	authMiddleware := handlers.RequireAuth(jwtSecret)
	adminMiddleware := handlers.RequireAdmin(userService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, jwtSecret)
	})
	router.Route("/bikes", func(r chi.Router) {
		handlers.BikeRouter(r, inventoryService, imageService, authMiddleware, adminMiddleware)
	})
	router.Route("/stations", func(r chi.Router) {
		handlers.StationRouter(r, inventoryService, authMiddleware, adminMiddleware)
	})
	router.Route("/reservations", func(r chi.Router) {
		handlers.ReservationRouter(r, reservationService, userService, authMiddleware, adminMiddleware)
	})
	router.Route("/analytics", func(r chi.Router) {
		handlers.AnalyticsRouter(r, analyticsService, authMiddleware, adminMiddleware)
	})
	router.Route("/uploads", func(r chi.Router) {
		handlers.UploadsRouter(r, imageService)
	})

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
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendMinio:
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("init minio failed: %w", err)
		}
		return storage.NewStorage(client), nil
	case config.StorageBackendGCS:
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("init gcs failed: %w", err)
		}
		return storage.NewStorage(client), nil
	case config.StorageBackendNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func newBroker(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQBackend {
	case config.MQBackendRabbitMQ:
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("init rabbitmq failed: %w", err)
		}
		return mq.New(client), nil
	case config.MQBackendPubSub:
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("init pubsub failed: %w", err)
		}
		return mq.New(client), nil
	case config.MQBackendNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQBackend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
