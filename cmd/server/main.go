package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/technosupport/ts-camstream/internal/api"
	"github.com/technosupport/ts-camstream/internal/audit"
	"github.com/technosupport/ts-camstream/internal/auth"
	"github.com/technosupport/ts-camstream/internal/blob"
	"github.com/technosupport/ts-camstream/internal/bus"
	"github.com/technosupport/ts-camstream/internal/cameras"
	"github.com/technosupport/ts-camstream/internal/data"
	"github.com/technosupport/ts-camstream/internal/ingest"
	"github.com/technosupport/ts-camstream/internal/middleware"
	"github.com/technosupport/ts-camstream/internal/notify"
	"github.com/technosupport/ts-camstream/internal/ratelimit"
	"github.com/technosupport/ts-camstream/internal/stream"
	"github.com/technosupport/ts-camstream/internal/tokens"
)

// fileConfig is the optional config/default.yaml overlay. Anything not
// set there falls back to env vars and dev defaults.
type fileConfig struct {
	Upload struct {
		AllowedExtensions []string `yaml:"allowed_extensions"`
	} `yaml:"upload"`
	RateLimit middleware.Config `yaml:"rate_limit"`
	NATS      struct {
		URL      string          `yaml:"url"`
		Subjects notify.Subjects `yaml:"subjects"`
	} `yaml:"nats"`
	PublicBase string `yaml:"public_base"`
}

func loadFileConfig(path string) fileConfig {
	cfg := fileConfig{}
	cfg.Upload.AllowedExtensions = ingest.DefaultAllowedExtensions
	cfg.RateLimit = middleware.Config{
		GlobalIP: ratelimit.LimitConfig{Rate: 100, Window: time.Second},
		Upload:   ratelimit.LimitConfig{Rate: 30, Window: time.Second},
	}
	cfg.NATS.Subjects = notify.DefaultSubjects()
	cfg.PublicBase = "http://localhost:8080/frames"

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("config: %s not read (%v), using defaults", path, err)
		return cfg
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		log.Fatalf("config: parse %s: %v", path, err)
	}
	return cfg
}

func main() {
	// 1. Config
	dbHost := os.Getenv("DB_HOST")
	dbUser := os.Getenv("DB_USER")
	dbPass := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	redisAddr := os.Getenv("REDIS_ADDR")
	natsURL := os.Getenv("NATS_URL")
	jwtKey := os.Getenv("JWT_SIGNING_KEY")

	if jwtKey == "" {
		jwtKey = "dev-secret-do-not-use-in-prod"
	}
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	cfg := loadFileConfig("config/default.yaml")
	if natsURL == "" {
		natsURL = cfg.NATS.URL
	}

	// 2. DB Init
	connStr := fmt.Sprintf("postgres://%s:%s@%s:5432/%s?sslmode=disable", dbUser, dbPass, dbHost, dbName)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("DB open error: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("DB ping error: %v", err)
	}

	// Shared Redis client: blobs, pub/sub, blacklist, rate limits.
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis ping error: %v", err)
	}

	// NATS is an optional sink; the service runs without it.
	var notifier interface {
		StateChanged(cam *data.Camera)
		NewFrame(cam *data.Camera, publicURL string)
	} = notify.Noop{}
	if natsURL != "" {
		nc, err := nats.Connect(natsURL, nats.MaxReconnects(-1), nats.ReconnectWait(2*time.Second))
		if err != nil {
			log.Printf("NATS connect failed (%v), lifecycle events disabled", err)
		} else {
			defer nc.Drain()
			notifier = notify.NewNATSNotifier(nc, cfg.NATS.Subjects)
		}
	}

	// 3. Components
	camModel := data.CameraModel{DB: db}
	frameModel := data.FrameModel{DB: db}
	auditService := audit.NewService(db)

	blobStore := blob.NewRedisStore(rdb)
	frameBus := bus.NewRedisBus(rdb)

	camService := cameras.NewService(camModel, auditService, frameModel, notifier)
	ingestService := ingest.NewService(
		blobStore, frameModel, frameBus, notifier,
		ingest.NewValidator(cfg.Upload.AllowedExtensions),
		cfg.PublicBase,
	)
	streamServer := stream.NewServer(camModel, frameBus, blobStore)

	tokenMgr := tokens.NewManager(jwtKey)
	blacklist := auth.NewRedisBlacklist(rdb)
	jwtAuth := middleware.NewJWTAuth(tokenMgr, blacklist)
	apiKeyAuth := middleware.NewAPIKeyAuth(camService)

	limiter := ratelimit.NewLimiter(rdb, "camstream-salt")
	rlMiddleware := middleware.NewRateLimitMiddleware(limiter, cfg.RateLimit)

	cameraHandler := api.NewCameraHandler(camService, auditService, frameModel)
	uploadHandler := api.NewUploadHandler(ingestService)
	streamHandler := api.NewStreamHandler(streamServer)

	// 4. Routing
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(rlMiddleware.GlobalLimiter)

	// Health & Metrics
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Public: live stream held open per viewer, so no timeout here.
	r.Get("/api/v1/cameras/{id}/stream", streamHandler.Stream)

	// Device endpoints (API key)
	r.Group(func(r chi.Router) {
		r.Use(apiKeyAuth.Middleware)
		r.With(rlMiddleware.UploadLimiter).Post("/api/v1/frames", uploadHandler.Upload)
		r.Get("/api/v1/camera-state", uploadHandler.CameraState)
	})

	// Admin endpoints (JWT)
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))
		r.Use(jwtAuth.Middleware)
		r.Get("/api/v1/cameras", cameraHandler.List)
		r.Put("/api/v1/cameras", cameraHandler.Register)
		r.Get("/api/v1/streams", cameraHandler.Streams)
		r.Post("/api/v1/cameras/{id}/state", cameraHandler.ToggleState)
		r.Delete("/api/v1/cameras/{id}", cameraHandler.Remove)
		r.Get("/api/v1/cameras/{id}/history", cameraHandler.History)
		r.Get("/api/v1/cameras/{id}/frames", cameraHandler.RecentFrames)
	})

	// 5. Start Server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("camstream listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// 6. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
