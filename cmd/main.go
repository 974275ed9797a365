package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"gorm.io/plugin/opentelemetry/tracing"

	proarc "github.com/proarc/proarc-api"
	routing "github.com/proarc/proarc-api/pkg/api"
	"github.com/proarc/proarc-api/pkg/auth"
	"github.com/proarc/proarc-api/pkg/database"
	"github.com/proarc/proarc-api/pkg/export"
	"github.com/proarc/proarc-api/pkg/feed"
	"github.com/proarc/proarc-api/pkg/mapper"
	"github.com/proarc/proarc-api/pkg/migrate"
	"github.com/proarc/proarc-api/pkg/nomencl"
	"github.com/proarc/proarc-api/pkg/remote"
)

func getLogLevelFromEnv() slog.Level {
	levelStr := os.Getenv("LOG_LEVEL")

	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: getLogLevelFromEnv()})))

	exp, err := otlptracegrpc.New(ctx)
	if err != nil {
		panic(err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(
			resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName("proarc-api"),
			),
		),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	if err := database.Open(); err != nil {
		slog.Error("Database setup failed", "error", err)
		os.Exit(1)
	}
	database.DB.Use(tracing.NewPlugin())

	services, err := remote.ParseServices(os.Getenv("REGISTRY_SERVICES"))
	if err != nil {
		slog.Error("Registry service setup failed", "error", err)
		os.Exit(1)
	}

	exportDir := os.Getenv("EXPORT_DIR")
	if exportDir == "" {
		exportDir = "/var/lib/proarc/export"
	}

	store := database.NewStore()
	registry := mapper.NewRegistry()
	feeder := &feed.LogFeeder{}

	env := &routing.Env{
		Store:    store,
		Registry: registry,
		Engine:   migrate.New(store, registry, feeder),
		Exporter: export.New(store, registry),
		Auth: auth.New(services, database.NewUserStore(), auth.Config{
			OneAuthIsEnough: os.Getenv("ONE_AUTH_IS_ENOUGH") == "true",
		}),
		Feeder:    feeder,
		Services:  services,
		Nomencl:   nomencl.NewCache(nomencl.DefaultExpiration),
		ExportDir: exportDir,
	}

	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "HEAD", "PUT", "PATCH", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Server"},
		AllowCredentials: false,
	}))

	addr := ":80"
	if port, hasPort := os.LookupEnv("API_PORT"); hasPort {
		addr = ":" + port
	}

	host := "http://localhost"
	if hostEnv, hasHost := os.LookupEnv("API_HOST"); hasHost {
		host = hostEnv
	} else {
		host += addr
	}

	config := huma.DefaultConfig("ProArc API", "1.0.0")
	config.OpenAPI.Info.Description = proarc.Readme
	config.OpenAPI.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	config.DocsPath = "/"
	config.Servers = []*huma.Server{
		{URL: host},
	}
	api := humachi.New(router, config)

	routing.Setup(api, env)

	server := &http.Server{
		Addr:    addr,
		Handler: otelhttp.NewHandler(router, "api"),
	}

	go func() {
		slog.Info("Starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	go database.ComputeAndCacheStats(false)

	if err := env.ResumeExportJobs(ctx); err != nil {
		slog.Error("Failed to resume export jobs", "error", err)
	}

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		slog.Error("Tracer shutdown failed", "error", err)
	}
}
