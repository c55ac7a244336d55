package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appinventory "github.com/stitchmall/ordercore/internal/application/inventory"
	apporder "github.com/stitchmall/ordercore/internal/application/order"
	apppayment "github.com/stitchmall/ordercore/internal/application/payment"
	domcart "github.com/stitchmall/ordercore/internal/domain/cart"
	domorder "github.com/stitchmall/ordercore/internal/domain/order"
	domoutbox "github.com/stitchmall/ordercore/internal/domain/outbox"
	domproduct "github.com/stitchmall/ordercore/internal/domain/product"
	"github.com/stitchmall/ordercore/internal/infrastructure/audit"
	"github.com/stitchmall/ordercore/internal/infrastructure/iamport"
	"github.com/stitchmall/ordercore/internal/infrastructure/id"
	"github.com/stitchmall/ordercore/internal/infrastructure/kafka"
	"github.com/stitchmall/ordercore/internal/infrastructure/memory"
	"github.com/stitchmall/ordercore/internal/infrastructure/observability/otelboot"
	"github.com/stitchmall/ordercore/internal/infrastructure/observability/oteltrace"
	"github.com/stitchmall/ordercore/internal/infrastructure/observability/prometrics"
	"github.com/stitchmall/ordercore/internal/infrastructure/observability/telemetry"
	"github.com/stitchmall/ordercore/internal/infrastructure/observability/zaplogger"
	"github.com/stitchmall/ordercore/internal/infrastructure/ordernum"
	"github.com/stitchmall/ordercore/internal/infrastructure/outbox"
	"github.com/stitchmall/ordercore/internal/infrastructure/postgres"
	"github.com/stitchmall/ordercore/internal/observability"
	"github.com/stitchmall/ordercore/internal/pkg/logging"
	httppresentation "github.com/stitchmall/ordercore/internal/presentation/http"
)

const serviceVersion = "0.1.0"

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "ordercore")
	env := getenvDefault("ENV", "dev")
	baseLogger := logging.MustNewLogger(serviceName, env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing is opt-in: without an endpoint spans stay local no-ops.
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		shutdown, err := otelboot.InitTracerProvider(ctx, serviceName, serviceVersion, endpoint)
		if err != nil {
			systemLogger.Fatal("otel_init_failed", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				systemLogger.Error("otel_shutdown_error", zap.Error(err))
			}
		}()
	}

	tel := buildTelemetry(baseLogger)

	orderRepo, productRepo, cartRepo := buildRepositories(systemLogger)

	oracle := iamport.NewClient(
		getenvDefault("IAMPORT_BASE_URL", "https://api.iamport.kr"),
		os.Getenv("IAMPORT_API_KEY"),
		os.Getenv("IAMPORT_API_SECRET"),
	)
	policy := paymentPolicy(env, os.Getenv("PAYMENT_POLICY"), os.Getenv("IAMPORT_API_KEY"))
	verifier := apppayment.NewService(oracle, orderRepo, policy, tel.Logger())

	ledger := appinventory.NewService(productRepo, tel.Logger())
	allocator := ordernum.New(orderRepo)
	idGenerator := id.NewUUIDGenerator()

	// In-process event bus; the audit worker consumes what the order service
	// publishes and optionally forwards to Kafka.
	bus := outbox.NewBus(tel.Logger())
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	var forward domoutbox.Publisher
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		publisher := kafka.NewPublisher(strings.Split(brokers, ","), getenvDefault("KAFKA_TOPIC", "order-events"))
		defer func() { _ = publisher.Close() }()
		forward = publisher
	}
	auditWorker := audit.New(bus, forward, tel)
	auditWorker.Start()

	orderService := apporder.NewService(orderRepo, cartRepo, ledger, verifier, allocator, idGenerator, bus, tel)

	handler := httppresentation.NewHandler(orderService, tel.Logger(), tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    getenvDefault("HTTP_ADDR", ":8080"),
		Handler: mux,
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
}

// buildRepositories selects the storage backend. Postgres needs POSTGRES_URL;
// the default in-memory backend serves local development and tests.
func buildRepositories(logger *zap.Logger) (domorder.Repository, domproduct.Repository, domcart.Repository) {
	backend := getenvDefault("STORAGE_BACKEND", "memory")
	switch backend {
	case "postgres":
		dsn := os.Getenv("POSTGRES_URL")
		if dsn == "" {
			logger.Fatal("POSTGRES_URL is required when STORAGE_BACKEND=postgres")
		}
		db, err := postgres.Open(dsn)
		if err != nil {
			logger.Fatal("postgres_open_failed", zap.Error(err))
		}
		return postgres.NewOrderRepository(db), postgres.NewProductRepository(db), postgres.NewCartRepository(db)
	case "memory":
		return memory.NewOrderRepository(), memory.NewProductRepository(), memory.NewCartRepository()
	default:
		logger.Fatal("unknown storage backend", zap.String("backend", backend))
		return nil, nil, nil
	}
}

func buildTelemetry(baseLogger *zap.Logger) observability.Observability {
	registry := prometrics.New("", "")

	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: registry.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests.",
			"method", "route", "status",
		),
		observability.MExternalRequests: registry.Counter(
			string(observability.MExternalRequests),
			"Total number of calls to external peers.",
			"peer", "endpoint", "outcome",
		),
		observability.MStockRollbackFailures: registry.Counter(
			string(observability.MStockRollbackFailures),
			"Count of stock reservations that could not be released.",
			"stage",
		),
		observability.MOrderEvents: registry.Counter(
			string(observability.MOrderEvents),
			"Count of order lifecycle events observed on the bus.",
			"event",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case",
		),
		observability.MHTTPRequestDuration: registry.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP request handling in seconds.",
			prometheus.DefBuckets,
			"method", "route", "status",
		),
		observability.MExternalRequestDuration: registry.Histogram(
			string(observability.MExternalRequestDuration),
			"Duration of external peer calls in seconds.",
			prometheus.DefBuckets,
			"peer", "endpoint",
		),
	}

	return telemetry.New(
		oteltrace.New("ordercore"),
		zaplogger.Wrap(baseLogger),
		counters,
		histograms,
	)
}

// paymentPolicy resolves the gateway-failure policy for payment verification.
// An explicit PAYMENT_POLICY setting wins. Left unset, gateway failures abort
// order creation; the permissive fallback applies only to a local development
// run without gateway credentials.
func paymentPolicy(env, flag, apiKey string) apppayment.Policy {
	switch apppayment.Policy(strings.ToLower(flag)) {
	case apppayment.PolicyStrict:
		return apppayment.PolicyStrict
	case apppayment.PolicyPermissive:
		return apppayment.PolicyPermissive
	}
	if (env == "dev" || env == "development") && apiKey == "" {
		return apppayment.PolicyPermissive
	}
	return apppayment.PolicyStrict
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
