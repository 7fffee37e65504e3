package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"verdant-cloud/internal/audit"
	"verdant-cloud/internal/auth"
	"verdant-cloud/internal/broadcast"
	broadcasthttp "verdant-cloud/internal/broadcast/interfaces/http"
	catchupapp "verdant-cloud/internal/catchup/application"
	catchuphttp "verdant-cloud/internal/catchup/interfaces/http"
	ledgerinterfaces "verdant-cloud/internal/ledger/interfaces"
	ledgerpg "verdant-cloud/internal/ledger/infrastructure/postgres"
	"verdant-cloud/internal/observability/metrics"
	resynchttp "verdant-cloud/internal/resync/interfaces/http"
	snapshotapp "verdant-cloud/internal/snapshot/application"
	snapshotpg "verdant-cloud/internal/snapshot/infrastructure/postgres"
	snapshothttp "verdant-cloud/internal/snapshot/interfaces/http"
	"verdant-cloud/internal/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		logger.Fatalf("db migrate error: %v", err)
	}

	metrics.Init(db, logger)
	zoneChecker := auth.NewZoneChecker(db)
	auditRepo := audit.NewRepository(db)

	eventStore := ledgerpg.NewEventStore(db)

	catchupService, err := catchupapp.NewService(eventStore)
	if err != nil {
		logger.Fatalf("catchup service error: %v", err)
	}
	catchupHandler := catchuphttp.NewHandler(catchupService, zoneChecker)

	snapshotReaders := snapshotpg.NewReaders(db)
	snapshotBuilder, err := snapshotapp.NewBuilder(snapshotReaders, snapshotReaders, snapshotReaders, snapshotReaders, eventStore, systemClock{})
	if err != nil {
		logger.Fatalf("snapshot builder error: %v", err)
	}
	snapshotHandler := snapshothttp.NewHandler(snapshotBuilder, zoneChecker)

	resyncHandler := resynchttp.NewHandler(snapshotReaders, snapshotReaders, snapshotReaders, systemClock{}, zoneChecker)

	broker := broadcast.NewBroker()
	var forwarder broadcast.Forwarder
	if cfg.NATSURL != "" {
		natsForwarder, err := broadcast.NewNATSForwarder(cfg.NATSURL)
		if err != nil {
			logger.Fatalf("nats forwarder error: %v", err)
		}
		defer natsForwarder.Close()
		forwarder = natsForwarder
	}
	recorder, err := broadcast.NewRecorder(eventStore, broker, forwarder, logger)
	if err != nil {
		logger.Fatalf("recorder error: %v", err)
	}

	streamHandler := broadcasthttp.NewStreamHandler(broker, zoneChecker)
	globalStreamHandler := broadcasthttp.NewGlobalStreamHandler(broker)
	recordHandler := broadcasthttp.NewRecordHandler(recorder, zoneChecker)

	exportHandler := ledgerinterfaces.NewExportHandler(eventStore, zoneChecker, auditRepo, logger)

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	producerAuth := auth.NewProducerAuthMiddleware([]byte(cfg.ProducerSecret), time.Duration(cfg.ProducerSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/zones/{zone}/events", catchupHandler)
	mux.Handle("POST /api/v1/zones/{zone}/events", producerAuth.Wrap(recordHandler))
	mux.Handle("GET /api/v1/zones/{zone}/snapshot", snapshotHandler)
	mux.Handle("GET /api/v1/zones/{zone}/resync", resyncHandler)
	mux.Handle("GET /api/v1/zones/{zone}/stream", streamHandler)
	mux.Handle("GET /api/v1/stream", globalStreamHandler)
	mux.Handle("GET /api/v1/zones/{zone}/events/export.csv", exportHandler)
	mux.Handle("GET /api/v1/zones/{zone}/events/export.xlsx", exportHandler)
	mux.Handle("GET /api/v1/zones/{zone}/events/export.pdf", exportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL         string
	HTTPAddr            string
	NATSURL             string
	JWTSecret           string
	ProducerSecret      string
	ProducerSkewSeconds int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:         getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:            getenvDefault("HTTP_ADDR", ":8080"),
		NATSURL:             getenvDefault("NATS_URL", ""),
		JWTSecret:           getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		ProducerSecret:      getenvDefault("PRODUCER_HMAC_SECRET", ""),
		ProducerSkewSeconds: getenvIntDefault("PRODUCER_MAX_SKEW_SECONDS", 300),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush lets the SSE stream handlers flush through the logging wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
