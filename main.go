package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	apihttp "forecourt-cloud/internal/api/http"
	"forecourt-cloud/internal/audit"
	"forecourt-cloud/internal/auth"
	"forecourt-cloud/internal/eventing"
	"forecourt-cloud/internal/eventing/eventbus"
	eventingrepo "forecourt-cloud/internal/eventing/infrastructure/postgres"
	handoverapp "forecourt-cloud/internal/handover/application"
	handoverdirectory "forecourt-cloud/internal/handover/infrastructure/directory"
	handoverrepo "forecourt-cloud/internal/handover/infrastructure/postgres"
	handoverinterfaces "forecourt-cloud/internal/handover/interfaces"
	handoverhttp "forecourt-cloud/internal/handover/interfaces/http"
	masterdatarepo "forecourt-cloud/internal/masterdata/infrastructure/postgres"
	masterdatahttp "forecourt-cloud/internal/masterdata/interfaces/http"
	"forecourt-cloud/internal/observability/metrics"
	readingsapp "forecourt-cloud/internal/readings/application"
	readingsrepo "forecourt-cloud/internal/readings/infrastructure/postgres"
	"forecourt-cloud/internal/readings/infrastructure/pricing"
	readingshttp "forecourt-cloud/internal/readings/interfaces/http"
	settlementapp "forecourt-cloud/internal/settlement/application"
	settlementrepo "forecourt-cloud/internal/settlement/infrastructure/postgres"
	settlementinterfaces "forecourt-cloud/internal/settlement/interfaces"
	settlementhttp "forecourt-cloud/internal/settlement/interfaces/http"
	shiftsapp "forecourt-cloud/internal/shifts/application"
	"forecourt-cloud/internal/shifts/application/events"
	shiftsinterfaces "forecourt-cloud/internal/shifts/interfaces"
	shiftshttp "forecourt-cloud/internal/shifts/interfaces/http"
	"forecourt-cloud/internal/variance"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()
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

	metrics.Init(db, logger)
	stationChecker := auth.NewStationChecker(db)
	auditSink := audit.NewSink(audit.NewRepository(db), logger, metrics.IncAuditFailure)

	policy, err := variance.LoadPolicy()
	if err != nil {
		logger.Fatalf("variance policy error: %v", err)
	}

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(settlementapp.SettlementCreated{})
	registry.Register(handoverapp.HandoverConfirmed{})
	registry.Register(events.ShiftClosed{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, cfg.TenantID, baseBus)

	stationRepo := masterdatarepo.NewStationRepository(db)
	nozzleRepo := masterdatarepo.NewNozzleRepository(db)

	readingRepo := readingsrepo.NewReadingRepository(db)
	var priceProvider readingsapp.PriceProvider = pricing.NewPostgresPriceProvider(db)
	if cfg.FixedPricePerLitre > 0 {
		priceProvider = pricing.FixedPriceProvider{Price: cfg.FixedPricePerLitre}
	}
	ledgerService, err := readingsapp.NewLedgerService(readingRepo, priceProvider, nil)
	if err != nil {
		logger.Fatalf("ledger service error: %v", err)
	}
	readingsHandler, err := readingshttp.NewHandler(ledgerService, stationChecker, auditSink)
	if err != nil {
		logger.Fatalf("readings handler error: %v", err)
	}

	settlementRepo := settlementrepo.NewSettlementRepository(db)
	settlementPublisher := settlementinterfaces.NewOutboxPublisher(publisher, cfg.TenantID)
	settlementService, err := settlementapp.NewSettlementService(settlementRepo, readingRepo, policy, settlementPublisher, nil)
	if err != nil {
		logger.Fatalf("settlement service error: %v", err)
	}
	settlementHandler, err := settlementhttp.NewHandler(settlementService, readingRepo, stationChecker, auditSink)
	if err != nil {
		logger.Fatalf("settlement handler error: %v", err)
	}
	settlementLog := settlementinterfaces.NewLoggingPublisher(logger)
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[settlementapp.SettlementCreated](), "settlement.log", func(ctx context.Context, event any) error {
		evt, ok := event.(settlementapp.SettlementCreated)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		return settlementLog.PublishSettlementCreated(ctx, evt)
	}, processedStore)

	recipientResolver, err := handoverdirectory.NewStationResolver(stationRepo)
	if err != nil {
		logger.Fatalf("recipient resolver error: %v", err)
	}
	handoverRepo := handoverrepo.NewHandoverRepository(db)
	handoverPublisher := handoverinterfaces.NewOutboxPublisher(publisher, cfg.TenantID)
	chainService, err := handoverapp.NewChainService(handoverRepo, recipientResolver, policy, handoverPublisher, nil)
	if err != nil {
		logger.Fatalf("chain service error: %v", err)
	}
	handoverHandler, err := handoverhttp.NewHandler(chainService, stationChecker, auditSink)
	if err != nil {
		logger.Fatalf("handover handler error: %v", err)
	}

	shiftPublisher := shiftsinterfaces.NewOutboxPublisher(publisher, cfg.TenantID)
	shiftService, err := shiftsapp.NewShiftService(shiftPublisher, nil)
	if err != nil {
		logger.Fatalf("shift service error: %v", err)
	}
	shiftHandler, err := shiftshttp.NewHandler(shiftService, stationChecker, auditSink)
	if err != nil {
		logger.Fatalf("shift handler error: %v", err)
	}

	shiftConsumer, err := handoverinterfaces.NewShiftClosedConsumer(chainService, auditSink)
	if err != nil {
		logger.Fatalf("shift consumer error: %v", err)
	}
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[events.ShiftClosed](), "handover.shift_collection", func(ctx context.Context, event any) error {
		evt, ok := event.(events.ShiftClosed)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		if !evt.OccurredAt.IsZero() {
			metrics.ObserveConsumerLag("handover.shift_collection", time.Since(evt.OccurredAt))
		}
		return shiftConsumer.Consume(ctx, evt)
	}, processedStore)

	masterdataHandler, err := masterdatahttp.NewHandler(stationRepo, nozzleRepo, auditSink)
	if err != nil {
		logger.Fatalf("masterdata handler error: %v", err)
	}

	go func() {
		ticker := time.NewTicker(cfg.DispatchInterval)
		defer ticker.Stop()
		for range ticker.C {
			if err := dispatcher.Dispatch(context.Background(), cfg.DispatchBatch); err != nil {
				logger.Printf("outbox dispatch error: %v", err)
			}
		}
	}()

	authPolicy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), authPolicy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/stations", masterdataHandler)
	mux.Handle("/api/v1/stations/", masterdataHandler)
	mux.Handle("/api/v1/readings", readingsHandler)
	mux.Handle("/api/v1/settlements", settlementHandler)
	mux.Handle("/api/v1/settlements/", settlementHandler)
	mux.Handle("/api/v1/handovers", handoverHandler)
	mux.Handle("/api/v1/handovers/", handoverHandler)
	mux.Handle("/api/v1/shifts/close", shiftHandler)
	mux.Handle("/api/v1/exports/settlements", apihttp.NewSettlementsRangeHandler(db))
	mux.Handle("/api/v1/exports/settlements.csv", apihttp.NewExportSettlementsCSVHandler(db))
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
	DatabaseURL        string
	HTTPAddr           string
	TenantID           string
	JWTSecret          string
	FixedPricePerLitre float64
	DispatchInterval   time.Duration
	DispatchBatch      int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:           getenvDefault("TENANT_ID", "tenant-demo"),
		JWTSecret:          getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		FixedPricePerLitre: getenvFloatDefault("FIXED_PRICE_PER_LITRE", 0),
		DispatchInterval:   getenvDuration("OUTBOX_DISPATCH_INTERVAL", 5*time.Second),
		DispatchBatch:      getenvIntDefault("OUTBOX_DISPATCH_BATCH", 50),
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

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
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

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
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
