package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/tindahan/api/internal/handlers"
	"github.com/tindahan/api/internal/ingest"
	"github.com/tindahan/api/internal/platform/auth"
	"github.com/tindahan/api/internal/platform/config"
	pfirestore "github.com/tindahan/api/internal/platform/firestore"
	"github.com/tindahan/api/internal/platform/jobs"
	"github.com/tindahan/api/internal/platform/observability"
	"github.com/tindahan/api/internal/platform/secrets"
	platformstorage "github.com/tindahan/api/internal/platform/storage"
	firestoreRepo "github.com/tindahan/api/internal/repositories/firestore"
	"github.com/tindahan/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	imageResolver := newImageResolver(logger, cfg)

	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider, logger.Named("orders"))
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	returnRepo, err := firestoreRepo.NewReturnRequestRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise return repository", zap.Error(err))
	}

	var enricher *ingest.Enricher
	if cfg.Features.EnableHydration {
		enricher, err = ingest.NewEnricher(ingest.EnricherDeps{
			Products: productRepo,
			Images:   imageResolver,
			Logger:   logger.Named("hydration"),
		})
		if err != nil {
			logger.Fatal("failed to initialise enricher", zap.Error(err))
		}
	} else {
		logger.Info("product hydration disabled by feature flag")
	}

	aggregator, err := ingest.NewAggregator(ingest.AggregatorDeps{
		Orders:   orderRepo,
		Enricher: enricher,
		Logger:   logger.Named("aggregator"),
	})
	if err != nil {
		logger.Fatal("failed to initialise aggregator", zap.Error(err))
	}

	var reporting services.ReportingSyncPublisher
	var pubsubClient *pubsub.Client
	if cfg.Features.EnableReportingSync {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.Reporting.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		publisher, err := jobs.NewPubSubReportingPublisher(pubsubClient.Topic(cfg.Reporting.Topic))
		if err != nil {
			logger.Fatal("failed to initialise reporting publisher", zap.Error(err))
		}
		reporting = publisher
	}
	defer func() {
		if pubsubClient != nil {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}
	}()

	fulfillmentService, err := services.NewFulfillmentService(services.FulfillmentServiceDeps{
		Orders:    orderRepo,
		Reporting: reporting,
		Clock:     time.Now,
		Logger:    logger.Named("fulfillment"),
	})
	if err != nil {
		logger.Fatal("failed to initialise fulfillment service", zap.Error(err))
	}

	queryService, err := services.NewOrderQueryService(services.OrderQueryServiceDeps{
		Orders:   orderRepo,
		Enricher: enricher,
		Logger:   logger.Named("orders"),
	})
	if err != nil {
		logger.Fatal("failed to initialise order query service", zap.Error(err))
	}

	returnService, err := services.NewReturnService(services.ReturnServiceDeps{
		Returns: returnRepo,
		Orders:  orderRepo,
		Logger:  logger.Named("returns"),
	})
	if err != nil {
		logger.Fatal("failed to initialise return service", zap.Error(err))
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	orderHandlers := handlers.NewOrderHandlers(authenticator, queryService, fulfillmentService, aggregator, logger.Named("http"))
	returnHandlers := handlers.NewReturnHandlers(authenticator, returnService)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadinessChecks(firestoreReadinessCheck(firestoreClient)),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(cfg.Firebase.ProjectID),
			observability.RequestLoggerMiddleware(cfg.Firebase.ProjectID),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithReturnRoutes(returnHandlers.Routes),
	)

	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays unset: the order feed streams indefinitely.
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("tindahan api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	envLabel := strings.ToLower(lookup("API_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// newImageResolver builds the signed URL resolver when signing material is
// configured. Orders still flow without it; thumbnails just stay blank for
// blob-backed images.
func newImageResolver(logger *zap.Logger, cfg config.Config) ingest.ImageURLResolver {
	signerKey := strings.TrimSpace(cfg.Storage.SignedURLKey)
	if signerKey == "" {
		logger.Info("storage signer key not configured; blob image resolution disabled")
		return nil
	}
	signer, err := platformstorage.NewServiceAccountSignerFromJSON([]byte(signerKey))
	if err != nil {
		logger.Warn("failed to parse storage signer key; blob image resolution disabled", zap.Error(err))
		return nil
	}
	resolver, err := platformstorage.NewImageResolver(signer, platformstorage.WithDownloadTTL(cfg.Storage.SignedURLTTL))
	if err != nil {
		logger.Warn("failed to initialise image resolver; blob image resolution disabled", zap.Error(err))
		return nil
	}
	return resolver
}

func firestoreReadinessCheck(client *firestore.Client) handlers.ReadinessCheck {
	return handlers.ReadinessCheck{
		Name: "firestore",
		Check: func(ctx context.Context) error {
			iter := client.Collections(ctx)
			_, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			return err
		},
	}
}
