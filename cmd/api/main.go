package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"

	"media-studio/cmd/api/router"
	"media-studio/cmd/api/services"
	"media-studio/internal/logger"
	"media-studio/config"
	"media-studio/db"
	"media-studio/debugger"
	_ "media-studio/docs" // swag will generate this package
	"media-studio/eventbus"
	"media-studio/monitoring"
	"media-studio/predictions"
	"media-studio/repositories"
)

// @title           Media Studio API
// @version         1.0
// @description     Prompt-to-media generation backed by a hosted inference provider, with request monitoring and wire-level debug capture
// @BasePath        /
func main() {
	config.InitApp()
	cfg := config.GetConfig()
	logger.Init(cfg.Logging.Level)

	recorder := debugger.New()
	store := monitoring.NewStore()

	client := predictions.NewClient(predictions.ClientOptions{
		BaseURL: cfg.Provider.BaseURL,
		Token:   cfg.InferenceAPIToken,
		Timeout: time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
	}, recorder)
	orch := predictions.NewOrchestrator(client, store, predictions.Config{
		ModelVersion: cfg.Provider.ModelVersion,
		VideoModel:   cfg.Provider.VideoModel,
		MaxAttempts:  cfg.Polling.MaxAttempts,
		PollDelay:    time.Duration(cfg.Polling.DelayMs) * time.Millisecond,
	})

	// The archive and the event bus are optional backing services; the app
	// serves generations without them.
	var archive *repositories.GenerationLogRepository
	var ping func(ctx context.Context) error
	if cfg.MongoURI != "" {
		if err := db.Init(context.Background()); err != nil {
			log.Fatal(err)
		}
		archive = repositories.NewGenerationLogRepository(db.Database())
		ping = db.Ping
	} else {
		logger.Log.Warn("MONGO_URI not set, generation archive disabled")
	}

	var publisher eventbus.Publisher
	if cfg.KafkaBrokers != "" {
		kp, err := eventbus.NewKafkaPublisher(cfg.KafkaBrokers)
		if err != nil {
			log.Fatal(err)
		}
		defer kp.Close()
		publisher = kp
	} else {
		logger.Log.Warn("KAFKA_BOOTSTRAP_SERVERS not set, event publishing disabled")
	}

	svc := services.NewGenerationService(orch, store, archive, publisher, cfg.Kafka.Topic)

	r := router.New(router.Deps{
		Service:  svc,
		Client:   client,
		Recorder: recorder,
		Store:    store,
		Archive:  archive,
		DBPing:   ping,
	})

	// The dev-tools panel is served from a separate origin during development.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-Id", "X-Span-Id"},
	}).Handler(r)

	logger.Log.Infof("listening on %s", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, corsHandler); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
