package main

import (
	"context"
	"log"
	"net/http"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"

	dmconfig "github.com/drivemail/drivemail/config"
	assistanthandler "github.com/drivemail/drivemail/internal/assistant/handler"
	"github.com/drivemail/drivemail/internal/httputil"
	"github.com/drivemail/drivemail/pkg/actions"
	"github.com/drivemail/drivemail/pkg/assistant"
	"github.com/drivemail/drivemail/pkg/classifier"
	"github.com/drivemail/drivemail/pkg/events"
	"github.com/drivemail/drivemail/pkg/intent"
	"github.com/drivemail/drivemail/pkg/mail"
	"github.com/drivemail/drivemail/pkg/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWithOIDC[dmconfig.AssistantConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()

	ctx, srv := frame.NewService(
		frame.WithConfig(&cfg),
		frame.WithName("drivemail-assistant"),
		frame.WithRegisterServerOauth2Client(),
		frame.WithDatastore(),
		frame.WithRegisterPublisher(eventRef, eventURL),
	)
	defer srv.Stop(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	authenticator := srv.SecurityManager().GetAuthenticator(ctx)

	pub := events.NewPublisher(srv.QueueManager(), "assistant", eventRef)

	repo := store.NewRepository(
		srv.DatastoreManager().GetPool(ctx, "__default__pool_name__"),
	)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("migrating datastore: %v", err)
	}

	loader := intent.NewLoader(cfg.SchemaDir)
	if _, err := loader.LoadAll(); err != nil {
		log.Printf("warning: loading intent schemas: %v", err)
	}
	if _, ok := loader.Get(cfg.SchemaName); !ok {
		log.Printf("schema %q not found in %s, using built-in defaults", cfg.SchemaName, cfg.SchemaDir)
	}
	schemaSource := func() *intent.Schema {
		if s, ok := loader.Get(cfg.SchemaName); ok {
			return s
		}
		return intent.Default()
	}

	// Schemas reload on file change without a restart.
	_ = pool.Submit(ctx, func() {
		if err := loader.WatchAndReload(ctx.Done()); err != nil {
			log.Printf("warning: schema watcher stopped: %v", err)
		}
	})

	gemini, err := classifier.NewGemini(cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("configuring classifier: %v", err)
	}

	dispatcher := actions.NewDispatcher(repo, mail.NewGmailFactory(cfg.GmailBaseURL), gemini, pub, actions.Config{
		ReadDefaultLimit:    cfg.ReadDefaultLimit,
		SummaryDefaultLimit: cfg.SummaryLimit,
		MailContextLimit:    cfg.MailContextLimit,
	})

	manager := assistant.NewManager(schemaSource, gemini, dispatcher, repo,
		assistant.WithTurnTimeout(cfg.TurnTimeout()),
		assistant.WithPublisher(pub),
	)

	apiMux := http.NewServeMux()
	h := assistanthandler.NewAssistantHandler(manager, repo)
	h.RegisterRoutes(apiMux)

	mux := http.NewServeMux()
	mux.Handle("/api/", httputil.AuthenticatedMiddleware(httputil.LoggingMiddleware(apiMux), authenticator))

	srv.Init(ctx,
		frame.WithRegisterSubscriber(eventRef+".audit", eventURL, &events.AuditSubscriber{}),
		frame.WithHTTPHandler(httputil.H2CHandler(mux)),
	)

	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}
