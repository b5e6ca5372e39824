package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/workerpool"

	caconfig "github.com/cheamigo/cheamigo/config"
	"github.com/cheamigo/cheamigo/internal/assistant"
	assistanthandler "github.com/cheamigo/cheamigo/internal/assistant/handler"
	"github.com/cheamigo/cheamigo/internal/assistant/ws"
	"github.com/cheamigo/cheamigo/internal/connectutil"
	"github.com/cheamigo/cheamigo/internal/history"
	"github.com/cheamigo/cheamigo/internal/notify"
	notifyapi "github.com/cheamigo/cheamigo/internal/notify/api"
	"github.com/cheamigo/cheamigo/internal/registry"
	"github.com/cheamigo/cheamigo/internal/speech/player"
	"github.com/cheamigo/cheamigo/internal/speech/voices"
	"github.com/cheamigo/cheamigo/internal/vision/describe"
	"github.com/cheamigo/cheamigo/pkg/assistantv1/assistantv1connect"
	"github.com/cheamigo/cheamigo/pkg/events"
	"github.com/cheamigo/cheamigo/pkg/phrases"

	// Register synthesizers and vision models via init().
	_ "github.com/cheamigo/cheamigo/internal/speech/backends/espeak"
	_ "github.com/cheamigo/cheamigo/internal/speech/backends/silent"
	_ "github.com/cheamigo/cheamigo/internal/vision/backends/gemini"
	_ "github.com/cheamigo/cheamigo/internal/vision/backends/ollama"
	_ "github.com/cheamigo/cheamigo/internal/vision/backends/openai"
)

const defaultPool = "__default__pool_name__"

func main() {
	ctx := context.Background()

	// A local .env is optional; the environment always wins.
	_ = godotenv.Load()

	cfg, err := config.LoadWithOIDC[caconfig.ServiceConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()

	opts := []frame.Option{
		frame.WithConfig(&cfg),
		frame.WithName("cheamigo"),
		frame.WithRegisterPublisher(eventRef, eventURL),
		frame.WithWorkerPoolOptions(
			workerpool.WithPoolCount(cfg.WorkerPoolCount),
			workerpool.WithSinglePoolCapacity(cfg.WorkerPoolCapacity),
		),
	}
	if cfg.HistoryEnabled {
		opts = append(opts, frame.WithDatastore())
	}
	ctx, srv := frame.NewService(opts...)
	defer srv.Stop(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	pub := events.NewPublisher(srv.QueueManager(), "cheamigo", eventRef)

	// --- Phrases ---
	loader := phrases.NewLoader(cfg.PhrasesDir)
	if _, err := loader.LoadAll(); err != nil {
		slog.WarnContext(ctx, "loading phrases, using built-in set", slog.String("error", err.Error()))
	}
	if cfg.PhrasesReload {
		done := make(chan struct{})
		defer close(done)
		go func() {
			if err := loader.WatchAndReload(done); err != nil {
				slog.WarnContext(ctx, "phrase watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}
	set := loader.Get(cfg.Language)

	// --- Vision ---
	model, err := registry.Describers.Create(cfg.VisionBackend, cfg.VisionOptions())
	if err != nil {
		log.Fatalf("creating vision backend %q: %v", cfg.VisionBackend, err)
	}
	defer closeIfCloser(ctx, cfg.VisionBackend, model)
	flow := describe.NewFlowWithTexts(model, func() describe.Texts {
		s := loader.Get(cfg.Language)
		return describe.Texts{Prompt: s.DescribePrompt, Fallback: s.FallbackDescription}
	})
	flow.Timeout = cfg.DescribeTimeout()

	// --- Server-local speech ---
	synth, err := registry.Synthesizers.Create(cfg.SynthBackend, cfg.SynthOptions())
	if err != nil {
		slog.WarnContext(ctx, "speech backend unavailable, speaking silently",
			slog.String("backend", cfg.SynthBackend), slog.String("error", err.Error()))
		if synth, err = registry.Synthesizers.Create("silent", nil); err != nil {
			log.Fatalf("creating silent backend: %v", err)
		}
	}
	defer synth.Close()

	play := player.New(synth, voices.NewCatalog(synth, cfg.VoicesFallback()), player.Config{
		SubmitDelay:  cfg.SubmitDelay(),
		SystemLocale: cfg.SystemLocale,
	})
	local := assistant.New(play, flow, assistant.Options{
		Language:  cfg.Language,
		SessionID: "local",
		Phrases:   set,
		Emitter:   pub,
		Pitch:     cfg.Pitch,
	})
	defer local.Close()
	local.UpdateSettings(assistant.Settings{Volume: cfg.Volume, Rate: cfg.Rate})

	// --- History and notifications ---
	var (
		historyStore history.Store = history.NewMemoryStore(cfg.HistoryMemoryMax)
		notifyStore  notify.Store  = notify.NewMemoryStore()
	)
	if cfg.HistoryEnabled {
		dbPool := srv.DatastoreManager().GetPool(ctx, defaultPool)

		histRepo := history.NewRepository(dbPool)
		if err := histRepo.Migrate(ctx); err != nil {
			log.Fatalf("migrating history: %v", err)
		}
		historyStore = histRepo

		notifyRepo := notify.NewRepository(dbPool)
		if err := notifyRepo.Migrate(ctx); err != nil {
			log.Fatalf("migrating notifications: %v", err)
		}
		notifyStore = notifyRepo
	}

	urlCheck := notify.URLChecker{}
	dispatcher := notify.NewDispatcher(notifyStore, notify.DispatcherConfig{
		MaxAttempts:     cfg.WebhookMaxRetries,
		Timeout:         secs(cfg.WebhookTimeoutSec),
		BackoffInitial:  secs(cfg.WebhookBackoffSec),
		BackoffMax:      secs(cfg.WebhookBackoffMax),
		BreakerFailures: cfg.CBFailThreshold,
		BreakerCooldown: secs(cfg.CBResetTimeoutSec),
	}, pool, urlCheck)

	// --- HTTP mux ---
	handlerOpts := connectutil.DefaultOptions()
	var protect func(http.Handler) http.Handler
	if cfg.RPCAuthEnabled {
		authenticator := srv.SecurityManager().GetAuthenticator(ctx)
		handlerOpts, err = connectutil.AuthenticatedOptions(ctx, authenticator)
		if err != nil {
			log.Fatalf("setting up auth interceptors: %v", err)
		}
		protect = func(h http.Handler) http.Handler {
			return connectutil.AuthenticatedHTTPMiddleware(h, authenticator)
		}
	}

	assistantHdlr := assistanthandler.NewAssistantHandler(assistanthandler.Deps{
		Assistant: local,
		Player:    play,
		Describer: flow,
		Store:     historyStore,
		Publisher: pub,
		Language:  cfg.Language,
	})
	rpcPath, rpc := assistantv1connect.NewAssistantServiceHandler(assistantHdlr, handlerOpts...)

	restMux := http.NewServeMux()
	notifyapi.NewHandler(notifyStore, dispatcher, urlCheck).RegisterRoutes(restMux)

	wsHandler := ws.NewHandler(ws.Config{
		Describer:      flow,
		Emitter:        pub,
		Phrases:        loader,
		Pool:           pool,
		Language:       cfg.Language,
		SystemLocale:   cfg.SystemLocale,
		SubmitDelay:    cfg.SubmitDelay(),
		VoicesFallback: cfg.VoicesFallback(),
		CheckOrigin:    originChecker(cfg.Origins()),
	})

	mux := routes{rpcPath: rpcPath, rpc: rpc, rest: restMux, ws: wsHandler}.mux(protect)

	srv.Init(ctx,
		frame.WithRegisterSubscriber(eventRef+".history", eventURL, &history.Subscriber{Store: historyStore}),
		frame.WithRegisterSubscriber(eventRef+".notify", eventURL, &notify.Subscriber{
			Store:      notifyStore,
			Dispatcher: dispatcher,
			Pool:       pool,
		}),
		frame.WithHTTPHandler(connectutil.H2CHandler(mux)),
	)

	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}
