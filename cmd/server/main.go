package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/spatialchat/chatserver/internal/ai"
	"github.com/spatialchat/chatserver/internal/config"
	"github.com/spatialchat/chatserver/internal/httpapi"
	"github.com/spatialchat/chatserver/internal/httpapi/handlers"
	"github.com/spatialchat/chatserver/internal/npc"
	"github.com/spatialchat/chatserver/internal/room"
	"github.com/spatialchat/chatserver/internal/store"
	"github.com/spatialchat/chatserver/internal/store/rabbitmq"
	"github.com/spatialchat/chatserver/internal/store/redisstore"
	"github.com/spatialchat/chatserver/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[Main] .env load skipped err=%v", err)
	}

	cfg := config.Load()

	rooms := room.NewRegistry(room.DefaultRooms())

	// Provider registry: openai when a credential is configured,
	// canned degradation otherwise. Never a startup failure.
	reg := ai.NewRegistry()
	reg.Register("openai", func(ctx context.Context) (ai.Completer, error) {
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIVisionModel), nil
	})
	reg.Register("canned", func(ctx context.Context) (ai.Completer, error) {
		return ai.NewCannedProvider(ai.MissingCredentialMessage), nil
	})

	providerName := "openai"
	if cfg.OpenAIAPIKey == "" {
		providerName = "canned"
		log.Printf("[Main] OPENAI_API_KEY not set, replies degrade to the canned message")
	}
	completer, err := reg.Get(context.Background(), providerName)
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}

	gdb, err := store.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	snapshots := store.NewSnapshotRepo(gdb)

	var presence *redisstore.Store
	if cfg.RedisAddr != "" {
		presence = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := presence.Ping(pingCtx); err != nil {
			log.Printf("[Main] redis unavailable, presence disabled err=%v", err)
			presence = nil
		}
		cancel()
	}

	ctrl := npc.NewController(rooms, completer, cfg.TranscriptLimit, cfg.GenerationTimeout)
	manager := npc.NewManager(rooms, ctrl, snapshots)
	hub := ws.NewHub(manager, presence)

	var events *rabbitmq.Publisher
	if cfg.RabbitURL != "" {
		events, err = rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Printf("[Main] rabbit unavailable, events disabled err=%v", err)
			events = nil
		} else {
			defer events.Close()
			ctrl.SetEventPublisher(events)
			hub.SetEventPublisher(events)
		}
	}

	h := handlers.NewHandler(rooms, manager, hub, presence)
	router := httpapi.NewRouter(cfg, h)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[Main] server started addr=%s rooms=%d provider=%s", cfg.HTTPAddr, rooms.Len(), providerName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[Main] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Main] http shutdown err=%v", err)
	}
	hub.Shutdown()
	manager.Shutdown(shutdownCtx)

	if presence != nil {
		_ = presence.Close()
	}
	log.Printf("[Main] shutdown complete")
}
