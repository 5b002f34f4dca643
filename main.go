package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pliu/chatroom/internal/auth"
	"github.com/pliu/chatroom/internal/blob"
	"github.com/pliu/chatroom/internal/config"
	"github.com/pliu/chatroom/internal/delivery"
	"github.com/pliu/chatroom/internal/handlers"
	"github.com/pliu/chatroom/internal/middleware"
	"github.com/pliu/chatroom/internal/store/sqlstore"
	"github.com/pliu/chatroom/internal/ws"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.App.Env == "production" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	store, err := sqlstore.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()

	blobs, closeBlobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open blob store")
	}
	defer closeBlobs.Close()

	tokens, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token issuer")
	}

	hub := ws.NewHub(store)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	messages := delivery.NewService(store, delivery.WithConflatedDelivery(cfg.Receipts.ConflateDelivery))
	dispatcher := delivery.NewDispatcher(hub)
	wsServer := ws.NewServer(hub, messages, store, dispatcher, ws.Options{
		SendBuffer:         cfg.WS.SendBuffer,
		PermissiveRoomJoin: cfg.WS.PermissiveRoomJoin,
	})

	authHandler := &handlers.AuthHandler{Store: store, Tokens: tokens, Hub: hub}
	chatHandler := &handlers.ChatHandler{Store: store, Hub: hub, Dispatcher: dispatcher}
	messageHandler := &handlers.MessageHandler{
		Store:          store,
		Messages:       messages,
		Dispatcher:     dispatcher,
		Blobs:          blobs,
		BaseURL:        cfg.Blob.BaseURL,
		MaxUploadBytes: cfg.Upload.MaxBytes,
	}

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware)

	handlers.RegisterRoutes(r, authHandler, chatHandler, messageHandler, tokens)
	r.Handle("/files/{name}", blob.NewHandler(blobs)).Methods(http.MethodGet)

	// WebSocket Endpoint
	r.Handle("/ws", middleware.AuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsServer.ServeWs(w, r, middleware.UserID(r))
	})))

	server := &http.Server{
		Addr:        cfg.App.Addr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Msgf("Starting server on %s", cfg.App.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ListenAndServe failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown initiated...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	// The hub stops on the same signal and closes every websocket.
	<-hubDone
	log.Info().Msg("Server exited gracefully.")
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, io.Closer, error) {
	switch cfg.Blob.Backend {
	case "jetstream":
		s, err := blob.NewJetStreamStore(ctx, cfg.Blob.NatsURL, cfg.Blob.Bucket)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("url", cfg.Blob.NatsURL).Str("bucket", cfg.Blob.Bucket).Msg("blob: using JetStream object store")
		return s, s, nil
	default:
		s, err := blob.NewDiskStore(cfg.Blob.Dir)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("dir", cfg.Blob.Dir).Msg("blob: using local directory")
		return s, io.NopCloser(nil), nil
	}
}
