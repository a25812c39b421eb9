package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwrk-planet/notify-service/config"
	"github.com/cwrk-planet/notify-service/internal/security"
	"github.com/cwrk-planet/notify-service/internal/service"
	httpx "github.com/cwrk-planet/notify-service/internal/transport/http"
	"github.com/cwrk-planet/notify-service/internal/transport/ws"
	"github.com/cwrk-planet/notify-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting notify-hub",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "auth_mode", cfg.Auth.Mode)

	// --- registration auth ---
	opts := ws.Options{
		PingPeriod:   cfg.WS.PingPeriod,
		PongWait:     cfg.WS.PongWait,
		WriteWait:    cfg.WS.WriteWait,
		SendBuffer:   cfg.WS.SendBuffer,
		ReadLimit:    cfg.WS.ReadLimit,
		MessageRate:  cfg.WS.MessageRate,
		MessageBurst: cfg.WS.MessageBurst,
		CheckOrigin:  ws.AllowOrigins(cfg.CORS.AllowedOrigins),
	}
	if cfg.Auth.Mode == config.AuthModeJWT {
		pub, err := security.LoadRSAPublicKeyFromPEM(cfg.Auth.PublicKeyPath)
		if err != nil {
			log.Fatalf("load jwt public key: %v", err)
		}
		opts.Verifier = security.NewVerifier(pub, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.ClockSkew)
	} else {
		slog.Warn("registration is trust based: any connection may join any user group")
	}

	// --- hub ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, opts)
	notifier := service.NewNotifier(hub)

	// --- HTTP ---
	emitKey := cfg.Emit.Key()
	if emitKey == "" {
		slog.Warn("emit endpoint is unauthenticated", "key_env", cfg.Emit.KeyEnv)
	}
	router := httpx.NewRouter(httpx.NewHandler(notifier), wsServer, httpx.RouterOptions{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EmitKey:        emitKey,
	})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	hub.CloseAll()
	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
