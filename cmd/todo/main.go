package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"todo/internal/auth"
	"todo/internal/server"
	"todo/internal/storage/sqlite"
	"todo/internal/util"
)

func main() {
	envErr := godotenv.Load()

	addrFlag := flag.String("addr", util.EnvOrDefault("TODO_ADDR", ":8080"), "HTTP listen address")
	dbFlag := flag.String("db", util.EnvOrDefault("TODO_DB_PATH", "data/todo.db"), "Path to sqlite database file")
	staticFlag := flag.String("static", util.EnvOrDefault("TODO_STATIC_DIR", "public"), "Directory with built frontend")
	ttlFlag := flag.Duration("token-ttl", util.EnvDurationOrDefault("TODO_TOKEN_TTL", auth.DefaultTokenTTL), "Session token lifetime")
	costFlag := flag.Int("bcrypt-cost", util.EnvIntOrDefault("TODO_BCRYPT_COST", bcrypt.DefaultCost), "bcrypt cost for password hashes")
	corsFlag := flag.String("cors-origins", util.EnvOrDefault("TODO_CORS_ORIGINS", "*"), "Comma separated list of allowed CORS origins")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("task list backend starting")
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("unable to load .env", slog.String("error", envErr.Error()))
	}

	secret := []byte(os.Getenv("TODO_JWT_SECRET"))
	if len(secret) == 0 {
		logger.Warn("TODO_JWT_SECRET not set; generating an ephemeral secret, tokens will not survive restarts")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Error("unable to generate jwt secret", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	store, err := sqlite.Open(*dbFlag, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	tokens, err := auth.NewJWTManager(secret, *ttlFlag)
	if err != nil {
		logger.Error("unable to configure tokens", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sessions, err := auth.NewService(store, auth.NewBcryptHasher(*costFlag), tokens, logger)
	if err != nil {
		logger.Error("unable to configure sessions", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := server.New(store, sessions, logger, server.Options{
		StaticDir:   *staticFlag,
		CORSOrigins: util.SplitList(*corsFlag),
	})

	httpServer := &http.Server{
		Addr:              *addrFlag,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
