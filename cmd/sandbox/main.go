package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/common-nighthawk/go-figure"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/apiclient/adapters/events"
	"github.com/layer-3/apiclient/adapters/store"
	"github.com/layer-3/apiclient/adapters/tokenizer"
	"github.com/layer-3/apiclient/internal/config"
	"github.com/layer-3/apiclient/internal/logger"
	"github.com/layer-3/apiclient/ports"
	"github.com/layer-3/apiclient/service"
	transport "github.com/layer-3/apiclient/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "sandbox: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	displayAppname("sandbox")

	// a fresh key per process, tokens do not outlive the sandbox
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate signing key: %w", err)
	}

	revocations, publisher, closeBackends, err := backends(cfg, log)
	if err != nil {
		return err
	}
	defer closeBackends()

	users := service.NewUsers()
	if err := users.Add(cfg.Sandbox.User, cfg.Sandbox.Password); err != nil {
		return err
	}

	authService := service.NewAuthService(
		tokenizer.NewJWTTokenizer(privateKey),
		revocations,
		events.NewWatermillPublisher(publisher),
		users,
		log,
	).WithTTL(cfg.Sandbox.AccessTTL, cfg.Sandbox.RefreshTTL)

	if cfg.Log.Level != "debug" && cfg.Log.Level != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              cfg.Sandbox.Addr,
		Handler:           transport.SetupRouter(authService, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("user", cfg.Sandbox.User).Msg("sandbox listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errs:
		return fmt.Errorf("listen: %w", err)
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("sandbox stopped")
	return nil
}

// backends uses Redis for revocations and logout events when redis_url is
// set, and process memory otherwise
func backends(cfg *config.Config, log zerolog.Logger) (ports.RevocationStore, message.Publisher, func(), error) {
	wlog := logger.NewWatermill(log)

	if cfg.RedisURL == "" {
		pubsub := gochannel.NewGoChannel(gochannel.Config{}, wlog)
		return store.NewMemoryStore(), pubsub, func() { _ = pubsub.Close() }, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: rdb}, wlog)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, nil, fmt.Errorf("create redis publisher: %w", err)
	}

	closeFn := func() {
		_ = publisher.Close()
		_ = rdb.Close()
	}
	return store.NewRedisStore(rdb, ""), publisher, closeFn, nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
