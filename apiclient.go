// Package apiclient wires the authenticated API client from configuration.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/layer-3/apiclient/adapters/events"
	"github.com/layer-3/apiclient/adapters/store"
	"github.com/layer-3/apiclient/client"
	"github.com/layer-3/apiclient/internal/config"
	"github.com/layer-3/apiclient/internal/logger"
	"github.com/layer-3/apiclient/ports"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App holds a configured client and the resources behind it
type App struct {
	Client *client.Client
	Store  *store.CredentialStore

	closers []func() error
}

type openOptions struct {
	navigator ports.Navigator
	client    []client.Option
}

type Option func(*openOptions)

// WithNavigator redirects the user to the login route once the session expired
func WithNavigator(navigator ports.Navigator) Option {
	return func(o *openOptions) {
		o.navigator = navigator
	}
}

// WithClientOptions passes extra options to client.New. They are applied
// after the configuration.
func WithClientOptions(opts ...client.Option) Option {
	return func(o *openOptions) {
		o.client = append(o.client, opts...)
	}
}

// Open builds the credential store, session-expired handlers and client
// described by cfg. Close releases what it opened.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (_ *App, err error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		if rdb, err = connectRedis(ctx, cfg.RedisURL); err != nil {
			return nil, err
		}
		app.closers = append(app.closers, rdb.Close)
	}

	medium, err := openMedium(cfg, rdb)
	if err != nil {
		return nil, err
	}
	app.Store = store.NewCredentialStore(medium, log)

	var handlers events.Chain
	if rdb != nil {
		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: rdb}, logger.NewWatermill(log))
		if err != nil {
			return nil, fmt.Errorf("create session event publisher: %w", err)
		}
		app.closers = append([]func() error{publisher.Close}, app.closers...)
		handlers = append(handlers, events.NewWatermillNotifier(publisher, cfg.Events.Topic, clientName()))
	}
	if o.navigator != nil {
		handlers = append(handlers, events.NewLoginRedirect(o.navigator, cfg.LoginRoute, cfg.AuthPaths...))
	}

	clientOpts := []client.Option{
		client.WithTimeout(cfg.Timeout),
		client.WithLogger(log),
		client.WithRefreshPath(cfg.RefreshPath),
		client.WithLoginPath(cfg.LoginPath),
		client.WithLogoutPath(cfg.LogoutPath),
	}
	if len(handlers) > 0 {
		clientOpts = append(clientOpts, client.WithSessionExpiredHandler(handlers))
	}

	app.Client, err = client.New(cfg.BaseURL, app.Store, append(clientOpts, o.client...)...)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Close releases the publisher and the Redis connection
func (a *App) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openMedium(cfg *config.Config, rdb *redis.Client) (ports.Medium, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return store.NewMemoryMedium(), nil
	case config.DriverFile:
		path, err := credentialsPath(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return store.NewFileMedium(path), nil
	case config.DriverRedis:
		if rdb == nil {
			return nil, errors.New("redis storage requires redis_url")
		}
		return store.NewRedisMedium(rdb, cfg.Storage.Prefix), nil
	case config.DriverNone:
		return store.UnavailableMedium{}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// credentialsPath defaults to <user config dir>/apiclient/credentials.json
func credentialsPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate credentials file: %w", err)
	}
	return filepath.Join(dir, "apiclient", "credentials.json"), nil
}

func clientName() string {
	host, err := os.Hostname()
	if err != nil {
		return "apiclient"
	}
	return fmt.Sprintf("apiclient@%s", host)
}
