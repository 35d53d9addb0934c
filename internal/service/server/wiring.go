package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/oshokin/catpoint/internal/classifier"
	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/gpio"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/mqtt"
	repository "github.com/oshokin/catpoint/internal/repository/security"
	"github.com/oshokin/catpoint/internal/service/security"
)

// errUnknownBackend is returned when settings name a backend this build does not know.
var errUnknownBackend = errors.New("unknown backend")

// closer releases a resource acquired while wiring.
type closer func()

// noopCloser is returned when nothing needs releasing.
func noopCloser() {}

// openRepository builds the configured state repository.
// stateFile overrides settings.StateFile for the file backend.
//
//nolint:ireturn // Backend is chosen at runtime.
func openRepository(
	ctx context.Context,
	settings *config.Config,
	stateFile string,
) (repository.Repository, closer, error) {
	storage := settings.Storage

	switch storage.Backend {
	case config.StorageMemory:
		return repository.NewMemoryRepository(), noopCloser, nil
	case config.StorageFile, "":
		repo, err := repository.NewFileRepository(stateFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open state file: %w", err)
		}

		return repo, noopCloser, nil
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:        storage.RedisAddress,
			Password:    storage.RedisPassword,
			DB:          storage.RedisDB,
			DialTimeout: settings.Timeout,
		})

		pingCtx, cancel := context.WithTimeout(ctx, settings.Timeout)
		defer cancel()

		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()

			return nil, nil, fmt.Errorf("ping redis %s: %w", storage.RedisAddress, err)
		}

		return repository.NewRedisRepository(client, storage.RedisKeyPrefix), func() { _ = client.Close() }, nil
	case config.StoragePostgres:
		db, err := repository.OpenPostgres(ctx, storage.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}

		repo := repository.NewPostgresRepository(db)

		if err = repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()

			return nil, nil, err
		}

		return repo, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("%w: storage %q", errUnknownBackend, storage.Backend)
	}
}

// newClassifier builds the configured image classifier, cached when CacheSize is set.
//
//nolint:ireturn // Backend is chosen at runtime.
func newClassifier(settings *config.Config) (classifier.Classifier, error) {
	var base classifier.Classifier

	switch settings.Classifier.Backend {
	case config.ClassifierFake, "":
		base = classifier.NewFake(uint64(time.Now().UnixNano())) //nolint:gosec // Seed only.
	case config.ClassifierHTTP:
		base = classifier.NewHTTP(settings.Classifier.Endpoint, settings.Timeout)
	default:
		return nil, fmt.Errorf("%w: classifier %q", errUnknownBackend, settings.Classifier.Backend)
	}

	return classifier.NewCaching(base, settings.Classifier.CacheSize), nil
}

// startMQTT connects the MQTT bridge when a broker is configured.
func startMQTT(ctx context.Context, settings *config.Config, engine *security.Service) (closer, error) {
	if settings.MQTT.Broker == "" {
		return noopCloser, nil
	}

	client, err := mqtt.Dial(ctx, settings.MQTT, settings.Timeout)
	if err != nil {
		return nil, err
	}

	stop, err := attachMQTT(ctx, client, settings.MQTT.TopicPrefix, engine)
	if err != nil {
		client.Close()

		return nil, err
	}

	return func() {
		stop()
		client.Close()
	}, nil
}

// attachMQTT subscribes the publisher and starts the sensor subscriber on client.
func attachMQTT(ctx context.Context, client mqtt.Client, prefix string, engine *security.Service) (closer, error) {
	publisher := mqtt.NewPublisher(client, prefix)
	engine.Subscribe(publisher)

	if err := mqtt.NewSensorSubscriber(client, prefix, engine).Start(ctx); err != nil {
		engine.Unsubscribe(publisher)

		return nil, err
	}

	return func() { engine.Unsubscribe(publisher) }, nil
}

// startGPIO opens the configured lines and polls them in the background.
func startGPIO(ctx context.Context, settings *config.Config, engine *security.Service) (closer, error) {
	if len(settings.GPIO.Lines) == 0 {
		return noopCloser, nil
	}

	lines, err := gpio.LinesFromConfig(settings.GPIO.Lines)
	if err != nil {
		return nil, err
	}

	chip, err := gpio.Open(settings.GPIO.Chip, gpio.Offsets(lines))
	if err != nil {
		return nil, err
	}

	return runWatcher(ctx, gpio.NewWatcher(chip, lines, engine, settings.GPIO.PollInterval), chip), nil
}

// runWatcher polls in a goroutine; the returned closer stops polling and closes reader.
func runWatcher(ctx context.Context, watcher *gpio.Watcher, reader gpio.Reader) closer {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = watcher.Run(ctx)
	}()

	return func() {
		cancel()
		<-done

		if err := reader.Close(); err != nil {
			logger.WarnKV(ctx, "Failed to release GPIO lines", "error", err)
		}
	}
}
