package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/curaious/ors/internal/config"
	"github.com/curaious/ors/internal/perrors"
	"github.com/curaious/ors/internal/telemetry"
	"github.com/curaious/ors/pkg/fleet"
	"github.com/curaious/ors/pkg/sdk"
	"github.com/curaious/ors/pkg/sdk/cache"
	"github.com/redis/go-redis/v9"
)

const redisCacheTTL = 10 * time.Minute

// newClient builds an SDK client from the environment. The returned func
// releases telemetry and the optional redis connection.
func newClient(ctx context.Context) (*sdk.Client, func(), error) {
	conf := config.ReadConfig()

	shutdownTelemetry := telemetry.NewProvider(conf.OTEL_EXPORTER_OTLP_ENDPOINT, conf.ORS_TRACES_FILE)
	cleanup := shutdownTelemetry

	var storage cache.Storage
	if conf.ORS_REDIS_ADDR != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     conf.ORS_REDIS_ADDR,
			Password: conf.ORS_REDIS_PASSWORD,
			DB:       conf.ORS_REDIS_DB,
		})

		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, caching in memory", slog.String("addr", conf.ORS_REDIS_ADDR), slog.Any("error", err))
			_ = redisClient.Close()
		} else {
			storage = cache.NewRedisStorage(redisClient, conf.ORS_CACHE_PREFIX, redisCacheTTL)
			cleanup = func() {
				_ = redisClient.Close()
				shutdownTelemetry()
			}
		}
	}

	client, err := sdk.New(&sdk.ClientOptions{
		Endpoint: conf.ORS_API_ENDPOINT,
		Timeout:  conf.ORS_HTTP_TIMEOUT,
		Storage:  storage,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return client, cleanup, nil
}

// loggedInClient is newClient followed by a login with the --email and
// --password flags, falling back to ORS_EMAIL and ORS_PASSWORD.
func loggedInClient(ctx context.Context) (*sdk.Client, fleet.Session, func(), error) {
	client, cleanup, err := newClient(ctx)
	if err != nil {
		return nil, fleet.Session{}, nil, err
	}

	conf := config.ReadConfig()
	creds := fleet.Credentials{Email: flagEmail, Password: flagPassword}
	if creds.Email == "" {
		creds.Email = conf.ORS_EMAIL
	}
	if creds.Password == "" {
		creds.Password = conf.ORS_PASSWORD
	}
	if creds.Email == "" {
		cleanup()
		return nil, fleet.Session{}, nil, perrors.NewErrUnauthorized("no credentials: pass --email/--password or set ORS_EMAIL/ORS_PASSWORD")
	}

	session, err := client.Login(ctx, creds)
	if err != nil {
		cleanup()
		return nil, fleet.Session{}, nil, err
	}
	return client, session, cleanup, nil
}
