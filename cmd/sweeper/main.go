package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"

	"github.com/robertarktes/seat-holds-and-sales/internal/adapters/crdb"
	"github.com/robertarktes/seat-holds-and-sales/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/seat-holds-and-sales/internal/adapters/redis"
	"github.com/robertarktes/seat-holds-and-sales/internal/config"
	"github.com/robertarktes/seat-holds-and-sales/internal/events"
	"github.com/robertarktes/seat-holds-and-sales/internal/lock"
	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
	"github.com/robertarktes/seat-holds-and-sales/internal/sweeper"
)

// Standalone expiry sweeper. Run it instead of the api's embedded sweep
// loop (SWEEP_ENABLED=false there) when more than one api instance is
// deployed, so only one process releases expired holds.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	st := crdb.NewStore(pool)

	var seatLock lock.Locker = lock.Noop{}
	if cfg.RedisAddr != "" {
		redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, lock release degraded to TTL expiry")
			redisClient.Close()
		} else {
			defer redisClient.Close()
			seatLock = redisadapter.NewLocker(redisClient)
		}
	}

	// Without a broker the expiry events have nowhere useful to go: the
	// fallback hub has no subscribers in this process.
	var pub events.Publisher = events.NewHub()
	if cfg.RabbitURL != "" {
		rabbitConn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer rabbitConn.Close()

		rabbitPub, err := rabbit.NewPublisher(rabbitConn)
		if err != nil {
			log.Fatalf("failed to create rabbit publisher: %v", err)
		}
		defer rabbitPub.Close()
		pub = rabbitPub
	} else {
		logger.Warn("RABBIT_URL not set, expiry events will not be broadcast")
	}

	logger.WithField("interval", cfg.SweepInterval.String()).Info("sweeper starting")
	if err := sweeper.New(st, seatLock, pub, cfg.SweepInterval, logger).Run(ctx); err != nil {
		log.Fatalf("sweeper error: %v", err)
	}
	logger.Info("sweeper exiting")
}
