package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/robertarktes/seat-holds-and-sales/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/seat-holds-and-sales/internal/adapters/mongo"
	"github.com/robertarktes/seat-holds-and-sales/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/seat-holds-and-sales/internal/adapters/redis"
	"github.com/robertarktes/seat-holds-and-sales/internal/config"
	"github.com/robertarktes/seat-holds-and-sales/internal/coordinator"
	"github.com/robertarktes/seat-holds-and-sales/internal/domain"
	"github.com/robertarktes/seat-holds-and-sales/internal/events"
	httphandler "github.com/robertarktes/seat-holds-and-sales/internal/http"
	"github.com/robertarktes/seat-holds-and-sales/internal/lock"
	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
	"github.com/robertarktes/seat-holds-and-sales/internal/ratelimit"
	"github.com/robertarktes/seat-holds-and-sales/internal/sweeper"
	"github.com/robertarktes/seat-holds-and-sales/internal/ws"
)

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
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	var audit *mongoadapter.AuditLogger
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		audit = mongoadapter.NewAuditLogger(mongoClient.Database("shs"), logger)
	}

	// An unreachable Redis is not fatal: locks and rate limiting degrade
	// to local-only mode.
	var seatLock lock.Locker = lock.Noop{}
	var redisClient *redisclient.Client
	if cfg.RedisAddr != "" {
		client := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, seat locks run in-process only")
			client.Close()
		} else {
			defer client.Close()
			redisClient = client
			seatLock = redisadapter.NewLocker(client)
		}
	} else {
		logger.Warn("REDIS_ADDR not set, seat locks run in-process only")
	}

	hub := events.NewHub()

	// With a broker configured, events travel coordinator -> rabbit ->
	// consumer -> hub so that a standalone sweeper's events reach this
	// instance's websocket subscribers too. Without one they go straight
	// to the hub.
	var pub events.Publisher = hub
	var consumer *rabbit.Consumer
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

		consumer, err = rabbit.NewConsumer(rabbitConn, logger)
		if err != nil {
			log.Fatalf("failed to create rabbit consumer: %v", err)
		}
	}

	coord := coordinator.New(st, seatLock, pub, cfg, logger)
	handlers := httphandler.NewHandlers(cfg, coord, audit, logger)
	router := httphandler.SetupRouter(handlers, ws.NewHandler(hub, logger), logger, ratelimit.New(redisClient))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if consumer != nil {
		c := consumer
		g.Go(func() error {
			return c.Run(ctx, func(change domain.SeatStateChanged) {
				hub.Publish(ctx, change)
			})
		})
	}

	if cfg.SweepEnabled {
		sw := sweeper.New(st, seatLock, pub, cfg.SweepInterval, logger)
		g.Go(func() error {
			return sw.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("server exiting")
}
