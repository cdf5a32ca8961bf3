// Package agent wires the shared process plumbing every pipeline agent
// needs: the store, Redis, alerts, the supervisor and the monitor.
package agent

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptoagents/src/bus"
	"cryptoagents/src/cache"
	"cryptoagents/src/connectors"
	"cryptoagents/src/database"
	"cryptoagents/src/events"
	"cryptoagents/src/model"
	"cryptoagents/src/repository"
	"cryptoagents/src/server"
	"cryptoagents/src/supervisor"

	"github.com/redis/go-redis/v9"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ListenInterval is the pause before a listener subscribes again.
const ListenInterval = time.Second

type Runtime struct {
	Name       string
	Log        *logger.Entry
	DB         *gorm.DB
	Redis      *redis.Client
	Bus        *bus.RedisBus
	Cache      *cache.RedisCache
	Notifier   *connectors.TelegramNotifier
	Hub        *events.Hub
	Supervisor *supervisor.Supervisor
	Exceptions *repository.ExceptionRepository

	monitor *server.Config
}

// Context is cancelled on SIGINT or SIGTERM.
func Context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// New connects the store (bounded retry, then fatal for the caller) and
// Redis, and builds the supervisor for the named agent.
func New(ctx context.Context, name string) (*Runtime, error) {
	log := logger.WithField("agent", name)

	if err := database.InitMainDB(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	busCfg := bus.GetConfig()
	client, err := bus.NewRedisClient(ctx, busCfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	notifier := connectors.NewTelegramNotifierFromConfig(connectors.GetConfig())
	if !notifier.Enabled() {
		log.Warn("telegram alerts disabled, TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set")
	}

	exceptions := repository.NewExceptionRepository()

	return &Runtime{
		Name:       name,
		Log:        log,
		DB:         database.MainDB,
		Redis:      client,
		Bus:        bus.NewRedisBus(client, busCfg.DeadLetterMax),
		Cache:      cache.NewRedisCache(client),
		Notifier:   notifier,
		Hub:        events.NewHub(name),
		Supervisor: supervisor.New(name, supervisor.GetConfig(), supervisor.WithNotifier(notifier), supervisor.WithExceptions(exceptions)),
		Exceptions: exceptions,
		monitor:    server.GetConfig(),
	}, nil
}

// Run drives cycle under the supervisor and serves the monitor alongside it.
// It returns when ctx ends or the supervisor gives up.
func (r *Runtime) Run(ctx context.Context, interval time.Duration, cycle supervisor.CycleFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return r.Supervisor.Run(gctx, interval, cycle)
	})
	g.Go(func() error {
		handler := server.NewRouter(r.Supervisor, r.Hub, r.monitor.ClientBuffer, server.WithExceptions(r.Exceptions))
		if err := server.StartServer(gctx, r.monitor.Port, handler); err != nil {
			r.Log.WithError(err).Error("monitor server stopped")
		}
		return nil
	})
	return g.Wait()
}

// Listen subscribes to channel and hands the stream to consume. Each
// subscription is one supervised cycle, so a dropped Redis connection is
// retried with backoff.
func (r *Runtime) Listen(channel string, consume func(ctx context.Context, signals <-chan model.Signal) error) supervisor.CycleFunc {
	return func(ctx context.Context) error {
		sub, err := r.Bus.Subscribe(ctx, channel)
		if err != nil {
			return err
		}
		defer sub.Close()

		r.Supervisor.Healthy()
		r.Log.WithField("channel", channel).Info("subscribed")
		return consume(ctx, sub.Signals())
	}
}

func (r *Runtime) Close() {
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
