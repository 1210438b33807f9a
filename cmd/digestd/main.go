package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ndhoang/digestbus"
	"github.com/ndhoang/digestbus/bolt"
	"github.com/ndhoang/digestbus/digest"
	"github.com/ndhoang/digestbus/gemini"
	"github.com/ndhoang/digestbus/gmail"
	"github.com/ndhoang/digestbus/http"
	"github.com/ndhoang/digestbus/news"
	"github.com/ndhoang/digestbus/rabbitmq"
	"github.com/ndhoang/digestbus/sqlite"
)

func main() {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}

	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("db.type", "bolt")
	viper.SetDefault("db.path", "digestbus.db")
	viper.SetDefault("news.baseurl", "https://newsapi.org")
	viper.SetDefault("gemini.baseurl", "https://generativelanguage.googleapis.com")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	// The self-chained reschedule and the reactivation path historically
	// carry different constants; both stay configurable.
	viper.SetDefault("newsletter.schedule.hour", 20)
	viper.SetDefault("newsletter.schedule.minute", 0)
	viper.SetDefault("newsletter.schedule.biweeklydays", 14)
	viper.SetDefault("newsletter.reactivation.hour", 17)
	viper.SetDefault("newsletter.reactivation.minute", 8)
	viper.SetDefault("newsletter.reactivation.biweeklydays", 3)
	viper.SetDefault("newsletter.cron.spec", "@every 1m")

	var config *digestbus.Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatal(err)
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn: config.Sentry.DSN,
	}); err != nil {
		log.Fatalf("sentry.Init: %v", err)
	}
	defer sentry.Flush(2 * time.Second)

	a := newApp(config)

	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		cancel()
	}()

	if err := a.Run(ctx); err != nil {
		_ = a.Close()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	<-ctx.Done()

	if err := a.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	config     *digestbus.Config
	logger     zerolog.Logger
	boltDB     *bolt.DB
	sqliteDB   *sqlite.DB
	bus        *bolt.Bus
	queue      *rabbitmq.QueueService
	httpServer *http.Server
}

func newApp(config *digestbus.Config) *app {
	httpServer, err := http.NewServer()
	if err != nil {
		log.Fatalf("%+v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	a := &app{
		config:     config,
		logger:     logger,
		httpServer: httpServer,
	}

	switch config.DB.Type {
	case "sqlite":
		a.sqliteDB = sqlite.NewDB(config.DB.Path)
		a.boltDB = bolt.NewDB(config.DB.Path + ".events")
	default:
		a.boltDB = bolt.NewDB(config.DB.Path)
	}

	return a
}

func (a *app) Run(ctx context.Context) error {
	if err := a.boltDB.Open(); err != nil {
		return err
	}

	var subscriptions digestbus.SubscriptionService
	if a.sqliteDB != nil {
		if err := a.sqliteDB.Open(); err != nil {
			return err
		}
		subscriptions = sqlite.NewSubscriptionService(a.sqliteDB)
	} else {
		subscriptions = bolt.NewSubscriptionService(a.boltDB)
	}

	a.bus = bolt.NewBus(a.boltDB, a.logger)

	a.httpServer.Addr = a.config.HTTP.Addr
	if err := a.httpServer.Open(); err != nil {
		return err
	}

	newsletter := gmail.NewNewsletterService(a.config, a.httpServer.URL())

	a.httpServer.SubscriptionService = subscriptions
	a.httpServer.NewsletterService = newsletter
	a.httpServer.Bus = a.bus
	a.httpServer.ReactivationSchedule = a.config.Newsletter.Reactivation

	workflow := &digest.Workflow{
		Subscriptions: subscriptions,
		Content:       news.NewClient(a.config),
		Summarizer:    gemini.NewClient(a.config),
		Newsletter:    newsletter,
		Bus:           a.bus,
		Schedule:      a.config.Newsletter.Schedule,
		Logger:        a.logger,
	}
	workflow.Register(a.bus)

	if err := a.bus.Start(a.config.Newsletter.Cron.Spec); err != nil {
		return err
	}

	if a.config.AMQP.URL != "" {
		queue, err := rabbitmq.NewQueueService(a.config.AMQP.URL)
		if err != nil {
			return err
		}
		a.queue = queue

		if err := a.consumeDeactivations(ctx, subscriptions); err != nil {
			return err
		}
	}

	return nil
}

// consumeDeactivations bridges out-of-band deactivation messages from AMQP
// into the store and the bus.
func (a *app) consumeDeactivations(ctx context.Context, subscriptions digestbus.SubscriptionService) error {
	messages, err := a.queue.Consume(ctx, a.config.AMQP.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var signal digestbus.CancellationSignal
			if err := json.Unmarshal(msg, &signal); err != nil {
				a.logger.Error().Err(err).Msg("malformed cancellation message")
				continue
			}

			if err := subscriptions.SetActive(signal.UserID, false); err != nil {
				a.logger.Error().Err(err).Str("user_id", signal.UserID).Msg("failed to deactivate subscription")
				sentry.CaptureException(err)
				continue
			}
			if err := a.bus.Cancel(digestbus.EventDigestSchedule, digestbus.MatchUserID(signal.UserID)); err != nil {
				a.logger.Error().Err(err).Str("user_id", signal.UserID).Msg("failed to cancel pending run")
				sentry.CaptureException(err)
			}
		}
	}()

	return nil
}

func (a *app) Close() error {
	if a.bus != nil {
		a.bus.Stop()
	}

	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			return err
		}
	}

	if a.httpServer != nil {
		if err := a.httpServer.Close(); err != nil {
			return err
		}
	}

	if a.sqliteDB != nil {
		if err := a.sqliteDB.Close(); err != nil {
			return err
		}
	}

	if a.boltDB != nil {
		if err := a.boltDB.Close(); err != nil {
			return err
		}
	}

	return nil
}
