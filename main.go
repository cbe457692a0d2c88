package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cuisine/internal/app"
	"cuisine/internal/config"
	"cuisine/internal/database"
	"cuisine/internal/logging"
	"cuisine/internal/repositories"
	"cuisine/internal/services"
	"cuisine/internal/session"
	"cuisine/pkg/rabbitmq"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type stores struct {
	users       repositories.UserRepository
	subscribers repositories.SubscriberRepository
	courses     repositories.CourseRepository
	probe       *app.Probe
	close       func() error
}

func main() {
	// --- Configuration ---
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Options{
		Development: cfg.Development(),
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Persistence ---
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer st.close()

	// --- Sessions ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis is not reachable yet, sessions will fail until it is", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	sessions := session.NewManager(rdb, cfg.SessionPrefix, cfg.SessionTTL, cfg.CookieSecure)

	// --- Messaging ---
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log)
		if err != nil {
			log.Fatal("failed to initialize RabbitMQ client", zap.Error(err))
		}
		defer mqClient.Close()
		publisher = mqClient

		if err := mqClient.ConsumeSubscriberEvents(ctx, rabbitmq.NotifyHandler(log)); err != nil {
			log.Error("failed to start RabbitMQ consumer", zap.Error(err))
		}
	} else {
		log.Info("RABBITMQ_URL is empty, subscriber events are disabled")
	}

	// --- Services ---
	users := services.NewUserService(st.users, cfg.BcryptCost)
	probes := []app.Probe{{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }}}
	if st.probe != nil {
		probes = append(probes, *st.probe)
	}

	server := app.New(app.Deps{
		Config:      cfg,
		Log:         log,
		Sessions:    sessions,
		Users:       users,
		Auth:        services.NewAuthService(users, cfg.JWTSecret, cfg.TokenTTL, log),
		Subscribers: services.NewSubscriberService(st.subscribers, publisher, log),
		Courses:     services.NewCourseService(st.courses, st.subscribers),
		Probes:      probes,
	})

	// --- Start HTTP Server ---
	errc := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", cfg.AppPort), zap.String("auth_mode", cfg.AuthMode))
		errc <- server.Listen(cfg.AppPort)
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Error("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("shutting down server")
	}

	if err := server.ShutdownWithTimeout(cfg.StoreTimeout * 2); err != nil {
		log.Error("error during Fiber shutdown", zap.Error(err))
	}
	log.Info("server gracefully stopped")
}

// openStores selects the repositories for cfg.DBDriver, migrating SQL databases first.
func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (*stores, error) {
	if cfg.DBDriver == config.DriverMemory {
		subscribers := repositories.NewMockSubscriberRepository()
		log.Warn("using in-memory storage, data is lost on restart")
		return &stores{
			users:       repositories.NewMockUserRepository(),
			subscribers: subscribers,
			courses:     repositories.NewMockCourseRepository(subscribers),
			close:       func() error { return nil },
		}, nil
	}

	db, err := database.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	migrateCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout*6)
	defer cancel()
	if err := database.Migrate(migrateCtx, db, cfg.DBDriver, log); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &stores{
		users:       repositories.NewGORMUserRepository(db),
		subscribers: repositories.NewGORMSubscriberRepository(db),
		courses:     repositories.NewGORMCourseRepository(db),
		probe:       &app.Probe{Name: "database", Check: sqlDB.PingContext},
		close:       sqlDB.Close,
	}, nil
}
