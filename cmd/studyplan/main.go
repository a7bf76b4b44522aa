package main

import (
	"context"
	stderrors "errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"studyplan/internal/config"
	"studyplan/internal/ics"
	appLog "studyplan/internal/log"
	"studyplan/internal/planner"
	"studyplan/internal/reminder"
	"studyplan/internal/store"
	"studyplan/internal/store/memory"
	"studyplan/internal/store/redisstore"
	"studyplan/internal/store/sqlite"
	"studyplan/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	listen     string
	debug      bool
}

func main() {
	if err := run(parseFlags()); err != nil {
		appLog.Error("studyplan failed", err)
		appLog.Sync()
		os.Exit(1)
	}
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return errors.Wrapf(err, "load config %s", flags.configPath)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetFormat(conf.LogFormat)
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	defer appLog.Sync()

	appLog.Info("studyplan starting", "version", version, "config", conf.String())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend, locker, err := openStore(ctx, conf.Store)
	if err != nil {
		return errors.Wrapf(err, "open %s store", conf.Store.Driver)
	}
	defer backend.Close()

	svc := planner.NewService(backend, locker, planner.Options{
		DefaultReminderMinutes: conf.DefaultReminderMinutes,
	})

	sched, err := reminder.NewScheduler(conf.ReminderCron, svc, nil)
	if err != nil {
		return errors.Wrapf(err, "reminder_cron %q", conf.ReminderCron)
	}
	sched.Start()

	fetcher := ics.NewFetcher(conf.ICSCacheDir, conf.ICSAllowPrivateHosts)
	srv := web.NewServer(conf, svc, fetcher)
	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("http server listening", "listen", conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
	sched.Stop(shutdownCtx)
	if serveErr != nil {
		return errors.Wrap(serveErr, "http server")
	}
	appLog.Info("studyplan exiting")
	return nil
}

// openStore opens the configured backend together with the lock used to
// serialize series rewrites.
func openStore(ctx context.Context, sc config.StoreConfig) (store.Backend, store.Locker, error) {
	switch sc.Driver {
	case config.DriverMemory:
		return memory.NewStore(), store.NewKeyedMutex(), nil
	case config.DriverRedis:
		st, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
			Prefix:   sc.RedisPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, redisstore.NewLocker(st.Client(), sc.RedisPrefix), nil
	default:
		st, err := sqlite.Open(sc.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, store.NewKeyedMutex(), nil
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Force debug logging")

	flag.Parse()

	return cfg
}
