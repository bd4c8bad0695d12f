// Command giffoldersd runs the background reconciler: it periodically merges
// the local gif collection with the remote favorites blob and flushes pending
// mutations.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Madachii/giffolders/internal/gifstore"
	"github.com/Madachii/giffolders/internal/migrate"
	"github.com/Madachii/giffolders/internal/model"
	"github.com/Madachii/giffolders/internal/registry"
	"github.com/Madachii/giffolders/internal/remote"
	"github.com/Madachii/giffolders/internal/service"
	"github.com/Madachii/giffolders/internal/storage"
	"github.com/Madachii/giffolders/internal/storage/postgres"
	"github.com/Madachii/giffolders/internal/storage/sqlite"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func defaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "giffolders")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "giffolders")
}

// main parses configuration and runs the reconcile loop until signalled.
func main() {
	user := flag.String("user", os.Getenv("GIFFOLDERS_USER"), "user id (storage key scope)")
	token := flag.String("token", os.Getenv("GIFFOLDERS_TOKEN"), "settings API auth token")
	base := flag.String("base", "https://discord.com/api/v9", "settings API base URL")
	dbPath := flag.String("db", filepath.Join(defaultDir(), "gifs.db"), "sqlite database path")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides -db)")
	step := flag.Uint64("step", model.DefaultStep, "order-space width per folder")
	every := flag.Duration("every", time.Hour, "reconcile/flush cadence")
	minInterval := flag.Duration("flush-interval", 10*time.Second, "minimum spacing between pushes")
	logFile := flag.String("log", "", "log file (rotated); empty = stderr")
	flag.Parse()

	logger := buildLogger(*logFile)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.Duration("every", *every),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := openKV(ctx, *dbPath, *dsn)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer kv.Close()

	reg, err := registry.New(kv, *user, *step, logger)
	if err != nil {
		logger.Fatal("registry", zap.Error(err))
	}
	store, err := gifstore.New(kv, *user, *step, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	rem := remote.NewClient(*base, *token, logger)
	svc := service.New(logger, reg, store, rem, *minInterval)

	if err := svc.Initialize(ctx); err != nil {
		logger.Fatal("initialize", zap.Error(err))
	}

	// surface stuck sync instead of burying it in debug logs
	svc.Scheduler().SetObserver(func(flushID string, err error) {
		if err != nil {
			logger.Warn("sync stuck, will retry",
				zap.String("flush_id", flushID), zap.Error(err))
		}
	})

	svc.Scheduler().Run(ctx, *every)
	logger.Info("shutdown complete")
}

func openKV(ctx context.Context, dbPath, dsn string) (storage.KV, error) {
	if dsn != "" {
		if err := migrate.Up(ctx, dsn); err != nil {
			return nil, err
		}
		db, err := postgres.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return postgres.NewKV(db), nil
	}
	return sqlite.Open(dbPath)
}

// buildLogger writes JSON to a rotated file when one is configured.
func buildLogger(path string) *zap.Logger {
	if path == "" {
		logger, _ := zap.NewProduction()
		return logger
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
	})
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		w,
		zap.InfoLevel,
	)
	return zap.New(core)
}
