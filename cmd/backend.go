package cmd

import (
	"context"
	"fmt"

	"github.com/andresmejia3/rollcall/internal/config"
	"github.com/andresmejia3/rollcall/internal/store"
	"github.com/andresmejia3/rollcall/internal/worker"
)

const (
	defaultFilePath   = "rollcall-enrollments.json"
	defaultSQLitePath = "rollcall.db"
)

// openBackend builds the durable enrollment backend for the configured driver.
func openBackend(ctx context.Context, sc config.StoreConfig) (store.Backend, error) {
	switch sc.Driver {
	case config.DriverFile:
		path := sc.Path
		if path == "" {
			path = defaultFilePath
		}
		return store.NewSlotBackend(store.NewFileSlot(path)), nil
	case config.DriverSQLite:
		path := sc.Path
		if path == "" {
			path = defaultSQLitePath
		}
		backend, err := store.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case config.DriverPostgres:
		backend, err := store.NewPostgres(ctx, sc.DSN)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case config.DriverMinio:
		slot, err := store.NewMinioSlot(ctx, store.MinioConfig{
			Endpoint:  sc.MinioEndpoint,
			AccessKey: sc.MinioAccessKey,
			SecretKey: sc.MinioSecretKey,
			UseSSL:    sc.MinioUseSSL,
			Bucket:    sc.MinioBucket,
			Object:    sc.MinioObject,
		})
		if err != nil {
			return nil, err
		}
		return store.NewSlotBackend(slot), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

// newWorker prepares the oracle subprocess from the worker settings.
func newWorker(cfg config.WorkerConfig) *worker.PythonWorker {
	return worker.NewPythonWorker(0, worker.Config{
		Python:         cfg.Python,
		Script:         cfg.Script,
		ModelDir:       cfg.ModelDir,
		InputSize:      cfg.InputSize,
		ScoreThreshold: cfg.ScoreThreshold,
	}, Logger)
}
