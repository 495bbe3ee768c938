package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	appprov "github.com/zjrosen/provchain/internal/application/provenance"
	"github.com/zjrosen/provchain/internal/history"
	"github.com/zjrosen/provchain/internal/infrastructure/sqlite"
	"github.com/zjrosen/provchain/internal/log"
	"github.com/zjrosen/provchain/internal/metrics"
	"github.com/zjrosen/provchain/internal/presentation"
	"github.com/zjrosen/provchain/internal/tracing"
)

// runtime wires the validation service from the loaded configuration.
type runtime struct {
	service   *appprov.Service
	loader    *appprov.Loader
	formatter *presentation.Formatter
	tracing   *tracing.Provider
	db        *sqlite.DB
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	provider, err := tracing.NewProvider(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		FilePath:     cfg.Tracing.FilePath,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
		ServiceName:  cfg.Tracing.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	m := metrics.New()
	loader := appprov.NewLoader(
		appprov.WithCache(appprov.NewDecodeCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval), cfg.Cache.TTL),
		appprov.WithConcurrency(cfg.Loader.Concurrency),
		appprov.WithLoaderMetrics(m),
		appprov.WithLoaderTracer(provider.Tracer()),
	)

	rt := &runtime{
		loader:    loader,
		formatter: newFormatter(cmd.OutOrStdout()),
		tracing:   provider,
	}

	opts := []appprov.ServiceOption{
		appprov.WithTracer(provider.Tracer()),
		appprov.WithMetrics(m, cfg.Metrics.File),
	}
	if cfg.History.Enabled {
		db, err := sqlite.NewDB(cfg.History.DBPath)
		if err != nil {
			// Validation still runs; the run is just not recorded.
			log.ErrorErr(log.CatDB, "history unavailable", err, "path", cfg.History.DBPath)
		} else {
			rt.db = db
			opts = append(opts, appprov.WithHistory(db.RunRepository()))
		}
	}

	rt.service = appprov.NewService(loader, opts...)
	return rt, nil
}

// Close releases the service, the history database and the trace exporter.
func (rt *runtime) Close() error {
	rt.service.Close()

	var errs []error
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing history: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down tracing: %w", err))
	}
	return errors.Join(errs...)
}

// writeReport prints a report and maps an invalid result to ExitInvalid.
func (rt *runtime) writeReport(report appprov.Report) error {
	if err := rt.formatter.FormatReport(report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return exitForReport(report)
}

// writeLoadError prints structural defects as a report; other errors pass through.
func (rt *runtime) writeLoadError(err error) error {
	structural, ok := appprov.AsStructuralErrors(err)
	if !ok {
		return err
	}
	if ferr := rt.formatter.FormatStructural(structural); ferr != nil {
		return fmt.Errorf("writing report: %w", ferr)
	}
	return &ExitError{Code: ExitInvalid}
}

func newFormatter(w io.Writer) *presentation.Formatter {
	return presentation.NewFormatter(w, cfg.Output, cfg.NoColor)
}

// openHistory opens the run repository named by the configuration.
func openHistory() (history.Repository, func() error, error) {
	if !cfg.History.Enabled {
		return nil, nil, fmt.Errorf("history is disabled (set history.enabled: true)")
	}
	db, err := sqlite.NewDB(cfg.History.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening history: %w", err)
	}
	return db.RunRepository(), db.Close, nil
}
