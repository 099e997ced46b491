// Package pipeline drives one full ingestion cycle: for every watchlist
// symbol and every registered connector, fetch the raw provider payload,
// archive it, normalize it, and write the processed parquet partition.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	appconfig "equilake/config"
	"equilake/fetcher"
	"equilake/logger"
	"equilake/models"
	"equilake/normalizer"
	"equilake/store"
	"equilake/tables"
)

// ErrNoSymbolsProcessed is returned by Run when every watchlist symbol
// failed, so a cron wrapper can page instead of logging a clean exit.
var ErrNoSymbolsProcessed = errors.New("no symbols processed")

// Report summarizes one pipeline run. RateLimited and Empty count
// symbol/dataset stages that completed without error but produced no
// partition; Failed counts symbols where at least one stage errored.
type Report struct {
	RunID       string
	Symbols     int
	Succeeded   int
	Failed      int
	RateLimited int
	Empty       int
	Errors      []error
}

// outcome is the reduction unit sent back by each symbol worker.
type outcome struct {
	symbol      string
	err         error
	rateLimited int
	empty       int
}

type Pipeline struct {
	cfg        *appconfig.Config
	store      store.Store
	connectors []fetcher.Connector
	log        *logger.Log
}

func New(cfg *appconfig.Config, s store.Store, connectors ...fetcher.Connector) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		store:      s,
		connectors: connectors,
		log:        logger.GetLogger(),
	}
}

// Run processes every watchlist symbol through every connector. Symbols
// run concurrently up to MaxWorkers; their keys never collide, so no
// coordination beyond the store is needed. A failure in one symbol never
// affects another.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	runID := uuid.New().String()[:8]
	asOf := fetcher.AsOfOrNow(time.Time{})
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"run_id": runID})

	log.WithFields(logger.Fields{
		"symbols":    len(p.cfg.Watchlist),
		"connectors": len(p.connectors),
		"as_of":      asOf.Format(models.DateLayout),
	}).Info("pipeline run starting")

	workers := p.cfg.Pipeline.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	outcomes := make(chan outcome, len(p.cfg.Watchlist))

	var wg sync.WaitGroup
	for _, symbol := range p.cfg.Watchlist {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes <- p.processSymbol(ctx, log, symbol, asOf)
		}(symbol)
	}
	wg.Wait()
	close(outcomes)

	report := &Report{RunID: runID, Symbols: len(p.cfg.Watchlist)}
	for out := range outcomes {
		report.RateLimited += out.rateLimited
		report.Empty += out.empty
		if out.err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Errorf("%s: %w", out.symbol, out.err))
			continue
		}
		report.Succeeded++
	}

	log.WithFields(logger.Fields{
		"succeeded":    report.Succeeded,
		"failed":       report.Failed,
		"rate_limited": report.RateLimited,
		"empty":        report.Empty,
	}).Info("pipeline run finished")
	log.LogMetric("pipeline", "SymbolsSucceeded", report.Succeeded, "Count", logger.Fields{"run_id": runID})
	log.LogMetric("pipeline", "SymbolsFailed", report.Failed, "Count", logger.Fields{"run_id": runID})

	if report.Symbols > 0 && report.Succeeded == 0 {
		return report, ErrNoSymbolsProcessed
	}
	return report, nil
}

// processSymbol runs every connector for one symbol. A fetch or
// normalize error skips that dataset only; a store error aborts the
// symbol, since a store that just failed is unlikely to take the next
// write either. Rate-limited and empty results are not errors.
func (p *Pipeline) processSymbol(ctx context.Context, log *logger.Entry, symbol string, asOf time.Time) outcome {
	out := outcome{symbol: symbol}
	var errs []error
	for _, conn := range p.connectors {
		stage := log.WithFields(logger.Fields{"symbol": symbol, "dataset": conn.Dataset()})

		payload, err := p.fetch(ctx, conn, symbol, asOf)
		if err != nil {
			stage.WithError(err).Error("fetch failed")
			errs = append(errs, err)
			continue
		}
		if err := store.PutRaw(ctx, p.store, payload); err != nil {
			stage.WithError(err).Error("raw archive write failed")
			errs = append(errs, err)
			break
		}

		data, rows, err := p.normalize(stage, payload, &out)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rows == 0 {
			continue
		}

		key := store.ProcessedKey(payload.Dataset, payload.Symbol, payload.FetchDate)
		if err := p.store.Put(ctx, key, data); err != nil {
			stage.WithError(err).Error("processed partition write failed")
			errs = append(errs, err)
			break
		}
		stage.WithFields(logger.Fields{"key": key, "rows": rows}).Info("partition written")
	}
	out.err = errors.Join(errs...)
	return out
}

// fetch applies the per-request timeout around one connector call.
func (p *Pipeline) fetch(ctx context.Context, conn fetcher.Connector, symbol string, asOf time.Time) (models.RawPayload, error) {
	fctx, cancel := context.WithTimeout(ctx, p.cfg.Fetcher.Timeout)
	defer cancel()
	return conn.Fetch(fctx, symbol, asOf)
}

// normalize turns a raw payload into an encoded parquet partition. A zero
// row count with a nil error means the stage completed but has nothing to
// write: the provider throttled us, reported an error in-band, or simply
// had no data.
func (p *Pipeline) normalize(stage *logger.Entry, payload models.RawPayload, out *outcome) ([]byte, int, error) {
	switch payload.Dataset {
	case models.DatasetPrices:
		result, err := normalizer.NormalizePrices(payload)
		if err != nil {
			stage.WithError(err).Error("price normalization failed")
			return nil, 0, err
		}
		switch result.Status {
		case models.SeriesRateLimited:
			stage.WithFields(logger.Fields{"detail": result.Detail}).Warn("provider rate limited, partition skipped")
			out.rateLimited++
			return nil, 0, nil
		case models.SeriesProviderError:
			err := fmt.Errorf("provider error for %s: %s", payload.Symbol, result.Detail)
			stage.WithError(err).Error("price normalization failed")
			return nil, 0, err
		case models.SeriesNoData:
			stage.Warn("empty price series, partition skipped")
			out.empty++
			return nil, 0, nil
		}
		data, err := tables.EncodePriceBars(result.Bars)
		if err != nil {
			stage.WithError(err).Error("price encoding failed")
			return nil, 0, err
		}
		return data, len(result.Bars), nil

	case models.DatasetNews:
		records, err := normalizer.NormalizeNews(payload)
		if err != nil {
			stage.WithError(err).Error("news normalization failed")
			return nil, 0, err
		}
		if len(records) == 0 {
			stage.Info("no news records, partition skipped")
			out.empty++
			return nil, 0, nil
		}
		data, err := tables.EncodeNewsRecords(records)
		if err != nil {
			stage.WithError(err).Error("news encoding failed")
			return nil, 0, err
		}
		return data, len(records), nil
	}
	return nil, 0, fmt.Errorf("unknown dataset %q", payload.Dataset)
}
