// Package aggregate builds the merged price + sentiment view served to the
// presentation layer. Every invocation recomputes the view in full from
// the processed partitions; there is no incremental state.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"equilake/logger"
	"equilake/models"
	"equilake/store"
	"equilake/tables"
)

// Aggregator loads every processed partition of both datasets and
// left-joins daily average news sentiment onto the price series.
type Aggregator struct {
	store store.Store
	log   *logger.Log
}

func New(s store.Store) *Aggregator {
	return &Aggregator{
		store: s,
		log:   logger.GetLogger(),
	}
}

// rowKey identifies one (symbol, calendar day) across both datasets.
type rowKey struct {
	Symbol string
	Date   string
}

// BuildMergedView returns exactly one row per price bar, with
// AvgSentiment set where at least one news record exists for that symbol
// and day and nil otherwise. Price rows are never dropped. Rows come back
// sorted by (symbol, date) so repeated runs over the same stored data
// produce identical output.
func (a *Aggregator) BuildMergedView(ctx context.Context) ([]models.MergedRow, error) {
	log := a.log.WithComponent("aggregator").WithFields(logger.Fields{"operation": "build_merged_view"})

	bars, err := a.loadPriceBars(ctx)
	if err != nil {
		return nil, err
	}
	news, err := a.loadNewsRecords(ctx)
	if err != nil {
		return nil, err
	}

	daily := dailySentiment(news)

	rows := make([]models.MergedRow, 0, len(bars))
	for _, bar := range bars {
		row := models.MergedRow{
			Date:   bar.Date,
			Symbol: bar.Symbol,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
		key := rowKey{Symbol: bar.Symbol, Date: bar.Date.Format(models.DateLayout)}
		if d, ok := daily[key]; ok {
			avg := d.AvgSentiment
			row.AvgSentiment = &avg
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].Date.Before(rows[j].Date)
	})

	log.WithFields(logger.Fields{
		"price_rows":     len(bars),
		"news_records":   len(news),
		"sentiment_days": len(daily),
		"merged_rows":    len(rows),
	}).Info("merged view built")

	return rows, nil
}

// dailySentiment reduces news records to the mean sentiment per
// (symbol, UTC publication day). Days without news never get an entry,
// so the join leaves them absent rather than zero.
func dailySentiment(news []models.NewsRecord) map[rowKey]models.SentimentDaily {
	type accumulator struct {
		sum   float64
		count int
	}
	acc := make(map[rowKey]*accumulator)
	for _, rec := range news {
		day := models.Day(rec.PublishedAt)
		key := rowKey{Symbol: rec.Symbol, Date: day.Format(models.DateLayout)}
		a := acc[key]
		if a == nil {
			a = &accumulator{}
			acc[key] = a
		}
		a.sum += rec.SentimentScore
		a.count++
	}

	daily := make(map[rowKey]models.SentimentDaily, len(acc))
	for key, a := range acc {
		day, _ := time.Parse(models.DateLayout, key.Date)
		daily[key] = models.SentimentDaily{
			Symbol:       key.Symbol,
			Date:         day,
			AvgSentiment: a.sum / float64(a.count),
		}
	}
	return daily
}

// loadPriceBars concatenates every price partition. Daily fetches overlap
// (each carries roughly the trailing hundred days), so the same
// (symbol, date) bar can appear in several partitions; the bar from the
// lexicographically latest partition key wins, keeping at most one bar
// per key in the result.
func (a *Aggregator) loadPriceBars(ctx context.Context) ([]models.PriceBar, error) {
	keys, err := a.store.List(ctx, store.ProcessedPrefix(models.DatasetPrices))
	if err != nil {
		return nil, fmt.Errorf("list price partitions: %w", err)
	}
	sort.Strings(keys)

	byKey := make(map[rowKey]models.PriceBar)
	for _, key := range keys {
		data, err := a.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load price partition %s: %w", key, err)
		}
		bars, err := tables.DecodePriceBars(data)
		if err != nil {
			return nil, fmt.Errorf("decode price partition %s: %w", key, err)
		}
		if len(bars) == 0 {
			continue
		}
		for _, bar := range bars {
			byKey[rowKey{Symbol: bar.Symbol, Date: bar.Date.Format(models.DateLayout)}] = bar
		}
	}

	bars := make([]models.PriceBar, 0, len(byKey))
	for _, bar := range byKey {
		bars = append(bars, bar)
	}
	return bars, nil
}

// loadNewsRecords concatenates every news partition. Partitions with zero
// rows are skipped, not treated as errors.
func (a *Aggregator) loadNewsRecords(ctx context.Context) ([]models.NewsRecord, error) {
	keys, err := a.store.List(ctx, store.ProcessedPrefix(models.DatasetNews))
	if err != nil {
		return nil, fmt.Errorf("list news partitions: %w", err)
	}

	var records []models.NewsRecord
	for _, key := range keys {
		data, err := a.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load news partition %s: %w", key, err)
		}
		recs, err := tables.DecodeNewsRecords(data)
		if err != nil {
			return nil, fmt.Errorf("decode news partition %s: %w", key, err)
		}
		records = append(records, recs...)
	}
	return records, nil
}
