// Package normalizer converts raw provider payloads into the canonical
// typed rows stored in processed partitions. It is the only place where
// malformed upstream data is filtered out instead of propagated.
package normalizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"equilake/logger"
	"equilake/models"
)

// PriceResult is the tagged outcome of normalizing one price payload.
// Alpha Vantage embeds rate-limit and error sentinels inside a 200
// response; the status lets the caller log "quota exceeded" differently
// from "no data" even though both carry zero bars.
type PriceResult struct {
	Status models.SeriesStatus
	Detail string
	Bars   []models.PriceBar
}

// dailySeriesDoc mirrors the provider response shape. The sentinel keys
// and the series key are part of the provider contract.
type dailySeriesDoc struct {
	Note         string                       `json:"Note"`
	ErrorMessage string                       `json:"Error Message"`
	Series       map[string]map[string]string `json:"Time Series (Daily)"`
}

// Per-entry field keys inside the daily series.
const (
	fieldOpen   = "1. open"
	fieldHigh   = "2. high"
	fieldLow    = "3. low"
	fieldClose  = "4. close"
	fieldVolume = "5. volume"
)

// NormalizePrices parses a raw price payload into daily bars. Sentinel
// responses yield zero bars with the matching status and never a partial
// parse. A single bad series entry is skipped; the rest of the series
// survives. Bars come back sorted by date so repeated runs over the same
// payload encode byte-identical partitions.
func NormalizePrices(payload models.RawPayload) (PriceResult, error) {
	log := logger.GetLogger().WithComponent("price_normalizer").WithFields(logger.Fields{
		"symbol": payload.Symbol,
	})

	var doc dailySeriesDoc
	if err := json.Unmarshal(payload.Data, &doc); err != nil {
		return PriceResult{}, fmt.Errorf("decode price payload for %s: %w", payload.Symbol, err)
	}

	if doc.Note != "" {
		log.WithFields(logger.Fields{"note": doc.Note}).Warn("provider rate limit reached")
		return PriceResult{Status: models.SeriesRateLimited, Detail: doc.Note}, nil
	}
	if doc.ErrorMessage != "" {
		log.WithFields(logger.Fields{"error_message": doc.ErrorMessage}).Warn("provider reported error")
		return PriceResult{Status: models.SeriesProviderError, Detail: doc.ErrorMessage}, nil
	}
	if len(doc.Series) == 0 {
		log.Warn("daily series missing from payload")
		return PriceResult{Status: models.SeriesNoData}, nil
	}

	bars := make([]models.PriceBar, 0, len(doc.Series))
	skipped := 0
	for dateStr, entry := range doc.Series {
		bar, err := parseBar(payload.Symbol, dateStr, entry)
		if err != nil {
			skipped++
			log.WithError(err).WithFields(logger.Fields{"date": dateStr}).Warn("skipping malformed series entry")
			continue
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	if skipped > 0 {
		log.WithFields(logger.Fields{"parsed": len(bars), "skipped": skipped}).Info("series parsed with skips")
	}

	return PriceResult{Status: models.SeriesOK, Bars: bars}, nil
}

// parseBar converts one series entry to a PriceBar, rejecting entries that
// fail numeric parsing or violate basic OHLC sanity.
func parseBar(symbol, dateStr string, entry map[string]string) (models.PriceBar, error) {
	date, err := time.ParseInLocation(models.DateLayout, dateStr, time.UTC)
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("parse date: %w", err)
	}

	open, err := strconv.ParseFloat(entry[fieldOpen], 64)
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("parse open: %w", err)
	}
	high, err := strconv.ParseFloat(entry[fieldHigh], 64)
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("parse high: %w", err)
	}
	low, err := strconv.ParseFloat(entry[fieldLow], 64)
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("parse low: %w", err)
	}
	closePrice, err := strconv.ParseFloat(entry[fieldClose], 64)
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("parse close: %w", err)
	}
	volume, err := strconv.ParseInt(entry[fieldVolume], 10, 64)
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("parse volume: %w", err)
	}

	if open < 0 || high < 0 || low < 0 || closePrice < 0 || volume < 0 {
		return models.PriceBar{}, fmt.Errorf("negative value in entry")
	}
	if high < low {
		return models.PriceBar{}, fmt.Errorf("high %v below low %v", high, low)
	}

	return models.PriceBar{
		Date:   date,
		Symbol: symbol,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}
