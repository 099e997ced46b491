package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	appconfig "equilake/config"
	"equilake/fetcher"
	"equilake/models"
	"equilake/store"
	"equilake/tables"
)

func testConfig(symbols ...string) *appconfig.Config {
	return &appconfig.Config{
		Watchlist: symbols,
		Fetcher:   appconfig.FetcherConfig{Timeout: 2 * time.Second},
		Pipeline:  appconfig.PipelineConfig{MaxWorkers: 2},
	}
}

// fakeConnector serves canned payloads per symbol and fails symbols
// listed in failWith.
type fakeConnector struct {
	dataset  string
	payloads map[string][]byte
	failWith map[string]error
}

func (c *fakeConnector) Dataset() string { return c.dataset }

func (c *fakeConnector) Fetch(ctx context.Context, symbol string, asOf time.Time) (models.RawPayload, error) {
	if err := c.failWith[symbol]; err != nil {
		return models.RawPayload{}, err
	}
	return models.RawPayload{
		Dataset:   c.dataset,
		Symbol:    symbol,
		FetchDate: asOf.Format(models.DateLayout),
		Data:      c.payloads[symbol],
		FetchedAt: asOf,
	}, nil
}

func pricesPayload(days ...string) []byte {
	entries := make([]string, 0, len(days))
	for _, d := range days {
		entries = append(entries, fmt.Sprintf(
			`%q: {"1. open":"100.0","2. high":"101.0","3. low":"99.0","4. close":"100.5","5. volume":"1000"}`, d))
	}
	return []byte(`{"Time Series (Daily)": {` + strings.Join(entries, ",") + `}}`)
}

func newsPayload(symbol string) []byte {
	return []byte(fmt.Sprintf(`[
		{"symbol":%q,"title":"Shares rally on strong growth","content":"Strong profit and record growth.",
		 "url":"https://example.com/a","publishedAt":"2026-08-28T09:00:00Z","source":{"name":"Wire"}}
	]`, symbol))
}

// failPutStore wraps a store and fails Put for keys containing a marker.
type failPutStore struct {
	store.Store
	marker string
}

func (f *failPutStore) Put(ctx context.Context, key string, data []byte) error {
	if strings.Contains(key, f.marker) {
		return &store.StoreError{Op: "put", Key: key, Err: errors.New("injected failure")}
	}
	return f.Store.Put(ctx, key, data)
}

func TestRunWritesRawAndProcessedPartitions(t *testing.T) {
	s := store.NewMemoryStore()
	cfg := testConfig("AAPL", "TSLA")
	prices := &fakeConnector{
		dataset: models.DatasetPrices,
		payloads: map[string][]byte{
			"AAPL": pricesPayload("2026-08-27", "2026-08-28"),
			"TSLA": pricesPayload("2026-08-28"),
		},
	}
	news := &fakeConnector{
		dataset: models.DatasetNews,
		payloads: map[string][]byte{
			"AAPL": newsPayload("AAPL"),
			"TSLA": newsPayload("TSLA"),
		},
	}

	report, err := New(cfg, s, prices, news).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 0 {
		t.Fatalf("expected 2 succeeded, got %+v", report)
	}

	today := fetcher.AsOfOrNow(time.Time{}).Format(models.DateLayout)
	for _, symbol := range cfg.Watchlist {
		for _, dataset := range []string{models.DatasetPrices, models.DatasetNews} {
			if _, err := s.Get(context.Background(), store.RawKey(dataset, symbol, today)); err != nil {
				t.Errorf("missing raw object for %s/%s: %v", dataset, symbol, err)
			}
			if _, err := s.Get(context.Background(), store.ProcessedKey(dataset, symbol, today)); err != nil {
				t.Errorf("missing processed partition for %s/%s: %v", dataset, symbol, err)
			}
		}
	}

	data, err := s.Get(context.Background(), store.ProcessedKey(models.DatasetPrices, "AAPL", today))
	if err != nil {
		t.Fatalf("get AAPL partition: %v", err)
	}
	bars, err := tables.DecodePriceBars(data)
	if err != nil {
		t.Fatalf("decode AAPL partition: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("expected 2 bars in AAPL partition, got %d", len(bars))
	}
}

func TestRunRateLimitedSymbolSkipsPartition(t *testing.T) {
	s := store.NewMemoryStore()
	cfg := testConfig("AAPL")
	prices := &fakeConnector{
		dataset: models.DatasetPrices,
		payloads: map[string][]byte{
			"AAPL": []byte(`{"Note": "API call frequency exceeded"}`),
		},
	}

	report, err := New(cfg, s, prices).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 1 || report.RateLimited != 1 {
		t.Fatalf("expected rate-limited but clean run, got %+v", report)
	}

	today := fetcher.AsOfOrNow(time.Time{}).Format(models.DateLayout)
	if _, err := s.Get(context.Background(), store.RawKey(models.DatasetPrices, "AAPL", today)); err != nil {
		t.Errorf("raw payload should be archived even when rate limited: %v", err)
	}
	if _, err := s.Get(context.Background(), store.ProcessedKey(models.DatasetPrices, "AAPL", today)); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rate-limited symbol must not get a processed partition, got %v", err)
	}
}

func TestRunEmptyNewsCountsEmpty(t *testing.T) {
	s := store.NewMemoryStore()
	cfg := testConfig("GOOGL")
	news := &fakeConnector{
		dataset:  models.DatasetNews,
		payloads: map[string][]byte{"GOOGL": []byte(`[]`)},
	}

	report, err := New(cfg, s, news).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 1 || report.Empty != 1 || report.RateLimited != 0 {
		t.Fatalf("expected empty-but-clean run, got %+v", report)
	}
}

func TestRunFetchFailureIsolatedPerSymbol(t *testing.T) {
	s := store.NewMemoryStore()
	cfg := testConfig("AAPL", "TSLA")
	prices := &fakeConnector{
		dataset:  models.DatasetPrices,
		payloads: map[string][]byte{"AAPL": pricesPayload("2026-08-28")},
		failWith: map[string]error{
			"TSLA": &fetcher.FetchError{Provider: "alphavantage", Symbol: "TSLA", Kind: fetcher.Transient, Err: errors.New("timeout")},
		},
	}

	report, err := New(cfg, s, prices).Run(context.Background())
	if err != nil {
		t.Fatalf("one healthy symbol should keep the run clean, got %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("expected 1 succeeded and 1 failed, got %+v", report)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0].Error(), "TSLA") {
		t.Errorf("expected TSLA failure in report errors, got %v", report.Errors)
	}
}

func TestRunFetchFailureSkipsOnlyThatDataset(t *testing.T) {
	s := store.NewMemoryStore()
	cfg := testConfig("AAPL")
	prices := &fakeConnector{
		dataset:  models.DatasetPrices,
		failWith: map[string]error{"AAPL": errors.New("dns failure")},
	}
	news := &fakeConnector{
		dataset:  models.DatasetNews,
		payloads: map[string][]byte{"AAPL": newsPayload("AAPL")},
	}

	report, err := New(cfg, s, prices, news).Run(context.Background())
	if !errors.Is(err, ErrNoSymbolsProcessed) {
		t.Fatalf("expected ErrNoSymbolsProcessed with a single failing symbol, got %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected the symbol marked failed, got %+v", report)
	}

	// The news dataset still went through despite the price fetch failing.
	today := fetcher.AsOfOrNow(time.Time{}).Format(models.DateLayout)
	if _, err := s.Get(context.Background(), store.ProcessedKey(models.DatasetNews, "AAPL", today)); err != nil {
		t.Errorf("news partition should be written despite price fetch failure: %v", err)
	}
}

func TestRunAllSymbolsFailed(t *testing.T) {
	s := store.NewMemoryStore()
	cfg := testConfig("AAPL", "TSLA")
	prices := &fakeConnector{
		dataset: models.DatasetPrices,
		failWith: map[string]error{
			"AAPL": errors.New("boom"),
			"TSLA": errors.New("boom"),
		},
	}

	report, err := New(cfg, s, prices).Run(context.Background())
	if !errors.Is(err, ErrNoSymbolsProcessed) {
		t.Fatalf("expected ErrNoSymbolsProcessed, got %v", err)
	}
	if report == nil || report.Failed != 2 {
		t.Fatalf("expected report with 2 failures, got %+v", report)
	}
}

func TestRunStoreFailureAbortsSymbol(t *testing.T) {
	s := &failPutStore{Store: store.NewMemoryStore(), marker: "AAPL"}
	cfg := testConfig("AAPL", "TSLA")
	prices := &fakeConnector{
		dataset: models.DatasetPrices,
		payloads: map[string][]byte{
			"AAPL": pricesPayload("2026-08-28"),
			"TSLA": pricesPayload("2026-08-28"),
		},
	}

	report, err := New(cfg, s, prices).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("expected store failure to fail only AAPL, got %+v", report)
	}
	var serr *store.StoreError
	if len(report.Errors) != 1 || !errors.As(report.Errors[0], &serr) {
		t.Errorf("expected StoreError in report, got %v", report.Errors)
	}
}

func TestRunProviderErrorFailsSymbol(t *testing.T) {
	s := store.NewMemoryStore()
	cfg := testConfig("AAPL")
	prices := &fakeConnector{
		dataset: models.DatasetPrices,
		payloads: map[string][]byte{
			"AAPL": []byte(`{"Error Message": "Invalid API call"}`),
		},
	}

	report, err := New(cfg, s, prices).Run(context.Background())
	if !errors.Is(err, ErrNoSymbolsProcessed) {
		t.Fatalf("expected ErrNoSymbolsProcessed, got %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected provider error to fail the symbol, got %+v", report)
	}
}
