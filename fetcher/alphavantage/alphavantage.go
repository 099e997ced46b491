// Package alphavantage fetches daily equity price series from the Alpha
// Vantage TIME_SERIES_DAILY endpoint.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	appconfig "equilake/config"
	"equilake/fetcher"
	"equilake/logger"
	"equilake/models"
)

const providerName = "alphavantage"

// Connector implements fetcher.Connector for the prices dataset.
type Connector struct {
	cfg     appconfig.AlphaVantageConfig
	client  *resty.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// NewConnector creates a price connector using the shared fetcher client
// settings. Rate-limit and error sentinels embedded in a 200 body are left
// inside the payload; the normalizer classifies them.
func NewConnector(cfg appconfig.AlphaVantageConfig, fetchCfg appconfig.FetcherConfig) *Connector {
	return &Connector{
		cfg:     cfg,
		client:  fetcher.NewClient(fetchCfg.Timeout),
		limiter: fetcher.NewLimiter(fetchCfg.RateLimit.RequestsPerSecond, fetchCfg.RateLimit.BurstSize),
		log:     logger.GetLogger(),
	}
}

func (c *Connector) Dataset() string {
	return models.DatasetPrices
}

// Fetch pulls the daily series for symbol and tags the payload with the
// symbol and fetch date. A zero asOf defaults to the current UTC day.
func (c *Connector) Fetch(ctx context.Context, symbol string, asOf time.Time) (models.RawPayload, error) {
	asOf = fetcher.AsOfOrNow(asOf)
	log := c.log.WithComponent("alphavantage_fetcher").WithFields(logger.Fields{
		"symbol":    symbol,
		"operation": "fetch",
	})

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return models.RawPayload{}, &fetcher.FetchError{
				Provider: providerName, Symbol: symbol, Kind: fetcher.Transient, Err: err,
			}
		}
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": "TIME_SERIES_DAILY",
			"symbol":   symbol,
			"apikey":   c.cfg.APIKey,
		}).
		Get(c.cfg.URL)
	if err != nil {
		kind := fetcher.ClassifyErr(err)
		log.WithError(err).Warn("request failed")
		return models.RawPayload{}, &fetcher.FetchError{
			Provider: providerName, Symbol: symbol, Kind: kind, Err: err,
		}
	}

	if resp.StatusCode() != http.StatusOK {
		err := fmt.Errorf("unexpected provider status")
		log.WithFields(logger.Fields{"status": resp.StatusCode()}).Warn("non-success provider status")
		return models.RawPayload{}, &fetcher.FetchError{
			Provider: providerName, Symbol: symbol,
			Kind: fetcher.ClassifyStatus(resp.StatusCode()), Status: resp.StatusCode(), Err: err,
		}
	}

	body := resp.Body()
	if !json.Valid(body) {
		err := fmt.Errorf("malformed response body")
		log.Warn("response body is not valid JSON")
		return models.RawPayload{}, &fetcher.FetchError{
			Provider: providerName, Symbol: symbol, Kind: fetcher.Permanent, Err: err,
		}
	}

	log.WithFields(logger.Fields{"bytes": len(body)}).Debug("fetched daily series")

	return models.RawPayload{
		Dataset:   models.DatasetPrices,
		Symbol:    symbol,
		FetchDate: asOf.Format(models.DateLayout),
		Data:      body,
		FetchedAt: time.Now().UTC(),
	}, nil
}
