// Package newsapi fetches per-symbol news articles from the NewsAPI
// `everything` endpoint.
package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	appconfig "equilake/config"
	"equilake/fetcher"
	"equilake/logger"
	"equilake/models"
)

const providerName = "newsapi"

// envelope is the provider response wrapper. NewsAPI reports some failures
// (rate limits included) inside the body with status "error".
type envelope struct {
	Status   string                   `json:"status"`
	Code     string                   `json:"code"`
	Message  string                   `json:"message"`
	Articles []map[string]interface{} `json:"articles"`
}

// Connector implements fetcher.Connector for the news dataset.
type Connector struct {
	cfg     appconfig.NewsAPIConfig
	client  *resty.Client
	limiter *rate.Limiter
	log     *logger.Log
}

func NewConnector(cfg appconfig.NewsAPIConfig, fetchCfg appconfig.FetcherConfig) *Connector {
	return &Connector{
		cfg:     cfg,
		client:  fetcher.NewClient(fetchCfg.Timeout),
		limiter: fetcher.NewLimiter(fetchCfg.RateLimit.RequestsPerSecond, fetchCfg.RateLimit.BurstSize),
		log:     logger.GetLogger(),
	}
}

func (c *Connector) Dataset() string {
	return models.DatasetNews
}

// Fetch pulls recent articles mentioning symbol and tags every article with
// the symbol before returning the payload, so the raw store keeps enough
// context to join news onto prices later.
func (c *Connector) Fetch(ctx context.Context, symbol string, asOf time.Time) (models.RawPayload, error) {
	asOf = fetcher.AsOfOrNow(asOf)
	log := c.log.WithComponent("newsapi_fetcher").WithFields(logger.Fields{
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
			"q":        symbol,
			"sortBy":   c.cfg.SortBy,
			"language": c.cfg.Language,
			"pageSize": strconv.Itoa(c.cfg.PageSize),
			"apiKey":   c.cfg.APIKey,
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

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		log.WithError(err).Warn("malformed response body")
		return models.RawPayload{}, &fetcher.FetchError{
			Provider: providerName, Symbol: symbol, Kind: fetcher.Permanent, Err: err,
		}
	}

	// Rate limits arrive inside a 200 body with status "error".
	if env.Status != "ok" {
		kind := fetcher.Permanent
		if env.Code == "rateLimited" {
			kind = fetcher.Transient
		}
		err := fmt.Errorf("provider error %s: %s", env.Code, env.Message)
		log.WithFields(logger.Fields{"code": env.Code}).Warn("provider reported error")
		return models.RawPayload{}, &fetcher.FetchError{
			Provider: providerName, Symbol: symbol, Kind: kind, Err: err,
		}
	}

	for _, article := range env.Articles {
		article["symbol"] = symbol
	}

	data, err := json.Marshal(env.Articles)
	if err != nil {
		return models.RawPayload{}, &fetcher.FetchError{
			Provider: providerName, Symbol: symbol, Kind: fetcher.Permanent, Err: err,
		}
	}

	log.WithFields(logger.Fields{"articles": len(env.Articles)}).Debug("fetched articles")

	return models.RawPayload{
		Dataset:   models.DatasetNews,
		Symbol:    symbol,
		FetchDate: asOf.Format(models.DateLayout),
		Data:      data,
		FetchedAt: time.Now().UTC(),
	}, nil
}
