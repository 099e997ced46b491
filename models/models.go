package models

import (
	"time"
)

// Dataset names used in object store keys. They match the layout the lake
// was originally populated with, so old partitions stay readable.
const (
	DatasetPrices = "stocks"
	DatasetNews   = "news"
)

// Sentiment labels derived from the polarity score.
const (
	LabelPositive = "positive"
	LabelNeutral  = "neutral"
	LabelNegative = "negative"
)

// DateLayout is the calendar-day format used in store keys and price series.
const DateLayout = "2006-01-02"

// RawPayload is a provider response exactly as fetched, tagged with the
// dataset, symbol and fetch date that key it in the raw store. The body is
// never mutated after fetch; re-fetching the same key overwrites it.
type RawPayload struct {
	Dataset   string    `json:"dataset"`
	Symbol    string    `json:"symbol"`
	FetchDate string    `json:"fetch_date"`
	Data      []byte    `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
}

// PriceBar is one canonical daily OHLCV row. Date is a calendar day at
// UTC midnight. Within a partition there is at most one bar per
// (symbol, date), all of OHLC are non-negative and High >= Low.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// NewsRecord is one validated, sentiment-scored news article. Records with
// an empty title or an unparseable publication timestamp are dropped during
// normalization and never reach storage.
type NewsRecord struct {
	Symbol         string    `json:"symbol"`
	PublishedAt    time.Time `json:"published_at"`
	Title          string    `json:"title"`
	Source         string    `json:"source"`
	Content        string    `json:"content"`
	URL            string    `json:"url"`
	ImageURL       string    `json:"image_url,omitempty"`
	SentimentScore float64   `json:"sentiment_score"`
	SentimentLabel string    `json:"sentiment_label"`
}

// SentimentDaily is the mean sentiment score over all news records for one
// (symbol, date). It is derived during aggregation and never persisted; a
// day without news produces no row at all.
type SentimentDaily struct {
	Symbol       string    `json:"symbol"`
	Date         time.Time `json:"date"`
	AvgSentiment float64   `json:"avg_sentiment"`
}

// MergedRow is the serving-layer contract: one row per price bar, with the
// daily sentiment average attached where news exists. AvgSentiment is nil
// when no article was published for that symbol and day.
type MergedRow struct {
	Date         time.Time `json:"date"`
	Symbol       string    `json:"symbol"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       int64     `json:"volume"`
	AvgSentiment *float64  `json:"avg_sentiment,omitempty"`
}

// SeriesStatus classifies a price payload at the normalizer boundary.
// Alpha Vantage embeds rate-limit and error sentinels inside an otherwise
// successful response, so the status is a tagged result rather than an
// ad-hoc key inspection downstream.
type SeriesStatus int

const (
	SeriesOK SeriesStatus = iota
	SeriesRateLimited
	SeriesProviderError
	SeriesNoData
)

func (s SeriesStatus) String() string {
	switch s {
	case SeriesOK:
		return "ok"
	case SeriesRateLimited:
		return "rate_limited"
	case SeriesProviderError:
		return "provider_error"
	case SeriesNoData:
		return "no_data"
	default:
		return "unknown"
	}
}

// Day truncates a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
