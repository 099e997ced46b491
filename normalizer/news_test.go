package normalizer

import (
	"testing"
	"time"

	"equilake/models"
)

func newsPayload(body string) models.RawPayload {
	return models.RawPayload{
		Dataset:   models.DatasetNews,
		Symbol:    "TSLA",
		FetchDate: "2024-01-02",
		Data:      []byte(body),
	}
}

func TestNormalizeNews(t *testing.T) {
	body := `[
		{"symbol":"TSLA","title":"  Deliveries surge past estimates  ","content":"Quarterly deliveries beat expectations on strong growth.","url":"https://example.com/1","urlToImage":"https://example.com/1.jpg","publishedAt":"2024-01-02T10:00:00Z","source":{"name":"Wire"}}
	]`

	records, err := NormalizeNews(newsPayload(body))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Title != "Deliveries surge past estimates" {
		t.Errorf("title not trimmed: %q", rec.Title)
	}
	if rec.Symbol != "TSLA" || rec.Source != "Wire" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if !rec.PublishedAt.Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp: %v", rec.PublishedAt)
	}
	if rec.SentimentScore <= 0 {
		t.Errorf("expected positive sentiment, got %v", rec.SentimentScore)
	}
	if rec.SentimentLabel != models.LabelPositive {
		t.Errorf("unexpected label: %s", rec.SentimentLabel)
	}
}

func TestNormalizeNewsTitleFallback(t *testing.T) {
	body := `[
		{"title":"Stock plunges after recall","content":"","publishedAt":"2024-01-02T10:00:00Z","source":{"name":"Desk"}}
	]`
	records, err := NormalizeNews(newsPayload(body))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Content != "Stock plunges after recall" {
		t.Errorf("expected title fallback for content, got %q", records[0].Content)
	}
	if records[0].SentimentScore >= 0 {
		t.Errorf("expected negative score, got %v", records[0].SentimentScore)
	}
	// Symbol falls back to the payload tag when the article has none.
	if records[0].Symbol != "TSLA" {
		t.Errorf("expected payload symbol fallback, got %q", records[0].Symbol)
	}
}

func TestNormalizeNewsDropsEmptyArticles(t *testing.T) {
	// Valid publishedAt and url are not enough; empty title and content
	// drop the record whole.
	body := `[
		{"title":"   ","content":"  ","url":"https://example.com/x","publishedAt":"2024-01-02T10:00:00Z","source":{"name":"Wire"}},
		{"title":"","content":"","url":"https://example.com/y","publishedAt":"2024-01-02T11:00:00Z","source":{"name":"Wire"}}
	]`
	records, err := NormalizeNews(newsPayload(body))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected all articles dropped, got %d", len(records))
	}
}

func TestNormalizeNewsDropsUnparseableTimestamp(t *testing.T) {
	body := `[
		{"title":"Good quarter","content":"Profits rise.","publishedAt":"yesterday","source":{"name":"Wire"}},
		{"title":"Bad quarter","content":"Losses grow.","publishedAt":"","source":{"name":"Wire"}},
		{"title":"Fine quarter","content":"Flat result.","publishedAt":"2024-01-02T12:00:00Z","source":{"name":"Wire"}}
	]`
	records, err := NormalizeNews(newsPayload(body))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Title != "Fine quarter" {
		t.Errorf("wrong record survived: %+v", records[0])
	}
}

func TestNormalizeNewsNullFields(t *testing.T) {
	body := `[
		{"title":"Untitled source","content":"Some body text.","url":null,"urlToImage":null,"publishedAt":"2024-01-02T10:00:00Z","source":null}
	]`
	records, err := NormalizeNews(newsPayload(body))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Source != "Unknown" {
		t.Errorf("expected Unknown source fallback, got %q", records[0].Source)
	}
	if records[0].URL != "" || records[0].ImageURL != "" {
		t.Errorf("null urls should decode empty: %+v", records[0])
	}
}

func TestNormalizeNewsMalformedPayload(t *testing.T) {
	if _, err := NormalizeNews(newsPayload("{not an array}")); err == nil {
		t.Fatal("expected error for undecodable payload")
	}
}

func TestNormalizeNewsLabelDerivedFromScore(t *testing.T) {
	body := `[
		{"title":"The company filed a report","content":"The company filed a report","publishedAt":"2024-01-02T10:00:00Z","source":{"name":"Wire"}}
	]`
	records, err := NormalizeNews(newsPayload(body))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].SentimentScore != 0 || records[0].SentimentLabel != models.LabelNeutral {
		t.Errorf("expected neutral record, got %+v", records[0])
	}
}
