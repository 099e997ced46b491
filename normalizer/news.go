package normalizer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"equilake/logger"
	"equilake/models"
	"equilake/sentiment"
)

// rawArticle mirrors one NewsAPI article. Any field may be null upstream;
// null decodes into the zero value and trimming handles the rest.
type rawArticle struct {
	Symbol      string `json:"symbol"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

// NormalizeNews converts a raw news payload into validated, scored
// records. Articles with an empty title, no scorable text, or an
// unparseable publication timestamp are dropped whole; a partial record is
// never emitted. The sentiment score is computed from content, falling
// back to the title when content is empty.
func NormalizeNews(payload models.RawPayload) ([]models.NewsRecord, error) {
	log := logger.GetLogger().WithComponent("news_normalizer").WithFields(logger.Fields{
		"symbol": payload.Symbol,
	})

	var articles []rawArticle
	if err := json.Unmarshal(payload.Data, &articles); err != nil {
		return nil, fmt.Errorf("decode news payload for %s: %w", payload.Symbol, err)
	}

	records := make([]models.NewsRecord, 0, len(articles))
	dropped := 0
	for _, article := range articles {
		title := strings.TrimSpace(article.Title)
		content := strings.TrimSpace(article.Content)

		text := content
		if text == "" {
			text = title
		}
		if title == "" || text == "" {
			dropped++
			continue
		}

		publishedAt, err := time.Parse(time.RFC3339, strings.TrimSpace(article.PublishedAt))
		if err != nil {
			dropped++
			log.WithFields(logger.Fields{"published_at": article.PublishedAt, "title": title}).Debug("dropping article with unparseable timestamp")
			continue
		}

		source := strings.TrimSpace(article.Source.Name)
		if source == "" {
			source = "Unknown"
		}

		symbol := article.Symbol
		if symbol == "" {
			symbol = payload.Symbol
		}

		score := sentiment.Score(text)
		records = append(records, models.NewsRecord{
			Symbol:         symbol,
			PublishedAt:    publishedAt.UTC(),
			Title:          title,
			Source:         source,
			Content:        text,
			URL:            strings.TrimSpace(article.URL),
			ImageURL:       strings.TrimSpace(article.URLToImage),
			SentimentScore: score,
			SentimentLabel: sentiment.Label(score),
		})
	}

	if dropped > 0 {
		log.WithFields(logger.Fields{"kept": len(records), "dropped": dropped}).Info("articles normalized with drops")
	}

	return records, nil
}
