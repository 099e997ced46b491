// Package tables encodes and decodes processed partitions as parquet. The
// row schemas here are the compatibility contract of the lake: partitions
// written on different days must union into one logical table without
// reconciliation, so field names and types never drift per write.
package tables

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"equilake/models"
)

// priceRow is the parquet schema of one daily price bar.
type priceRow struct {
	Date   int64   `parquet:"name=date, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Symbol string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Open   float64 `parquet:"name=open, type=DOUBLE"`
	High   float64 `parquet:"name=high, type=DOUBLE"`
	Low    float64 `parquet:"name=low, type=DOUBLE"`
	Close  float64 `parquet:"name=close, type=DOUBLE"`
	Volume int64   `parquet:"name=volume, type=INT64"`
}

// newsRow is the parquet schema of one scored news record.
type newsRow struct {
	Symbol         string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	PublishedAt    int64   `parquet:"name=published_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Title          string  `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8"`
	Source         string  `parquet:"name=source, type=BYTE_ARRAY, convertedtype=UTF8"`
	Content        string  `parquet:"name=content, type=BYTE_ARRAY, convertedtype=UTF8"`
	URL            string  `parquet:"name=url, type=BYTE_ARRAY, convertedtype=UTF8"`
	ImageURL       string  `parquet:"name=image_url, type=BYTE_ARRAY, convertedtype=UTF8"`
	SentimentScore float64 `parquet:"name=sentiment_score, type=DOUBLE"`
	SentimentLabel string  `parquet:"name=sentiment_label, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// memoryFile implements source.ParquetFile over a byte buffer so parquet
// partitions can be built without touching the local filesystem.
type memoryFile struct {
	buffer *bytes.Buffer
}

func newMemoryFile() *memoryFile {
	return &memoryFile{buffer: &bytes.Buffer{}}
}

func (mf *memoryFile) Create(name string) (source.ParquetFile, error) {
	return mf, nil
}

func (mf *memoryFile) Open(name string) (source.ParquetFile, error) {
	return mf, nil
}

func (mf *memoryFile) Seek(offset int64, whence int) (int64, error) {
	// Write-only usage never seeks backwards.
	return int64(mf.buffer.Len()), nil
}

func (mf *memoryFile) Read(b []byte) (int, error) {
	return mf.buffer.Read(b)
}

func (mf *memoryFile) Write(b []byte) (int, error) {
	return mf.buffer.Write(b)
}

func (mf *memoryFile) Close() error {
	return nil
}

func (mf *memoryFile) Bytes() []byte {
	return mf.buffer.Bytes()
}

// EncodePriceBars serialises bars into one parquet partition. Encoding the
// same bars twice yields byte-identical output.
func EncodePriceBars(bars []models.PriceBar) ([]byte, error) {
	mf := newMemoryFile()
	pw, err := writer.NewParquetWriter(mf, new(priceRow), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, bar := range bars {
		row := priceRow{
			Date:   bar.Date.UTC().UnixMilli(),
			Symbol: bar.Symbol,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return mf.Bytes(), nil
}

// DecodePriceBars reads one parquet partition back into price bars.
func DecodePriceBars(data []byte) ([]models.PriceBar, error) {
	bf := buffer.NewBufferFileFromBytes(data)
	pr, err := reader.NewParquetReader(bf, new(priceRow), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer func() {
		pr.ReadStop()
		bf.Close()
	}()

	num := int(pr.GetNumRows())
	rows := make([]priceRow, num)
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("failed to read parquet records: %w", err)
	}

	bars := make([]models.PriceBar, 0, num)
	for _, row := range rows {
		bars = append(bars, models.PriceBar{
			Date:   time.UnixMilli(row.Date).UTC(),
			Symbol: row.Symbol,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}
	return bars, nil
}

// EncodeNewsRecords serialises records into one parquet partition.
func EncodeNewsRecords(records []models.NewsRecord) ([]byte, error) {
	mf := newMemoryFile()
	pw, err := writer.NewParquetWriter(mf, new(newsRow), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range records {
		row := newsRow{
			Symbol:         rec.Symbol,
			PublishedAt:    rec.PublishedAt.UTC().UnixMilli(),
			Title:          rec.Title,
			Source:         rec.Source,
			Content:        rec.Content,
			URL:            rec.URL,
			ImageURL:       rec.ImageURL,
			SentimentScore: rec.SentimentScore,
			SentimentLabel: rec.SentimentLabel,
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return mf.Bytes(), nil
}

// DecodeNewsRecords reads one parquet partition back into news records.
func DecodeNewsRecords(data []byte) ([]models.NewsRecord, error) {
	bf := buffer.NewBufferFileFromBytes(data)
	pr, err := reader.NewParquetReader(bf, new(newsRow), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer func() {
		pr.ReadStop()
		bf.Close()
	}()

	num := int(pr.GetNumRows())
	rows := make([]newsRow, num)
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("failed to read parquet records: %w", err)
	}

	records := make([]models.NewsRecord, 0, num)
	for _, row := range rows {
		records = append(records, models.NewsRecord{
			Symbol:         row.Symbol,
			PublishedAt:    time.UnixMilli(row.PublishedAt).UTC(),
			Title:          row.Title,
			Source:         row.Source,
			Content:        row.Content,
			URL:            row.URL,
			ImageURL:       row.ImageURL,
			SentimentScore: row.SentimentScore,
			SentimentLabel: row.SentimentLabel,
		})
	}
	return records, nil
}
