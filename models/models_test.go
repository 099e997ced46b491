package models

import (
	"testing"
	"time"
)

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6, loc)
	day := Day(ts)
	if !day.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day: %v", day)
	}
	if day.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", day.Location())
	}
}

func TestSeriesStatusString(t *testing.T) {
	cases := map[SeriesStatus]string{
		SeriesOK:            "ok",
		SeriesRateLimited:   "rate_limited",
		SeriesProviderError: "provider_error",
		SeriesNoData:        "no_data",
		SeriesStatus(99):    "unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("SeriesStatus(%d).String() = %q, want %q", status, got, want)
		}
	}
}
