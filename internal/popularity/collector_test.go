package popularity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/shared"
)

type mockFetcher struct {
	source models.Source
	counts map[string]int64 // by ISRC
	errs   map[string]error // by ISRC, takes precedence over counts
}

func (m *mockFetcher) Source() models.Source {
	return m.source
}

func (m *mockFetcher) FetchCount(ctx context.Context, track *models.Track) (int64, error) {
	if err, ok := m.errs[track.ISRC]; ok {
		return 0, err
	}
	return m.counts[track.ISRC], nil
}

type mockSampleStore struct {
	mu        sync.Mutex
	priors    map[string]*models.PopularitySample // by isrc|source
	samples   []*models.PopularitySample
	upsertErr error
}

func priorKey(isrc string, source models.Source) string {
	return isrc + "|" + string(source)
}

func (m *mockSampleStore) LatestBefore(isrc string, source models.Source, date time.Time) (*models.PopularitySample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prior, ok := m.priors[priorKey(isrc, source)]; ok {
		return prior, nil
	}
	return nil, shared.ErrNotFound
}

func (m *mockSampleStore) Upsert(sample *models.PopularitySample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.samples = append(m.samples, sample)
	return nil
}

func (m *mockSampleStore) find(isrc string, source models.Source) *models.PopularitySample {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sample := range m.samples {
		if sample.ISRC == isrc && sample.Source == source {
			return sample
		}
	}
	return nil
}

func trackWithURL(isrc string, service models.Service) *models.Track {
	track := models.NewTrack(isrc)
	track.ServiceURLs[service] = fmt.Sprintf("https://example.com/%s/%s", service, isrc)
	return track
}

// fastOptions keeps the rate limiter out of the way in tests.
func fastOptions() Options {
	return Options{RateLimit: 10000}
}

func TestCollectDelta(t *testing.T) {
	track := trackWithURL("USRC17607839", models.ServiceYouTube)
	fetcher := &mockFetcher{
		source: models.SourceYouTube,
		counts: map[string]int64{"USRC17607839": 15892340},
	}

	t.Run("delta against prior sample", func(t *testing.T) {
		store := &mockSampleStore{priors: map[string]*models.PopularitySample{
			priorKey("USRC17607839", models.SourceYouTube): {Count: 15420000},
		}}
		c := NewCollector(nil, store, []Fetcher{fetcher}, fastOptions())

		if _, err := c.Collect(context.Background(), c.BuildJobs([]*models.Track{track})); err != nil {
			t.Fatalf("Collect returned error: %v", err)
		}

		sample := store.find("USRC17607839", models.SourceYouTube)
		if sample == nil {
			t.Fatal("expected a recorded sample")
		}
		if sample.Count != 15892340 {
			t.Errorf("Count = %d", sample.Count)
		}
		if sample.Delta != 472340 {
			t.Errorf("Delta = %d, want 472340", sample.Delta)
		}
	})

	t.Run("no prior sample means zero delta", func(t *testing.T) {
		store := &mockSampleStore{}
		c := NewCollector(nil, store, []Fetcher{fetcher}, fastOptions())

		if _, err := c.Collect(context.Background(), c.BuildJobs([]*models.Track{track})); err != nil {
			t.Fatalf("Collect returned error: %v", err)
		}

		sample := store.find("USRC17607839", models.SourceYouTube)
		if sample == nil {
			t.Fatal("expected a recorded sample")
		}
		if sample.Delta != 0 {
			t.Errorf("Delta = %d, want 0", sample.Delta)
		}
	})

	t.Run("negative delta clamps to zero", func(t *testing.T) {
		store := &mockSampleStore{priors: map[string]*models.PopularitySample{
			priorKey("USRC17607839", models.SourceYouTube): {Count: 99999999},
		}}
		c := NewCollector(nil, store, []Fetcher{fetcher}, fastOptions())

		if _, err := c.Collect(context.Background(), c.BuildJobs([]*models.Track{track})); err != nil {
			t.Fatalf("Collect returned error: %v", err)
		}

		sample := store.find("USRC17607839", models.SourceYouTube)
		if sample == nil {
			t.Fatal("expected a recorded sample")
		}
		if sample.Delta != 0 {
			t.Errorf("Delta = %d, want 0 for a count that went down", sample.Delta)
		}
	})
}

func TestCollectRecordsNoSampleOnMissingData(t *testing.T) {
	track := trackWithURL("USRC17607839", models.ServiceSpotify)
	fetcher := &mockFetcher{
		source: models.SourceSpotify,
		counts: map[string]int64{"USRC17607839": 0}, // upstream reported nothing
	}
	store := &mockSampleStore{}

	c := NewCollector(nil, store, []Fetcher{fetcher}, fastOptions())
	summary, err := c.Collect(context.Background(), c.BuildJobs([]*models.Track{track}))
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	if len(store.samples) != 0 {
		t.Errorf("recorded %d samples, want none for missing data", len(store.samples))
	}
	if summary.Succeeded() != 0 {
		t.Errorf("Succeeded() = %d, want 0", summary.Succeeded())
	}
	if summary.Sources[0].Failures[KindMissingData] != 1 {
		t.Errorf("missing_data failures = %v", summary.Sources[0].Failures)
	}
}

func TestBuildJobs(t *testing.T) {
	withURL := trackWithURL("USRC17607839", models.ServiceSpotify)
	withoutURL := models.NewTrack("GBUM72404321")
	fetcher := &mockFetcher{source: models.SourceSpotify}

	c := NewCollector(nil, &mockSampleStore{}, []Fetcher{fetcher}, fastOptions())
	jobs := c.BuildJobs([]*models.Track{withURL, withoutURL, withURL})

	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Track.ISRC != "USRC17607839" || jobs[0].Source != models.SourceSpotify {
		t.Errorf("job = %+v", jobs[0])
	}
}

func TestCollectDeduplicatesJobs(t *testing.T) {
	track := trackWithURL("USRC17607839", models.ServiceSpotify)
	fetcher := &mockFetcher{
		source: models.SourceSpotify,
		counts: map[string]int64{"USRC17607839": 77},
	}
	store := &mockSampleStore{}

	c := NewCollector(nil, store, []Fetcher{fetcher}, fastOptions())
	jobs := []Job{
		{Track: track, Source: models.SourceSpotify},
		{Track: track, Source: models.SourceSpotify},
		{Track: nil, Source: models.SourceSpotify},
	}

	summary, err := c.Collect(context.Background(), jobs)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	if summary.Processed != 1 {
		t.Errorf("Processed = %d, want 1", summary.Processed)
	}
	if len(store.samples) != 1 {
		t.Errorf("recorded %d samples, want 1", len(store.samples))
	}
}

// breakerFixture builds a 100-job batch where the given ISRC set fails with err.
func breakerFixture(t *testing.T, failing int, failErr error) ([]*models.Track, *mockFetcher) {
	t.Helper()
	fetcher := &mockFetcher{
		source: models.SourceSpotify,
		counts: make(map[string]int64),
		errs:   make(map[string]error),
	}
	tracks := make([]*models.Track, 0, 100)
	for i := 0; i < 100; i++ {
		isrc := fmt.Sprintf("USAAA%07d", i)
		tracks = append(tracks, trackWithURL(isrc, models.ServiceSpotify))
		if i < failing {
			fetcher.errs[isrc] = failErr
		} else {
			fetcher.counts[isrc] = int64(1000 + i)
		}
	}
	return tracks, fetcher
}

func TestCircuitBreaker(t *testing.T) {
	t.Run("mostly rate limited batch continues", func(t *testing.T) {
		// 30% failures, all rate limiting: over the failure threshold but the
		// rate-limit share exemption keeps the batch alive.
		tracks, fetcher := breakerFixture(t, 30, errors.New("spotify API returned 429: too many requests"))
		store := &mockSampleStore{}

		c := NewCollector(nil, store, []Fetcher{fetcher}, fastOptions())
		summary, err := c.Collect(context.Background(), c.BuildJobs(tracks))
		if err != nil {
			t.Fatalf("Collect returned error: %v", err)
		}

		if summary.Aborted {
			t.Error("batch should not abort on rate limiting")
		}
		if summary.Succeeded() != 70 {
			t.Errorf("Succeeded() = %d, want 70", summary.Succeeded())
		}
	})

	t.Run("systemic parsing failures abort", func(t *testing.T) {
		tracks, fetcher := breakerFixture(t, 30, errors.New("failed to decode track response: unexpected EOF"))
		store := &mockSampleStore{}

		c := NewCollector(nil, store, []Fetcher{fetcher}, fastOptions())
		summary, err := c.Collect(context.Background(), c.BuildJobs(tracks))
		if !errors.Is(err, shared.ErrBatchAborted) {
			t.Fatalf("expected ErrBatchAborted, got %v", err)
		}
		if !summary.Aborted {
			t.Error("summary should report the abort")
		}
	})

	t.Run("small failing batch stays under minimum sample size", func(t *testing.T) {
		// Every job fails, but 10 completions never reach the minimum sample
		// size of 20, so the breaker cannot trip.
		fetcher := &mockFetcher{
			source: models.SourceSpotify,
			errs:   make(map[string]error),
		}
		tracks := make([]*models.Track, 0, 10)
		for i := 0; i < 10; i++ {
			isrc := fmt.Sprintf("USBBB%07d", i)
			tracks = append(tracks, trackWithURL(isrc, models.ServiceSpotify))
			fetcher.errs[isrc] = errors.New("failed to decode track response: unexpected EOF")
		}

		c := NewCollector(nil, &mockSampleStore{}, []Fetcher{fetcher}, fastOptions())
		summary, err := c.Collect(context.Background(), c.BuildJobs(tracks))
		if err != nil {
			t.Fatalf("Collect returned error: %v", err)
		}
		if summary.Aborted {
			t.Error("breaker must not trip below the minimum sample size")
		}
	})
}

func TestCollectHonorsContextCancellation(t *testing.T) {
	tracks, fetcher := breakerFixture(t, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCollector(nil, &mockSampleStore{}, []Fetcher{fetcher}, fastOptions())
	_, err := c.Collect(ctx, c.BuildJobs(tracks))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWithRetries(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		inner := &funcFetcher{source: models.SourceSpotify, fn: func() (int64, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("network error: connection reset")
			}
			return 42, nil
		}}

		fetcher := WithRetries(inner, 3, time.Millisecond, nil)
		count, err := fetcher.FetchCount(context.Background(), models.NewTrack("USRC17607839"))
		if err != nil {
			t.Fatalf("FetchCount returned error: %v", err)
		}
		if count != 42 {
			t.Errorf("count = %d, want 42", count)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("returns last error when attempts exhausted", func(t *testing.T) {
		calls := 0
		inner := &funcFetcher{source: models.SourceSpotify, fn: func() (int64, error) {
			calls++
			return 0, fmt.Errorf("attempt %d failed", calls)
		}}

		fetcher := WithRetries(inner, 3, time.Millisecond, nil)
		_, err := fetcher.FetchCount(context.Background(), models.NewTrack("USRC17607839"))
		if err == nil || err.Error() != "attempt 3 failed" {
			t.Errorf("error = %v, want the last attempt's error", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})
}

type funcFetcher struct {
	source models.Source
	fn     func() (int64, error)
}

func (f *funcFetcher) Source() models.Source {
	return f.source
}

func (f *funcFetcher) FetchCount(ctx context.Context, track *models.Track) (int64, error) {
	return f.fn()
}
