package popularity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/shared"
	"golang.org/x/time/rate"
)

// Fetcher returns the current popularity count for a track on one source.
// Implementations surface enough message detail for failure classification.
type Fetcher interface {
	Source() models.Source
	FetchCount(ctx context.Context, track *models.Track) (int64, error)
}

// SampleStore persists popularity samples and answers prior-sample lookups.
// Writers never target the same (ISRC, source) key concurrently; the work-set
// deduplication guarantees that, not locking.
type SampleStore interface {
	// LatestBefore returns the most recent sample for (isrc, source) recorded
	// strictly before date, or [shared.ErrNotFound].
	LatestBefore(isrc string, source models.Source, date time.Time) (*models.PopularitySample, error)

	// Upsert writes a sample, replacing any sample with the same
	// (isrc, source, recorded date).
	Upsert(sample *models.PopularitySample) error
}

// Job is one unit of work: fetch the popularity count for one track on one source.
type Job struct {
	Track  *models.Track
	Source models.Source
}

// Options tunes the collection batch.
type Options struct {
	Workers          int     // Worker pool size (default 3)
	RateLimit        float64 // Fetches per second across the pool (default 5)
	CheckEvery       int     // Breaker cadence in completed jobs (default 10)
	MinSampleSize    int     // Completed jobs before the breaker may trip (default 20)
	FailureThreshold float64 // Failure rate that arms the breaker (default 0.25)
	RateLimitShare   float64 // Rate-limit share of attempts treated as benign (default 0.15)
}

func (o *Options) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = 3
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 5.0
	}
	if o.CheckEvery <= 0 {
		o.CheckEvery = 10
	}
	if o.MinSampleSize <= 0 {
		o.MinSampleSize = 20
	}
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 0.25
	}
	if o.RateLimitShare <= 0 {
		o.RateLimitShare = 0.15
	}
}

// Collector runs popularity collection batches. It exclusively owns sample writes.
type Collector struct {
	logger   *log.Logger
	store    SampleStore
	fetchers map[models.Source]Fetcher
	opts     Options

	stats     map[models.Source]*sourceStats
	completed atomic.Int64
	now       func() time.Time
}

// NewCollector creates a Collector over the given fetchers and sample store.
func NewCollector(logger *log.Logger, store SampleStore, fetchers []Fetcher, opts Options) *Collector {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	opts.applyDefaults()

	bysource := make(map[models.Source]Fetcher, len(fetchers))
	stats := make(map[models.Source]*sourceStats, len(fetchers))
	for _, fetcher := range fetchers {
		bysource[fetcher.Source()] = fetcher
		stats[fetcher.Source()] = newSourceStats()
	}

	return &Collector{
		logger:   logger,
		store:    store,
		fetchers: bysource,
		opts:     opts,
		stats:    stats,
		now:      time.Now,
	}
}

// BuildJobs constructs the deduplicated work-set for the given tracks: one job
// per (track, source) pair where the track has a URL for that source's service.
func (c *Collector) BuildJobs(tracks []*models.Track) []Job {
	seen := make(map[string]bool)
	var jobs []Job
	for _, track := range tracks {
		for source := range c.fetchers {
			if track.URL(models.Service(source)) == "" {
				continue
			}
			key := track.ISRC + "|" + string(source)
			if seen[key] {
				continue
			}
			seen[key] = true
			jobs = append(jobs, Job{Track: track, Source: source})
		}
	}
	return jobs
}

// Collect runs the batch. In-flight jobs finish when the circuit breaker
// trips, but no new jobs are dequeued and the batch fails with
// [shared.ErrBatchAborted]. The breaker condition is re-checked once after the
// last job completes.
func (c *Collector) Collect(ctx context.Context, jobs []Job) (*Summary, error) {
	deduped := c.dedupe(jobs)
	c.logger.Info("starting popularity batch",
		"jobs", len(deduped), "workers", c.opts.Workers, "sources", len(c.fetchers))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var tripMu sync.Mutex
	var tripErr error
	abort := func(err error) {
		tripMu.Lock()
		if tripErr == nil {
			tripErr = err
			cancel()
		}
		tripMu.Unlock()
	}

	limiter := rate.NewLimiter(rate.Limit(c.opts.RateLimit), 1)
	jobsCh := make(chan Job)

	go func() {
		defer close(jobsCh)
		for _, job := range deduped {
			select {
			case <-runCtx.Done():
				return
			case jobsCh <- job:
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < c.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobsCh {
				if err := limiter.Wait(runCtx); err != nil {
					return
				}

				c.processJob(runCtx, job)

				completed := c.completed.Add(1)
				if completed%int64(c.opts.CheckEvery) == 0 {
					if err := c.checkBreaker(completed); err != nil {
						abort(err)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	summary := c.summarize(len(deduped), len(jobs)-len(deduped))

	tripMu.Lock()
	tripped := tripErr
	tripMu.Unlock()
	if tripped != nil {
		summary.Aborted = true
		return summary, tripped
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	// Final re-check: the batch may have degraded after the last cadence check.
	if err := c.checkBreaker(c.completed.Load()); err != nil {
		summary.Aborted = true
		return summary, err
	}

	return summary, nil
}

// dedupe drops repeated (track, source) pairs, keeping first occurrence order.
func (c *Collector) dedupe(jobs []Job) []Job {
	seen := make(map[string]bool, len(jobs))
	deduped := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job.Track == nil {
			continue
		}
		key := job.Track.ISRC + "|" + string(job.Source)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, job)
	}
	return deduped
}

// processJob fetches one count and persists a sample on success. Failures are
// classified and recorded; they never fail the batch on their own.
func (c *Collector) processJob(ctx context.Context, job Job) {
	st := c.stats[job.Source]
	fetcher := c.fetchers[job.Source]
	if st == nil || fetcher == nil {
		c.logger.Error("no fetcher registered for source", "source", job.Source)
		return
	}

	st.attempted.Add(1)

	count, err := fetcher.FetchCount(ctx, job.Track)
	if err != nil {
		kind := Classify(job.Source, err)
		st.recordFailure(kind, err)
		if kind == KindRateLimit {
			c.logger.Warn("fetch rate limited", "isrc", job.Track.ISRC, "source", job.Source)
		} else {
			c.logger.Warn("fetch failed",
				"isrc", job.Track.ISRC, "source", job.Source, "kind", kind.String(), "error", err)
		}
		return
	}

	if count <= 0 {
		// No sample is preferable to a fabricated zero.
		st.recordFailure(KindMissingData, fmt.Errorf("no popularity returned"))
		c.logger.Warn("no popularity returned", "isrc", job.Track.ISRC, "source", job.Source)
		return
	}

	today := models.DateOnly(c.now())
	var delta int64
	prior, err := c.store.LatestBefore(job.Track.ISRC, job.Source, today)
	switch {
	case err == nil && prior != nil:
		delta = count - prior.Count
		if delta < 0 {
			delta = 0
		}
	case errors.Is(err, shared.ErrNotFound):
		delta = 0
	case err != nil:
		st.recordFailure(KindOther, err)
		c.logger.Error("prior sample lookup failed", "isrc", job.Track.ISRC, "source", job.Source, "error", err)
		return
	}

	sample := &models.PopularitySample{
		ISRC:         job.Track.ISRC,
		Source:       job.Source,
		RecordedDate: today,
		Count:        count,
		Delta:        delta,
	}
	if err := c.store.Upsert(sample); err != nil {
		st.recordFailure(KindOther, err)
		c.logger.Error("sample write failed", "isrc", job.Track.ISRC, "source", job.Source, "error", err)
		return
	}

	st.succeeded.Add(1)
	c.logger.Info("recorded sample", "isrc", job.Track.ISRC, "source", job.Source, "count", count, "delta", delta)
}

// checkBreaker evaluates the fail-fast condition over the running counters.
//
// A failure rate above the threshold aborts the batch unless rate-limit
// failures account for more than the configured share of attempts; upstream
// throttling is an expected failure mode and must not kill the run.
func (c *Collector) checkBreaker(completed int64) error {
	var attempted, succeeded, rateLimited int64
	for _, st := range c.stats {
		attempted += st.attempted.Load()
		succeeded += st.succeeded.Load()
		rateLimited += st.rateLimited()
	}

	if attempted == 0 || completed < int64(c.opts.MinSampleSize) {
		return nil
	}

	failureRate := 1 - float64(succeeded)/float64(attempted)
	if failureRate <= c.opts.FailureThreshold {
		return nil
	}

	rateLimitShare := float64(rateLimited) / float64(attempted)
	if rateLimitShare > c.opts.RateLimitShare {
		c.logger.Warn("high rate limiting detected, continuing",
			"rate_limited", rateLimited, "attempted", attempted)
		return nil
	}

	return fmt.Errorf("%w: failure rate %.1f%% exceeds %.1f%% threshold",
		shared.ErrBatchAborted, failureRate*100, c.opts.FailureThreshold*100)
}

// summarize snapshots the per-source counters into a [Summary].
func (c *Collector) summarize(processed, dropped int) *Summary {
	summary := &Summary{Processed: processed, Deduped: dropped}
	for source, st := range c.stats {
		src := SourceSummary{
			Source:    source,
			Attempted: st.attempted.Load(),
			Succeeded: st.succeeded.Load(),
			Failures:  make(map[ErrorKind]int64, int(numKinds)),
			Messages:  make(map[string]int),
		}
		for kind := ErrorKind(0); kind < numKinds; kind++ {
			if count := st.kinds[kind].Load(); count > 0 {
				src.Failures[kind] = count
			}
		}
		st.mu.Lock()
		for msg, count := range st.messages {
			src.Messages[msg] = count
		}
		st.mu.Unlock()
		summary.Sources = append(summary.Sources, src)
	}
	return summary
}
