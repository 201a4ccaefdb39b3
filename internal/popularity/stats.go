package popularity

import (
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/crosschart/crosschart/internal/models"
)

// sourceStats tracks per-source outcomes during a batch. Counters are atomic
// because workers update them concurrently; the circuit breaker only reads.
type sourceStats struct {
	attempted atomic.Int64
	succeeded atomic.Int64
	kinds     [numKinds]atomic.Int64

	mu       sync.Mutex
	messages map[string]int
}

func newSourceStats() *sourceStats {
	return &sourceStats{messages: make(map[string]int)}
}

// recordFailure counts a classified failure and tracks its message frequency.
func (s *sourceStats) recordFailure(kind ErrorKind, err error) {
	s.kinds[kind].Add(1)
	s.mu.Lock()
	s.messages[err.Error()]++
	s.mu.Unlock()
}

func (s *sourceStats) rateLimited() int64 {
	return s.kinds[KindRateLimit].Load()
}

// SourceSummary is the per-source outcome snapshot for a finished batch.
type SourceSummary struct {
	Source    models.Source
	Attempted int64
	Succeeded int64
	Failures  map[ErrorKind]int64
	Messages  map[string]int
}

// Summary aggregates batch outcomes across all sources.
type Summary struct {
	Processed int
	Deduped   int
	Aborted   bool
	Sources   []SourceSummary
}

// Attempted returns the total fetch attempts across all sources.
func (s *Summary) Attempted() int64 {
	var total int64
	for _, src := range s.Sources {
		total += src.Attempted
	}
	return total
}

// Succeeded returns the total successful fetches across all sources.
func (s *Summary) Succeeded() int64 {
	var total int64
	for _, src := range s.Sources {
		total += src.Succeeded
	}
	return total
}

// Log writes the batch summary as structured log entries.
func (s *Summary) Log(logger *log.Logger) {
	attempted := s.Attempted()
	succeeded := s.Succeeded()
	rate := 0.0
	if attempted > 0 {
		rate = float64(succeeded) / float64(attempted)
	}

	logger.Info("popularity batch finished",
		"processed", s.Processed,
		"deduped", s.Deduped,
		"attempted", attempted,
		"succeeded", succeeded,
		"success_rate", rate,
		"aborted", s.Aborted,
	)

	for _, src := range s.Sources {
		kv := []any{"source", src.Source, "attempted", src.Attempted, "succeeded", src.Succeeded}
		for kind, count := range src.Failures {
			if count > 0 {
				kv = append(kv, kind.String(), count)
			}
		}
		logger.Info("source results", kv...)

		for msg, count := range src.Messages {
			logger.Debug("fetch error", "source", src.Source, "count", count, "message", msg)
		}
	}
}
