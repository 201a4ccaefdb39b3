// package popularity collects time-series popularity samples for canonical
// tracks from external data sources.
//
// A bounded worker pool processes one job per (track, source) pair. Each job's
// fetch retries internally with exponential backoff; failures are classified
// into a fixed taxonomy that feeds both the run statistics and the circuit
// breaker. The breaker aborts the whole batch when the non-rate-limit failure
// rate signals a systemic regression rather than upstream throttling.
package popularity
