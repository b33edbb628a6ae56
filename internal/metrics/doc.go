// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Books currently synced and sync failures
//   - Snapshot requests and resyncs
//   - Delta outcomes (applied, buffered, outdated, gap)
//   - Router throughput per message family
//
// All recording methods are safe to call on a nil *Metrics.
package metrics
