// Package poller audits synced books against fresh snapshots.
//
// On every interval the poller lists the engine's synced channels, fetches a
// snapshot for each one through the configured SnapshotSource and compares
// the top levels with the locally maintained book. Results are counted in
// metrics and logged. The poller never mutates a book; a mismatch is a
// signal for operators, not a repair.
package poller
