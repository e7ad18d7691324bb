// Package history writes applied state facts to a time-series store.
//
// A Recorder sits between fact ingest and the scheduler. Each fact the
// scheduler accepts becomes one point in the facts measurement, tagged by
// state name, so the inputs that drove rule decisions can be graphed
// alongside other site telemetry.
package history
