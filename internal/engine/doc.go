// Package engine provides the scenario run orchestration service. It parses
// and builds scenario documents, runs them with bounded concurrency, streams
// protocol events to subscribers and persists runs, act verdicts and events
// to the store.
package engine
