// Package tasks runs background catalog work with real-time progress reporting.
//
// # Warming
//
// [Warmer.Warm] loads a set of playlists through a [Loader], normally the catalog cache, so the first draw of a
// game on one of them does not wait on pagination. Playlists load on a bounded worker pool; one failing playlist
// is recorded in the [WarmReport] and does not stop the others.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data. Updates use select
// with default to prevent blocking, so a slow or absent reader never stalls the workers.
package tasks
