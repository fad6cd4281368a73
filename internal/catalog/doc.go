// Package catalog turns a playlist identifier into randomized candidate tracks.
//
// [Cache] keeps one entry per playlist with a fixed time-to-live. A fresh entry is served without touching the
// provider; a stale or missing entry triggers one full re-fetch, and concurrent readers of the same playlist share
// that fetch. A failed fetch never replaces or removes an existing entry.
//
// [Sample] draws a uniformly random subset without replacement and has no hidden state.
package catalog
