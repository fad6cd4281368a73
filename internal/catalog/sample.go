package catalog

import (
	"math/rand/v2"

	"github.com/desertthunder/doowops/internal/models"
)

// Sample returns min(count, len(tracks)) distinct elements of tracks in random order.
func Sample(tracks []models.Track, count int) []models.Track {
	return sample(tracks, count, rand.IntN)
}

// SampleWith is [Sample] driven by r, for reproducible draws.
func SampleWith(r *rand.Rand, tracks []models.Track, count int) []models.Track {
	return sample(tracks, count, r.IntN)
}

// sample runs a partial Fisher-Yates shuffle over an index slice so tracks itself is never reordered.
func sample(tracks []models.Track, count int, intn func(int) int) []models.Track {
	n := min(max(count, 0), len(tracks))
	idx := make([]int, len(tracks))
	for i := range idx {
		idx[i] = i
	}

	out := make([]models.Track, n)
	for i := range n {
		j := i + intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = tracks[idx[i]]
	}
	return out
}
