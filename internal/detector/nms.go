package detector

import (
	"sort"

	"github.com/MeKo-Tech/brandscan/internal/utils"
)

// NonMaxSuppression performs greedy class-aware NMS: a detection is
// suppressed only by a higher-scoring detection of the same label.
func NonMaxSuppression(dets []Detection, iouThreshold float64) []Detection {
	if len(dets) <= 1 {
		return dets
	}

	indices := sortByScore(dets)
	suppressed := make([]bool, len(dets))
	kept := make([]Detection, 0, len(dets))

	for n, a := range indices {
		if suppressed[a] {
			continue
		}
		kept = append(kept, dets[a])

		for _, b := range indices[n+1:] {
			if suppressed[b] || dets[a].Label != dets[b].Label {
				continue
			}
			if utils.IoU(dets[a].Box, dets[b].Box) > iouThreshold {
				suppressed[b] = true
			}
		}
	}

	return kept
}

// sortByScore returns indices ordered by descending score, stable on input order.
func sortByScore(dets []Detection) []int {
	indices := make([]int, len(dets))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return dets[indices[i]].Score > dets[indices[j]].Score
	})
	return indices
}
