package profile

import "sort"

// topN returns the n most frequent items. Ties keep first-seen order.
func topN(items []string, n int) []string {
	order, counts := tally(items)
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// atLeast returns items seen at least min times, in first-seen order.
func atLeast(items []string, minCount int) []string {
	order, counts := tally(items)
	out := make([]string, 0, len(order))
	for _, item := range order {
		if counts[item] >= minCount {
			out = append(out, item)
		}
	}
	return out
}

func tally(items []string) ([]string, map[string]int) {
	counts := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		if counts[item] == 0 {
			order = append(order, item)
		}
		counts[item]++
	}
	return order, counts
}
