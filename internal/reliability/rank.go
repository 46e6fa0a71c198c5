package reliability

import "sort"

// RankedProvider is one entry in RankProviders' result.
type RankedProvider struct {
	Name  string
	Score float64
}

// RankProviders scores each name per spec.md §4.7: score = 0.7 ×
// successRate + 0.3 × (1 - normalizedLatency), where normalizedLatency is
// the provider's average latency scaled to [0,1] across the names given
// (the fastest of the set gets 0, the slowest gets 1; a single-provider
// set normalizes to 0 for everyone, since there's nothing to compare
// against). Results are sorted descending by score, ties broken by name
// for determinism.
func (t *Tracker) RankProviders(names []string) []RankedProvider {
	if len(names) == 0 {
		return nil
	}

	latencies := make(map[string]float64, len(names))
	minLatency, maxLatency := -1.0, -1.0
	for _, name := range names {
		l := float64(t.AvgLatency(name).Milliseconds())
		latencies[name] = l
		if minLatency < 0 || l < minLatency {
			minLatency = l
		}
		if maxLatency < 0 || l > maxLatency {
			maxLatency = l
		}
	}

	ranked := make([]RankedProvider, 0, len(names))
	spread := maxLatency - minLatency
	for _, name := range names {
		normalized := 0.0
		if spread > 0 {
			normalized = (latencies[name] - minLatency) / spread
		}
		score := 0.7*t.SuccessRate(name) + 0.3*(1-normalized)
		ranked = append(ranked, RankedProvider{Name: name, Score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Name < ranked[j].Name
	})

	return ranked
}
