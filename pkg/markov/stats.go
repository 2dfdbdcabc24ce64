package markov

// Stats holds aggregated statistics for a single chain.
type Stats struct {
	Order          int `json:"order"`           // The memory depth of the chain
	States         int `json:"states"`          // The number of distinct states observed
	TotalLinks     int `json:"total_links"`     // The number of unique state->next_token links.
	TotalFrequency int `json:"total_frequency"` // The sum of all next weights; the total number of seeded windows.
	StartingTokens int `json:"starting_tokens"` // The number of unique tokens that can start a run.
	TokenMapSize   int `json:"token_map_size"`  // The number of distinct tokens in the token map, 0 when disabled
}

// Stats returns a snapshot of statistics for the chain.
func (c *Chain) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{
		Order:        c.order,
		States:       c.space.Len(),
		TokenMapSize: c.tokenMap.Len(),
	}
	for _, e := range c.space.entries {
		stats.TotalLinks += e.next.Len()
		stats.TotalFrequency += e.next.Total()
	}
	if next, _, ok := c.space.Lookup(c.initial); ok {
		stats.StartingTokens = next.Len()
		if next.Count(End) > 0 {
			stats.StartingTokens--
		}
	}
	return stats
}
