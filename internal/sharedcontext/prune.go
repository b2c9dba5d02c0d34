package sharedcontext

import "time"

// PruneContext runs the three-stage pruner when contextSizeBytes exceeds
// maxBytes (spec.md §4.1). It never removes finalReport, researchData,
// analysisResults, or citations.
func (sm *StateManager) PruneContext(c *Context, maxBytes int) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxContextBytes
	}
	sm.calculateContextSize(c)
	if c.ContextSizeBytes <= maxBytes {
		return
	}

	// Stage 1: age-based — drop researchMetadata entries older than 24h.
	cutoff := time.Now().Add(-metadataMaxAge)
	for symbol, meta := range c.ResearchMetadata {
		if meta.Timestamp.Before(cutoff) {
			delete(c.ResearchMetadata, symbol)
		}
	}
	sm.calculateContextSize(c)
	if c.ContextSizeBytes <= maxBytes {
		return
	}

	// Stage 2: relevance-based — truncate long analysisReasoning entries.
	for symbol, reasoning := range c.AnalysisReasoning {
		if len(reasoning) > maxAnalysisReasonLen {
			c.AnalysisReasoning[symbol] = reasoning[:truncatedReasonLen] + "…"
		}
	}
	sm.calculateContextSize(c)
	if c.ContextSizeBytes <= maxBytes {
		return
	}

	// Stage 3: size-based — keep only the tail of progressEvents.
	if len(c.ProgressEvents) > progressEventTail {
		c.ProgressEvents = c.ProgressEvents[len(c.ProgressEvents)-progressEventTail:]
	}
	sm.calculateContextSize(c)
}
