package sharedcontext

// DetectIncrementalQuery is a documented stub. The original
// _detect_incremental_query always returned (true, [], symbols) regardless
// of prior state, which spec.md §9 identifies as ambiguous; we treat
// incremental detection as a no-op until session loading actually returns
// a prior context, rather than silently mimicking the source's always-true
// behavior.
//
// TODO: wire this to LoadStateForSession once a durable session store
// reliably returns prior context for the caller's sessionID.
func DetectIncrementalQuery(_ string, symbols []string) (isIncremental bool, previousSymbols, newSymbols []string) {
	return false, nil, symbols
}

// MergeIncrementalState unions symbols, merges outputs, additively
// accumulates tokenUsage, and preserves prev's finalReport only if next's is
// empty (spec.md §4.1).
func (sm *StateManager) MergeIncrementalState(prev, next *Context) *Context {
	if prev == nil {
		return next
	}
	if next == nil {
		return prev
	}

	merged := sm.MergeParallelContexts([]*Context{prev, next})
	merged.Symbols = unionPreserveOrder(prev.Symbols, next.Symbols)
	if next.FinalReport == "" {
		merged.FinalReport = prev.FinalReport
	} else {
		merged.FinalReport = next.FinalReport
	}
	merged.PreviousQueryID = prev.TransactionID
	return merged
}

func unionPreserveOrder(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
