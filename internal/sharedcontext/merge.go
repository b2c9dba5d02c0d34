package sharedcontext

import "finyx/internal/progress"

// MergeParallelContexts performs the order-independent merge used after a
// fan-out (spec.md §4.1). contexts must be non-empty; it is the caller's
// responsibility to pass them in completion order so that list fields
// concatenate in the order the futures actually finished.
func (sm *StateManager) MergeParallelContexts(contexts []*Context) *Context {
	if len(contexts) == 0 {
		return nil
	}
	base := contexts[0]

	merged := &Context{
		TransactionID: base.TransactionID,
		SessionID:     base.SessionID,
		QueryText:     base.QueryText,
		QueryType:     base.QueryType,
		Symbols:       base.Symbols,

		ResearchData:      map[string]ResearchPayload{},
		ResearchMetadata:  map[string]ResearchMeta{},
		AnalysisResults:   map[string]AnalysisResult{},
		AnalysisReasoning: map[string]string{},
		SentimentAnalysis: map[string]SentimentResult{},
		TrendAnalysis:     map[string]TrendResult{},
		TokenUsage:        map[string]int{},
		ExecutionTime:     map[string]float64{},
		SymbolStatus:      map[string]SymbolStatus{},
		SymbolErrors:      map[string]string{},
		Visualizations:    map[string]any{},
		ComparisonData:    base.ComparisonData,
		FinalReport:       base.FinalReport,
		PreviousQueryID:   base.PreviousQueryID,
		PreviousSymbols:   base.PreviousSymbols,
		NewSymbols:        base.NewSymbols,
		IsIncremental:     base.IsIncremental,
	}

	agentSeen := map[string]bool{}

	for _, c := range contexts {
		if c == nil {
			continue
		}
		for k, v := range c.ResearchData {
			merged.ResearchData[k] = v
		}
		for k, v := range c.ResearchMetadata {
			merged.ResearchMetadata[k] = v
		}
		for k, v := range c.AnalysisResults {
			merged.AnalysisResults[k] = v
		}
		for k, v := range c.AnalysisReasoning {
			merged.AnalysisReasoning[k] = v
		}
		for k, v := range c.SentimentAnalysis {
			merged.SentimentAnalysis[k] = v
		}
		for k, v := range c.TrendAnalysis {
			merged.TrendAnalysis[k] = v
		}
		for k, v := range c.TokenUsage {
			merged.TokenUsage[k] += v
		}
		for k, v := range c.ExecutionTime {
			merged.ExecutionTime[k] = v
		}
		for k, v := range c.SymbolStatus {
			merged.SymbolStatus[k] = v
		}
		for k, v := range c.SymbolErrors {
			merged.SymbolErrors[k] = v
		}
		if v := c.ComparisonData; v.Insights != "" || len(v.Metrics) > 0 {
			merged.ComparisonData = v
		}
		if c.FinalReport != "" {
			merged.FinalReport = c.FinalReport
		}
		for k, v := range c.Visualizations {
			merged.Visualizations[k] = v
		}

		merged.Citations = append(merged.Citations, c.Citations...)
		merged.ProgressEvents = append(merged.ProgressEvents, c.ProgressEvents...)
		merged.ExecutionOrder = append(merged.ExecutionOrder, c.ExecutionOrder...)
		merged.VectorDBReferences = append(merged.VectorDBReferences, c.VectorDBReferences...)
		merged.SimilarQueries = append(merged.SimilarQueries, c.SimilarQueries...)
		merged.RelatedContextIDs = append(merged.RelatedContextIDs, c.RelatedContextIDs...)

		for _, a := range c.AgentsExecuted {
			if !agentSeen[a] {
				agentSeen[a] = true
				merged.AgentsExecuted = append(merged.AgentsExecuted, a)
			}
		}

		if c.PartialSuccess {
			merged.PartialSuccess = true
		}
	}

	merged.ContextVersion = maxVersion(contexts) + 1
	merged.CurrentAgent = progress.CurrentAgent(merged.ProgressEvents)
	merged.CurrentTasks = progress.CurrentTasks(merged.ProgressEvents)
	sm.calculateContextSize(merged)
	return merged
}

func maxVersion(contexts []*Context) int {
	max := 0
	for _, c := range contexts {
		if c != nil && c.ContextVersion > max {
			max = c.ContextVersion
		}
	}
	return max
}
