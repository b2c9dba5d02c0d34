package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"finyx/internal/llmgateway"
	"finyx/internal/progress"
	"finyx/internal/sharedcontext"
	"finyx/internal/vectorstore"
)

const (
	topCitationsCount = 10
	reportTemperature = 0.4
	reportMaxTokens   = 2000
)

// reportSections is the fixed section order every report must follow
// (spec.md §4.10 step 3).
var reportSections = []string{
	"Executive Summary", "Company Overview", "Financial Analysis",
	"Sentiment Analysis", "Trends", "Recommendation", "Risk", "Sources",
}

// RunReporting executes the Reporting agent (spec.md §4.10).
func (d *Deps) RunReporting(ctx context.Context, parent *sharedcontext.Context) (*sharedcontext.Context, error) {
	if len(parent.ResearchData) == 0 || len(parent.AnalysisResults) == 0 {
		return parent, fmt.Errorf("reporting: researchData and analysisResults are required")
	}

	return runWithLifecycle(d.State, parent, AgentReporting, func() ([]*sharedcontext.Context, error) {
		child := cloneForFanout(parent)
		order := len(parent.ProgressEvents)
		d.State.AddProgressEvent(child, progress.TaskStart(AgentReporting, "generate_report", "", parent.TransactionID, order, false))

		researchSummary := summarizeResearch(parent)
		analysisSummary := summarizeAnalysis(parent)
		citationsBlock := topCitations(parent.Citations)

		systemPrompt := buildSystemPrompt(parent)
		userPrompt := fmt.Sprintf(
			"Research summary:\n%s\n\nAnalysis summary:\n%s\n\nTop sources:\n%s\n\n"+
				"Write the report using exactly these sections in order: %s. "+
				"Attribute every data point inline as [Source: <name>: <dataPoint>].",
			researchSummary, analysisSummary, citationsBlock, strings.Join(reportSections, ", "))

		result, err := d.LLM.Complete(ctx, []llmgateway.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		}, "", reportTemperature, reportMaxTokens)

		var report string
		if err != nil {
			d.Log.Warn().Err(err).Msg("report generation failed")
			report = "Report generation failed: " + err.Error()
		} else {
			report = result.Content
			d.State.TrackTokenUsage(child, AgentReporting, result.TotalTokens)
		}

		if parent.PartialSuccess {
			report = report + "\n\n" + partialResultsDisclosure(parent)
		}

		visualizations := buildVisualizations(parent)
		d.State.UpdateFinalReport(child, report, visualizations)

		if err == nil {
			d.storeReport(ctx, child, report, parent.Symbols)
		}

		d.State.AddProgressEvent(child, progress.TaskComplete(AgentReporting, "generate_report", "", parent.TransactionID, order, false))
		return []*sharedcontext.Context{child}, nil
	})
}

// buildSystemPrompt composes the base template plus the available-data-types
// list (spec.md §4.10 step 2). It does not disclose which integrations are
// enabled.
func buildSystemPrompt(parent *sharedcontext.Context) string {
	var dataTypes []string
	seen := map[string]bool{}
	for _, r := range parent.ResearchData {
		for _, pair := range []struct {
			present bool
			name    string
		}{
			{r.Price != nil, "stock_price"},
			{r.Company != nil, "company_info"},
			{r.News != nil, "news"},
			{r.Historical != nil, "historical_data"},
			{r.Financials != nil, "financial_statements"},
		} {
			if pair.present && !seen[pair.name] {
				seen[pair.name] = true
				dataTypes = append(dataTypes, pair.name)
			}
		}
	}
	sort.Strings(dataTypes)

	return "You are a financial reporting assistant producing an evidence-backed report. " +
		"Available data types for this run: " + strings.Join(dataTypes, ", ") + "."
}

func summarizeResearch(parent *sharedcontext.Context) string {
	var b strings.Builder
	symbols := sortedSymbols(parent.ResearchData)
	for _, symbol := range symbols {
		r := parent.ResearchData[symbol]
		fmt.Fprintf(&b, "%s: ", symbol)
		if r.Price != nil {
			fmt.Fprintf(&b, "price %.2f (%.2f%%), ", r.Price.CurrentPrice, r.Price.ChangePercent)
		}
		if r.Company != nil {
			fmt.Fprintf(&b, "%s in %s, ", r.Company.Name, r.Company.Sector)
		}
		if r.News != nil {
			fmt.Fprintf(&b, "%d news articles, ", len(r.News.Articles))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func summarizeAnalysis(parent *sharedcontext.Context) string {
	var b strings.Builder
	for symbol, reasoning := range parent.AnalysisReasoning {
		fmt.Fprintf(&b, "%s: %s\n", symbol, reasoning)
	}
	return b.String()
}

func sortedSymbols(m map[string]sharedcontext.ResearchPayload) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// topCitations renders up to topCitationsCount citations (spec.md §4.10
// step 1 "top-10 citations").
func topCitations(citations []sharedcontext.Citation) string {
	n := len(citations)
	if n > topCitationsCount {
		n = topCitationsCount
	}
	var b strings.Builder
	for _, c := range citations[:n] {
		fmt.Fprintf(&b, "- %s (%s): %s\n", c.Source, c.Date, c.DataPoint)
	}
	return b.String()
}

// partialResultsDisclosure renders a deterministic, template-built section
// naming every failed symbol and its error, appended to finalReport whenever
// partialSuccess is true. It is never left to LLM discretion (spec.md §7
// "the final report always includes a 'Partial results' disclosure when
// partialSuccess is true, enumerating failed symbols and their error
// messages").
func partialResultsDisclosure(parent *sharedcontext.Context) string {
	failed := make([]string, 0, len(parent.SymbolErrors))
	for symbol := range parent.SymbolErrors {
		failed = append(failed, symbol)
	}
	sort.Strings(failed)

	var b strings.Builder
	b.WriteString("## Partial Results\n")
	b.WriteString("This report is incomplete: the following symbols could not be fully processed.\n")
	for _, symbol := range failed {
		fmt.Fprintf(&b, "- %s: %s\n", symbol, parent.SymbolErrors[symbol])
	}
	return b.String()
}

// buildVisualizations prepares per-symbol chart data (spec.md §4.10 step 4).
func buildVisualizations(parent *sharedcontext.Context) map[string]any {
	out := map[string]any{}
	for symbol, r := range parent.ResearchData {
		entry := map[string]any{}
		if r.Historical != nil {
			var dates []string
			var closes []float64
			for _, bar := range r.Historical.Data {
				dates = append(dates, bar.Date.Format("2006-01-02"))
				closes = append(closes, bar.Close)
			}
			entry["price_trends"] = map[string]any{"dates": dates, "closes": closes}
		}
		if r.Price != nil {
			comparison := map[string]any{"price": r.Price.CurrentPrice, "volume": r.Price.Volume}
			if r.Price.MarketCap != nil {
				comparison["marketCap"] = *r.Price.MarketCap
			}
			entry["comparison_charts"] = comparison
		}
		if s, ok := parent.SentimentAnalysis[symbol]; ok {
			entry["sentiment_charts"] = map[string]any{"label": s.Sentiment, "score": s.Score}
		}
		if len(entry) > 0 {
			out[symbol] = entry
		}
	}
	return out
}

// storeReport embeds the generated report and inserts it into
// company_analysis, best-effort (spec.md §4.10 step 5).
func (d *Deps) storeReport(ctx context.Context, child *sharedcontext.Context, report string, symbols []string) {
	if d.Store == nil || strings.TrimSpace(report) == "" {
		return
	}
	embedding := d.LLM.Embed(ctx, report)
	err := d.Store.AddDocument(ctx, vectorstore.CollectionCompanyAnalysis, vectorstore.Document{
		Text:      report,
		Embedding: embedding,
		Metadata: map[string]any{
			"symbols":     strings.Join(symbols, ","),
			"generatedAt": time.Now().UTC().Format(time.RFC3339),
			"source":      "reporting",
		},
	})
	if err != nil {
		d.Log.Warn().Err(err).Msg("failed to store generated report in vector store")
		return
	}
	child.VectorDBReferences = append(child.VectorDBReferences, vectorstore.CollectionCompanyAnalysis+":report")
}
