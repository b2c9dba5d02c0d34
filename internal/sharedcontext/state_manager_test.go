package sharedcontext

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"finyx/internal/progress"
)

func testSM() *StateManager {
	return NewStateManager(zerolog.Nop())
}

func TestCreateInitial_DerivesQueryTypeAndSymbols(t *testing.T) {
	sm := testSM()
	c := sm.CreateInitial("Compare AAPL and MSFT", "", nil, "")
	require.Equal(t, QueryTypeComparison, c.QueryType)
	require.Equal(t, []string{"AAPL", "MSFT"}, c.Symbols)
	require.Len(t, c.TransactionID, 8)
	require.Equal(t, 1, c.ContextVersion)
}

func TestCreateInitial_HonorsExplicitTransactionID(t *testing.T) {
	sm := testSM()
	c := sm.CreateInitial("Analyze AAPL", "", nil, "deadbeef")
	require.Equal(t, "deadbeef", c.TransactionID)
}

func TestDetectQueryType_FirstMatchWins(t *testing.T) {
	require.Equal(t, QueryTypeComparison, DetectQueryType("Compare AAPL vs MSFT trend"))
	require.Equal(t, QueryTypeTrend, DetectQueryType("AAPL trend pattern"))
	require.Equal(t, QueryTypeSentiment, DetectQueryType("AAPL news impact"))
	require.Equal(t, QueryTypeSimilarity, DetectQueryType("companies similar to AAPL"))
	require.Equal(t, QueryTypeSingleStock, DetectQueryType("Analyze AAPL"))
}

func TestUpdateResearchData_IncrementsVersion(t *testing.T) {
	sm := testSM()
	c := sm.CreateInitial("Analyze AAPL", "", []string{"AAPL"}, "")
	before := c.ContextVersion
	sm.UpdateResearchData(c, "AAPL", ResearchPayload{Price: &PriceData{Symbol: "AAPL", CurrentPrice: 100}}, ResearchMeta{DataQuality: DataQualityComplete})
	require.Greater(t, c.ContextVersion, before)
	require.Equal(t, 100.0, c.ResearchData["AAPL"].Price.CurrentPrice)
}

func TestMarkSymbolStatus_SetsPartialSuccess(t *testing.T) {
	sm := testSM()
	c := sm.CreateInitial("Compare AAPL and BAD", "", []string{"AAPL", "BAD"}, "")
	sm.MarkSymbolStatus(c, "AAPL", SymbolStatusSuccess, "")
	sm.MarkSymbolStatus(c, "BAD", SymbolStatusFailed, "upstream 500")
	require.True(t, c.PartialSuccess)
	require.Equal(t, "upstream 500", c.SymbolErrors["BAD"])
}

func TestAddCitation_DedupsOnIdentity(t *testing.T) {
	sm := testSM()
	c := sm.CreateInitial("Analyze AAPL", "", []string{"AAPL"}, "")
	cit := Citation{Source: "yahoo_finance", DataPoint: "price", Symbol: "AAPL", Date: "2026-07-31"}
	sm.AddCitation(c, cit)
	sm.AddCitation(c, cit)
	require.Len(t, c.Citations, 1)
}

func TestAgentsExecuted_IsPrefixAndUnique(t *testing.T) {
	sm := testSM()
	c := sm.CreateInitial("Analyze AAPL", "", []string{"AAPL"}, "")
	sm.MarkAgentExecuted(c, "Research Agent")
	sm.MarkAgentExecuted(c, "Analyst Agent")
	sm.MarkAgentExecuted(c, "Research Agent")
	require.Equal(t, []string{"Research Agent", "Analyst Agent"}, c.AgentsExecuted)
}

func TestPruneContext_NeverDropsFinalReportOrCitations(t *testing.T) {
	sm := testSM()
	c := sm.CreateInitial("Analyze AAPL", "", []string{"AAPL"}, "")
	c.FinalReport = "AAPL looks strong"
	sm.AddCitation(c, Citation{Source: "yahoo_finance", DataPoint: "price", Symbol: "AAPL", Date: "2026-07-31"})
	for i := 0; i < 200; i++ {
		c.ProgressEvents = append(c.ProgressEvents, progress.TaskProgress("Research Agent", "fetch_price", "AAPL", "", c.TransactionID, i, false))
	}
	sm.PruneContext(c, 1)
	require.Equal(t, "AAPL looks strong", c.FinalReport)
	require.Len(t, c.Citations, 1)
	require.LessOrEqual(t, len(c.ProgressEvents), progressEventTail)
}

func TestPruneContext_StageOneDropsOldMetadata(t *testing.T) {
	sm := testSM()
	c := sm.CreateInitial("Analyze AAPL", "", []string{"AAPL"}, "")
	c.ResearchMetadata["AAPL"] = ResearchMeta{Timestamp: time.Now().Add(-48 * time.Hour), DataQuality: DataQualityComplete}
	sm.PruneContext(c, 1)
	_, ok := c.ResearchMetadata["AAPL"]
	require.False(t, ok)
}

func TestMergeParallelContexts_RightToLeftOverwriteAndUnion(t *testing.T) {
	sm := testSM()
	base := &Context{TransactionID: "tx1", ContextVersion: 1}
	a := &Context{
		TransactionID:  "tx1",
		ContextVersion: 1,
		ResearchData:   map[string]ResearchPayload{"AAPL": {}},
		TokenUsage:     map[string]int{"research": 10},
		AgentsExecuted: []string{"Research Agent"},
	}
	b := &Context{
		TransactionID:  "tx1",
		ContextVersion: 1,
		ResearchData:   map[string]ResearchPayload{"AAPL": {Price: &PriceData{Symbol: "AAPL", CurrentPrice: 200}}},
		TokenUsage:     map[string]int{"research": 5},
		AgentsExecuted: []string{"Research Agent"},
	}
	merged := sm.MergeParallelContexts([]*Context{base, a, b})
	require.Equal(t, "tx1", merged.TransactionID)
	require.Equal(t, 200.0, merged.ResearchData["AAPL"].Price.CurrentPrice)
	require.Equal(t, 15, merged.TokenUsage["research"])
	require.Equal(t, []string{"Research Agent"}, merged.AgentsExecuted)
}
