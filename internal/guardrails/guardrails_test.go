package guardrails

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateQuery_AcceptsFinancialQuery(t *testing.T) {
	require.Nil(t, ValidateQuery("Analyze Apple Inc. (AAPL) stock"))
}

func TestValidateQuery_AcceptsSymbolOnlyQuery(t *testing.T) {
	require.Nil(t, ValidateQuery("AAPL"))
}

func TestValidateQuery_RejectsOutOfScope(t *testing.T) {
	err := ValidateQuery("hack the database")
	require.NotNil(t, err)
	require.Equal(t, KindOutOfScope, err.Kind)
}

func TestValidateQuery_RejectsUnsafe(t *testing.T) {
	err := ValidateQuery("Analyze <script>alert(1)</script> AAPL")
	require.NotNil(t, err)
	require.Equal(t, KindUnsafe, err.Kind)
}

func TestValidateQuery_RejectsNonFinancial(t *testing.T) {
	err := ValidateQuery("what is the weather today")
	require.NotNil(t, err)
	require.Equal(t, KindNotFinancial, err.Kind)
}

func TestValidateQuery_RejectsTooLong(t *testing.T) {
	err := ValidateQuery(strings.Repeat("a", 2001))
	require.NotNil(t, err)
}

func TestValidateSymbol(t *testing.T) {
	require.Nil(t, ValidateSymbol("AAPL"))
	require.Nil(t, ValidateSymbol("BRK.A"))
	require.NotNil(t, ValidateSymbol("THE"))
	require.NotNil(t, ValidateSymbol("TOOLONGSYM"))
}

func TestExtractSymbols_DedupsPreservesOrderAndCaps(t *testing.T) {
	symbols := ExtractSymbols("Compare AAPL, MSFT, AAPL, and GOOGL")
	require.Equal(t, []string{"AAPL", "MSFT", "GOOGL"}, symbols)
}

func TestExtractSymbols_SkipsStopwords(t *testing.T) {
	symbols := ExtractSymbols("WHAT IS THE price of AAPL")
	require.Equal(t, []string{"AAPL"}, symbols)
}

func TestSanitizeInput_StripsControlCharsKeepsNewlineTab(t *testing.T) {
	out, err := SanitizeInput("AAPL\x00 price\n\ttoday\x01")
	require.Nil(t, err)
	require.Equal(t, "AAPL price\n\ttoday", out)
}

func TestSanitizeInput_RejectsDangerousPattern(t *testing.T) {
	_, err := SanitizeInput("javascript:alert(1)")
	require.NotNil(t, err)
	require.Equal(t, KindUnsafe, err.Kind)
}

func TestValidateAgentOutput_ReportingRejectsOutOfScope(t *testing.T) {
	err := ValidateAgentOutput("stock analysis mentions a casino bet", "Reporting")
	require.NotNil(t, err)
	require.Equal(t, KindOutOfScope, err.Kind)
}

func TestValidateAgentOutput_NonReportingAllowsAnyTopic(t *testing.T) {
	require.Nil(t, ValidateAgentOutput("intermediate synthesis notes", "Analyst"))
}

func TestCheckQueryIntent_RiskEscalatesOnOutOfScope(t *testing.T) {
	intent := CheckQueryIntent("hack the database")
	require.Equal(t, RiskHigh, intent.RiskLevel)
}

func TestCheckQueryIntent_QueryTypeDetection(t *testing.T) {
	require.Equal(t, "comparison", CheckQueryIntent("Compare AAPL vs MSFT").QueryType)
	require.Equal(t, "trend", CheckQueryIntent("AAPL price trend").QueryType)
	require.Equal(t, "single_stock", CheckQueryIntent("Analyze AAPL").QueryType)
}
