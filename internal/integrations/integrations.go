// Package integrations resolves which finance-data sources are enabled and
// in what priority order for each data type (spec.md §4.4).
package integrations

import "strings"

// DataType enumerates the finance-data categories a source can serve.
type DataType string

const (
	DataTypeStockPrice           DataType = "stock_price"
	DataTypeCompanyInfo          DataType = "company_info"
	DataTypeFinancialStatements  DataType = "financial_statements"
	DataTypeNews                 DataType = "news"
	DataTypeHistoricalData       DataType = "historical_data"
	DataTypeTechnicalIndicators  DataType = "technical_indicators"
)

// SourceName enumerates the three finance data sources (glossary: Integration).
const (
	SourceYahooFinance = "yahoo_finance"
	SourceAlphaVantage = "alpha_vantage"
	SourceFMP          = "fmp"
)

// dataSourceMapping is the fixed priority order per data type (spec.md §4.4).
var dataSourceMapping = map[DataType][]string{
	DataTypeStockPrice:          {SourceYahooFinance, SourceAlphaVantage, SourceFMP},
	DataTypeCompanyInfo:         {SourceYahooFinance, SourceFMP, SourceAlphaVantage},
	DataTypeFinancialStatements: {SourceFMP, SourceYahooFinance},
	DataTypeNews:                {SourceYahooFinance, SourceFMP},
	DataTypeHistoricalData:      {SourceYahooFinance},
	DataTypeTechnicalIndicators: {SourceAlphaVantage},
}

// EnabledResolver reports whether a named integration is enabled, honoring
// the ENABLE_<UPPER> env-var override (config.IntegrationsConfig satisfies
// this without integrations importing config, avoiding an import cycle).
type EnabledResolver interface {
	IsEnabled(name string) bool
}

// Config wraps an EnabledResolver with the fixed DATA_SOURCE_MAPPING table.
type Config struct {
	resolver EnabledResolver
}

// New builds a Config backed by resolver (typically config.IntegrationsConfig).
func New(resolver EnabledResolver) *Config {
	return &Config{resolver: resolver}
}

// IsEnabled reports whether name's integration is enabled; unknown names
// default to enabled (spec.md §4.4).
func (c *Config) IsEnabled(name string) bool {
	if c.resolver == nil {
		return true
	}
	return c.resolver.IsEnabled(strings.ToLower(name))
}

// EnabledSourcesForDataType returns, in priority order, the enabled source
// names that can serve dataType. Disabled sources are skipped but not
// reordered.
func (c *Config) EnabledSourcesForDataType(dt DataType) []string {
	preferred := dataSourceMapping[dt]
	out := make([]string, 0, len(preferred))
	for _, src := range preferred {
		if c.IsEnabled(src) {
			out = append(out, src)
		}
	}
	return out
}

// PreferredOrder returns the fixed priority order for dataType regardless
// of enablement, used for documentation/debugging.
func PreferredOrder(dt DataType) []string {
	return dataSourceMapping[dt]
}
