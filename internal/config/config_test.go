package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("default provider = %q, want anthropic", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "claude-sonnet-4-5" {
		t.Errorf("default model = %q, want claude-sonnet-4-5", cfg.LLM.Model)
	}
	if !cfg.Integrations.EnableYahooFinance || !cfg.Integrations.EnableAlphaVantage || !cfg.Integrations.EnableFMP {
		t.Error("all three sources should default to enabled")
	}
	if cfg.ContextSizeBudget != 1_000_000 {
		t.Errorf("ContextSizeBudget = %d, want 1000000", cfg.ContextSizeBudget)
	}
	if cfg.QueryHistoryLimit != 100 {
		t.Errorf("QueryHistoryLimit = %d, want 100", cfg.QueryHistoryLimit)
	}
	if cfg.Store.KafkaBrokers != nil {
		t.Errorf("KafkaBrokers = %v, want nil when unset", cfg.Store.KafkaBrokers)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LITELLM_PROVIDER", "openai")
	t.Setenv("ENABLE_FMP", "false")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("NEWS_EXTRACT_FULL_TEXT", "true")

	cfg := Load()

	if cfg.LLM.Provider != "openai" {
		t.Errorf("provider = %q, want openai", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("model defaulted for provider = %q, want gpt-4o-mini", cfg.LLM.Model)
	}
	if cfg.Integrations.EnableFMP {
		t.Error("ENABLE_FMP=false should disable FMP")
	}
	want := []string{"broker1:9092", "broker2:9092"}
	if len(cfg.Store.KafkaBrokers) != len(want) || cfg.Store.KafkaBrokers[0] != want[0] || cfg.Store.KafkaBrokers[1] != want[1] {
		t.Errorf("KafkaBrokers = %v, want %v", cfg.Store.KafkaBrokers, want)
	}
	if !cfg.Store.NewsExtractFull {
		t.Error("NEWS_EXTRACT_FULL_TEXT=true should set NewsExtractFull")
	}
}

func TestLoad_FINYXModelOverridesProviderDefault(t *testing.T) {
	t.Setenv("LITELLM_PROVIDER", "gemini")
	t.Setenv("FINYX_MODEL", "gemini-2.0-pro")

	cfg := Load()
	if cfg.LLM.Model != "gemini-2.0-pro" {
		t.Errorf("model = %q, want gemini-2.0-pro", cfg.LLM.Model)
	}
}

func TestIntegrationsConfig_IsEnabled(t *testing.T) {
	c := IntegrationsConfig{EnableYahooFinance: true, EnableAlphaVantage: false, EnableFMP: true}

	cases := map[string]bool{
		"yahoo_finance": true,
		"YAHOO_FINANCE": true,
		"alpha_vantage": false,
		"fmp":           true,
		"unknown":       true,
	}
	for name, want := range cases {
		if got := c.IsEnabled(name); got != want {
			t.Errorf("IsEnabled(%q) = %v, want %v", name, got, want)
		}
	}
}
