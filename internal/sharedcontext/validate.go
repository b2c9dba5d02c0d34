package sharedcontext

import "finyx/internal/guardrails"

// ValidateState checks that a Context's required fields are present and
// that its symbols and final report (if any) pass their individual
// guardrail validators (spec.md §4.3).
func ValidateState(c *Context) *guardrails.Error {
	if c.QueryText == "" {
		return &guardrails.Error{Kind: guardrails.KindInvalid, Message: "state missing required field: query"}
	}
	if c.QueryType == "" {
		return &guardrails.Error{Kind: guardrails.KindInvalid, Message: "state missing required field: queryType"}
	}
	for _, s := range c.Symbols {
		if err := guardrails.ValidateSymbol(s); err != nil {
			return err
		}
	}
	if c.FinalReport != "" {
		if err := guardrails.ValidateAgentOutput(c.FinalReport, "Reporting"); err != nil {
			return err
		}
	}
	return nil
}
