package provider

import "github.com/xln3/forgeagent/pkg/types"

// EstimateCost prices a completion's token usage against the registry's
// model catalog. Per SPEC_FULL's Open Question E.1, cost is advisory: an
// unknown model falls back to zero cost rather than failing the turn, since
// a pricing gap must never abort an otherwise-successful agent step.
func EstimateCost(registry *Registry, providerID, modelID string, usage *types.TokenUsage) float64 {
	if usage == nil {
		return 0
	}
	m, err := registry.GetModel(providerID, modelID)
	if err != nil {
		return 0
	}
	inputCost := float64(usage.Input+usage.CacheRead+usage.CacheWrite) / 1_000_000 * m.InputPrice
	outputCost := float64(usage.Output+usage.Reasoning) / 1_000_000 * m.OutputPrice
	return inputCost + outputCost
}
