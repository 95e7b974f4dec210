package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryResolvesAllCapabilities(t *testing.T) {
	r := NewDefaultRegistry()

	caps := []Capability{
		CapabilityResearch,
		CapabilityEvaluation,
		CapabilityPlanning,
		CapabilityAuthoring,
		CapabilityFast,
	}
	for _, cap := range caps {
		name := r.Resolve(cap)
		require.NotEmpty(t, name, "capability %s", cap)
		assert.NotNil(t, r.GetEndpoint(name), "resolved model %s needs an endpoint", name)
	}
}

func TestResolveUnknownCapabilityUsesDefault(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, "claude-haiku", r.Resolve(Capability("telepathy")))
}

func TestGetFallbackChainOrder(t *testing.T) {
	r := NewDefaultRegistry()

	chain := r.GetFallbackChain(CapabilityPlanning)

	require.Equal(t, []string{"claude-sonnet", "claude-haiku", "qwen"}, chain)
}

func TestForTemplateUsesTemplateCapability(t *testing.T) {
	r := NewDefaultRegistry()

	assert.Equal(t, r.Resolve(CapabilityPlanning), r.ForTemplate("plan_modules"))
	assert.Equal(t, r.Resolve(CapabilityAuthoring), r.ForTemplate("submodule_content"))
	assert.Equal(t, r.Resolve(CapabilityFast), r.ForTemplate("unknown_template"))
}

func TestCapabilityForTemplateMapping(t *testing.T) {
	assert.Equal(t, CapabilityResearch, CapabilityForTemplate("seed_queries"))
	assert.Equal(t, CapabilityEvaluation, CapabilityForTemplate("evaluate_research"))
	assert.Equal(t, CapabilityFast, CapabilityForTemplate("nope"))
}

func TestFromConfigPreservesUnknownCapabilities(t *testing.T) {
	r := FromConfig(&RegistryConfig{
		Capabilities: map[string]*CapabilityConfig{
			"planning":  {Preferred: []string{"m1"}},
			"my-custom": {Preferred: []string{"m2"}},
		},
		Endpoints: map[string]*EndpointConfig{
			"m1": {Provider: "openai", Model: "gpt"},
			"m2": {Provider: "ollama", Model: "qwen"},
		},
	})

	assert.Equal(t, "m1", r.Resolve(CapabilityPlanning))
	assert.Equal(t, "m2", r.Resolve(Capability("my-custom")))
	assert.Equal(t, "default", r.Resolve(CapabilityResearch), "missing capability falls to default")
}

func TestConfigRoundTrip(t *testing.T) {
	r := NewDefaultRegistry()

	cfg := r.ToConfig()
	r2 := FromConfig(cfg)

	assert.Equal(t, r.Resolve(CapabilityAuthoring), r2.Resolve(CapabilityAuthoring))
	assert.Equal(t, r.GetFallbackChain(CapabilityFast), r2.GetFallbackChain(CapabilityFast))
}

func TestMergeFromConfigOverwrites(t *testing.T) {
	r := NewDefaultRegistry()

	r.MergeFromConfig(&RegistryConfig{
		Capabilities: map[string]*CapabilityConfig{
			"authoring": {Preferred: []string{"local-llama"}},
		},
		Endpoints: map[string]*EndpointConfig{
			"local-llama": {Provider: "ollama", URL: "http://localhost:11434/v1", Model: "llama3"},
		},
	})

	assert.Equal(t, "local-llama", r.Resolve(CapabilityAuthoring))
	assert.Equal(t, "claude-haiku", r.Resolve(CapabilityResearch), "untouched capabilities survive")
	require.NotNil(t, r.GetEndpoint("local-llama"))
	require.NotNil(t, r.GetEndpoint("claude-sonnet"))
}

func TestCircuitOpensAfterThreshold(t *testing.T) {
	r := NewDefaultRegistry()

	for i := 0; i < 3; i++ {
		assert.True(t, r.IsEndpointAvailable("claude-sonnet"))
		r.MarkEndpointFailure("claude-sonnet")
	}

	assert.False(t, r.IsEndpointAvailable("claude-sonnet"))

	health := r.GetEndpointHealth("claude-sonnet")
	require.NotNil(t, health)
	assert.True(t, health.CircuitOpen)
	assert.Equal(t, 3, health.FailureCount)
}

func TestSuccessClosesCircuit(t *testing.T) {
	r := NewDefaultRegistry()

	for i := 0; i < 3; i++ {
		r.MarkEndpointFailure("qwen")
	}
	require.False(t, r.IsEndpointAvailable("qwen"))

	r.MarkEndpointSuccess("qwen")

	assert.True(t, r.IsEndpointAvailable("qwen"))
	health := r.GetEndpointHealth("qwen")
	require.NotNil(t, health)
	assert.False(t, health.CircuitOpen)
	assert.Equal(t, 0, health.FailureCount)
}

func TestHalfOpenAfterRecoveryTimeout(t *testing.T) {
	r := NewDefaultRegistry()
	r.SetHealthConfig(HealthConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
		HalfOpenRequests: 1,
	})

	r.MarkEndpointFailure("claude-haiku")
	require.False(t, r.IsEndpointAvailable("claude-haiku"))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, r.IsEndpointAvailable("claude-haiku"), "recovery timeout admits a test request")
}

func TestAvailableFallbackChainSkipsOpenCircuits(t *testing.T) {
	r := NewDefaultRegistry()

	for i := 0; i < 3; i++ {
		r.MarkEndpointFailure("claude-sonnet")
	}

	chain := r.GetAvailableFallbackChain(CapabilityPlanning)
	assert.Equal(t, []string{"claude-haiku", "qwen"}, chain)
}

func TestAvailableFallbackChainFallsBackToFullChain(t *testing.T) {
	r := NewDefaultRegistry()

	for _, name := range []string{"claude-sonnet", "claude-haiku", "qwen"} {
		for i := 0; i < 3; i++ {
			r.MarkEndpointFailure(name)
		}
	}

	chain := r.GetAvailableFallbackChain(CapabilityPlanning)
	assert.Equal(t, []string{"claude-sonnet", "claude-haiku", "qwen"}, chain,
		"all circuits open still yields something to try")
}
