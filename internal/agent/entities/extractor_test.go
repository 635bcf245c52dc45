package entities

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsloop/triage/internal/agent/provider"
)

func TestExtract_FromModelJSON(t *testing.T) {
	scripted := provider.NewScriptedProvider(provider.TextTurn(
		"Here is the extraction:\n```json\n{\"pod_name\": \"payment-api-7f9\", \"namespace\": \"prod\", \"error_summary\": \"OOM killed\"}\n```"))
	e := NewExtractor(scripted)

	entities := e.Extract(context.Background(), "payment-api crashed")
	assert.Equal(t, "payment-api-7f9", entities["pod"])
	assert.Equal(t, "prod", entities["namespace"])
	assert.Equal(t, "OOM killed", entities["error_summary"])
}

func TestExtract_ModelNullFieldsDefaultNamespace(t *testing.T) {
	scripted := provider.NewScriptedProvider(provider.TextTurn(
		`{"pod_name": null, "namespace": null, "error_summary": "timeouts"}`))
	e := NewExtractor(scripted)

	entities := e.Extract(context.Background(), "some vague incident")
	_, hasPod := entities["pod"]
	assert.False(t, hasPod)
	assert.Equal(t, "default", entities["namespace"])
	assert.Equal(t, "timeouts", entities["error_summary"])
}

func TestExtract_FallsBackToRegexOnModelError(t *testing.T) {
	scripted := provider.NewScriptedProvider(provider.ErrorTurn(errors.New("quota exceeded")))
	e := NewExtractor(scripted)

	entities := e.Extract(context.Background(), "CrashLoop on pod:db-0 namespace:staging")
	assert.Equal(t, "db-0", entities["pod"])
	assert.Equal(t, "staging", entities["namespace"])
}

func TestExtract_FallsBackToRegexOnGarbageResponse(t *testing.T) {
	scripted := provider.NewScriptedProvider(provider.TextTurn("I cannot help with that"))
	e := NewExtractor(scripted)

	entities := e.Extract(context.Background(), "pod:web-1 is down")
	assert.Equal(t, "web-1", entities["pod"])
	assert.Equal(t, "default", entities["namespace"])
}

func TestExtract_NilProviderUsesRegex(t *testing.T) {
	e := NewExtractor(nil)

	entities := e.Extract(context.Background(), "errors in namespace:payments")
	require.NotNil(t, entities)
	assert.Equal(t, "payments", entities["namespace"])
	_, hasPod := entities["pod"]
	assert.False(t, hasPod)
}
