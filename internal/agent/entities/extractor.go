// Package entities extracts structured facts (pod name, namespace, error
// summary) from free-text incident descriptions.
package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/opsloop/triage/internal/agent/provider"
	"github.com/opsloop/triage/internal/logging"
)

var logger = logging.GetLogger("agent.entities")

const extractPrompt = `You are an SRE assistant. Extract the pod name, namespace, and a summary of the error from the following incident description. Respond with a JSON object containing 'pod_name', 'namespace', and 'error_summary'. If a field cannot be extracted, use null. If the pod name is not explicitly mentioned, try to infer it from context. If the namespace is not explicitly mentioned, assume 'default'.

Incident Description: %s

Example JSON Response:
{
  "pod_name": "my-pod-xyz",
  "namespace": "my-namespace",
  "error_summary": "Container crashed due to OOM"
}`

var (
	podNameRe   = regexp.MustCompile(`pod:(\S+)`)
	namespaceRe = regexp.MustCompile(`namespace:(\S+)`)
)

// Extractor pulls entities out of incident descriptions, using the
// reasoning service first and a regex scan as fallback. Extraction is
// best effort: it never fails an investigation.
type Extractor struct {
	provider provider.Provider
}

// NewExtractor creates an entity extractor on top of the given provider.
// A nil provider skips straight to the regex fallback.
func NewExtractor(p provider.Provider) *Extractor {
	return &Extractor{provider: p}
}

// Extract returns the entities found in the description. The "namespace"
// key defaults to "default" when nothing else is found.
func (e *Extractor) Extract(ctx context.Context, description string) map[string]string {
	if e.provider != nil {
		if entities, err := e.extractWithModel(ctx, description); err == nil {
			return entities
		} else {
			logger.WarnWithFields("Model entity extraction failed, falling back to regex",
				logging.Field("error", err.Error()))
		}
	}
	return extractWithRegex(description)
}

func (e *Extractor) extractWithModel(ctx context.Context, description string) (map[string]string, error) {
	resp, err := e.provider.Chat(ctx, "", []provider.Message{{
		Role:    provider.RoleUser,
		Content: fmt.Sprintf(extractPrompt, description),
	}}, nil)
	if err != nil {
		return nil, err
	}

	// The model may wrap the JSON in a markdown block.
	raw := resp.Content
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var decoded struct {
		PodName      *string `json:"pod_name"`
		Namespace    *string `json:"namespace"`
		ErrorSummary *string `json:"error_summary"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode entity JSON: %w", err)
	}

	entities := map[string]string{"namespace": "default"}
	if decoded.PodName != nil && *decoded.PodName != "" {
		entities["pod"] = *decoded.PodName
	}
	if decoded.Namespace != nil && *decoded.Namespace != "" {
		entities["namespace"] = *decoded.Namespace
	}
	if decoded.ErrorSummary != nil && *decoded.ErrorSummary != "" {
		entities["error_summary"] = *decoded.ErrorSummary
	}
	return entities, nil
}

func extractWithRegex(description string) map[string]string {
	entities := map[string]string{"namespace": "default"}
	if m := podNameRe.FindStringSubmatch(description); m != nil {
		entities["pod"] = m[1]
	}
	if m := namespaceRe.FindStringSubmatch(description); m != nil {
		entities["namespace"] = m[1]
	}
	return entities
}
