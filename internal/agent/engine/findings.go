package engine

import (
	"regexp"
	"strings"

	"github.com/opsloop/triage/internal/models"
)

// Findings is the structured content pulled out of the model's final
// analysis text.
type Findings struct {
	RootCause       string
	Confidence      models.Confidence
	Evidence        string
	Recommendations []string
}

var (
	rootCauseMarkerRe  = regexp.MustCompile(`(?i)ROOT CAUSE:\s*(.+)`)
	confidenceMarkerRe = regexp.MustCompile(`(?i)CONFIDENCE:\s*(high|medium|low)`)
	evidenceMarkerRe   = regexp.MustCompile(`(?is)EVIDENCE:\s*(.+?)(?:\n\n|\n[A-Z]+:|$)`)
	recommendationsRe  = regexp.MustCompile(`(?is)RECOMMENDATIONS?:\s*(.+?)(?:\n\n|$)`)

	// Fallbacks for answers that ignore the requested format.
	rootCauseFallbackRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:the\s+)?root cause (?:is|appears to be|seems to be)\s+(.+?)(?:\.|$)`),
		regexp.MustCompile(`(?i)(?:this\s+)?(?:is\s+)?(?:likely\s+)?caused by\s+(.+?)(?:\.|$)`),
		regexp.MustCompile(`(?i)(?:the\s+)?issue (?:is|appears to be)\s+(.+?)(?:\.|$)`),
	}

	recommendationSplitRe = regexp.MustCompile(`\n[-*\x{2022}]\s*|\n\d+\.\s*|\n`)

	highConfidenceIndicators = []string{"definitely", "certainly", "clearly", "obviously", "high confidence"}
	lowConfidenceIndicators  = []string{"possibly", "maybe", "might", "could be", "low confidence", "uncertain"}
)

// ParseFindings extracts structured findings from the model's final
// answer. It prefers the explicit section markers and degrades to
// heuristics for free-form text, so it always produces a usable result.
func ParseFindings(content string) Findings {
	return Findings{
		RootCause:       extractRootCause(content),
		Confidence:      extractConfidence(content),
		Evidence:        extractEvidenceSection(content),
		Recommendations: extractRecommendations(content),
	}
}

func extractRootCause(content string) string {
	if content == "" {
		return ""
	}

	if m := rootCauseMarkerRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}

	for _, re := range rootCauseFallbackRes {
		if m := re.FindStringSubmatch(content); m != nil {
			return strings.TrimSpace(m[1])
		}
	}

	// Last resort: the first sentence.
	if idx := strings.Index(content, "."); idx > 0 {
		return strings.TrimSpace(content[:idx])
	}
	return strings.TrimSpace(content)
}

func extractConfidence(content string) models.Confidence {
	if content == "" {
		return models.ConfidenceMedium
	}

	if m := confidenceMarkerRe.FindStringSubmatch(content); m != nil {
		return models.ParseConfidence(strings.ToLower(m[1]))
	}

	lower := strings.ToLower(content)
	for _, indicator := range highConfidenceIndicators {
		if strings.Contains(lower, indicator) {
			return models.ConfidenceHigh
		}
	}
	for _, indicator := range lowConfidenceIndicators {
		if strings.Contains(lower, indicator) {
			return models.ConfidenceLow
		}
	}
	return models.ConfidenceMedium
}

func extractEvidenceSection(content string) string {
	if m := evidenceMarkerRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func extractRecommendations(content string) []string {
	if content == "" {
		return nil
	}

	m := recommendationsRe.FindStringSubmatch(content)
	if m == nil {
		return nil
	}

	var out []string
	for _, line := range recommendationSplitRe.Split(strings.TrimSpace(m[1]), -1) {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• \t"))
		// Very short fragments are bullet markers or noise.
		if len(line) > 10 {
			out = append(out, line)
		}
	}
	return out
}
