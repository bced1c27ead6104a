// Package risk extracts a structured fraud verdict from the classifier's
// quasi-structured output. The provider is asked for strict JSON but is
// not trusted to comply, so a layered regex cascade backs up the happy
// path.
package risk

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fraudwatch/server/domain/entities"
)

// DefaultRiskScore is reported when no numeric pattern can be extracted.
// The system never reports "unknown risk" as an error; it degrades to a
// neutral signal.
const DefaultRiskScore = 50

var (
	reLabeled    = regexp.MustCompile(`Riesgo:\s*([0-9]{1,3})/100`)
	rePercent    = regexp.MustCompile(`([0-9]{1,3})%`)
	rePuntuacion = regexp.MustCompile(`Puntuación de riesgo:\s*([0-9]{1,3})`)
	reExplain    = regexp.MustCompile(`Explicación:\s*(.+)`)
)

// structuredVerdict mirrors the JSON shape the classifier is prompted for.
type structuredVerdict struct {
	Diagnostico string      `json:"diagnostico"`
	Explicacion string      `json:"explicacion"`
	Riesgo      json.Number `json:"riesgo"`
}

// Render flattens verdict fields into the human-readable labeled-line
// rendering stored in analysis records and fed back through Parse.
func Render(diagnostico, explicacion string, riesgo int) string {
	return fmt.Sprintf("Diagnóstico: %s\n\nExplicación: %s\n\nRiesgo: %d/100", diagnostico, explicacion, riesgo)
}

// Flatten converts a compliant JSON response into the labeled-line
// rendering. Non-JSON output is returned unchanged so the Parse cascade
// can deal with it.
func Flatten(raw string) string {
	trimmed := strings.TrimSpace(raw)
	// Models occasionally fence their JSON even when told not to.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var v structuredVerdict
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return raw
	}
	score := DefaultRiskScore
	if n, err := v.Riesgo.Int64(); err == nil {
		score = clamp(int(n))
	}
	return Render(v.Diagnostico, v.Explicacion, score)
}

// Parse extracts a Verdict from raw model output. Extraction patterns are
// tried in order, first match wins; a total miss yields the moderate
// default so callers always receive a numeric score.
func Parse(raw string) entities.Verdict {
	return entities.Verdict{
		Diagnosis:   parseDiagnosis(raw),
		Explanation: parseExplanation(raw),
		RiskScore:   parseScore(raw),
	}
}

func parseScore(raw string) int {
	for _, re := range []*regexp.Regexp{reLabeled, rePercent, rePuntuacion} {
		if m := re.FindStringSubmatch(raw); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n <= 100 {
				return n
			}
		}
	}
	return DefaultRiskScore
}

func parseDiagnosis(raw string) entities.Diagnosis {
	// "No Estafa" contains "Estafa"; check the negative label first.
	switch {
	case strings.Contains(raw, string(entities.DiagnosisNotFraud)):
		return entities.DiagnosisNotFraud
	case strings.Contains(raw, string(entities.DiagnosisFraud)):
		return entities.DiagnosisFraud
	default:
		return entities.DiagnosisUnknown
	}
}

func parseExplanation(raw string) string {
	if m := reExplain.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
