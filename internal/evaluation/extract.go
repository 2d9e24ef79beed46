package evaluation

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jonathan/speaking-coach/internal/schemas"
	"github.com/jonathan/speaking-coach/internal/types"
	"github.com/kaptinlin/jsonrepair"
)

// Strategy extracts a judgment from raw model text, reporting false when
// the text holds nothing it recognizes.
type Strategy func(text string) (*types.EvaluationResult, bool)

// Strategies are tried in order; the first success wins.
var Strategies = []Strategy{
	FencedLabeled,
	FencedAny,
	BareObject,
	WholeText,
}

var (
	fencedLabeledRe = regexp.MustCompile("(?is)```[ \\t]*json[ \\t]*\\r?\\n?(.*?)```")
	fencedAnyRe     = regexp.MustCompile("(?s)```[\\w+-]*[ \\t]*\\r?\\n?(.*?)```")
	leadingNumberRe = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)`)
)

// FencedLabeled reads the first ```json fenced block that decodes.
func FencedLabeled(text string) (*types.EvaluationResult, bool) {
	return firstMatch(fencedLabeledRe, text, types.SourceFencedLabeled)
}

// FencedAny reads the first fenced block of any label that decodes.
func FencedAny(text string) (*types.EvaluationResult, bool) {
	return firstMatch(fencedAnyRe, text, types.SourceFencedUnlabeled)
}

// BareObject reads the smallest balanced {...} substring that decodes to
// an object with a score.
func BareObject(text string) (*types.EvaluationResult, bool) {
	candidates := balancedObjects(text)
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) < len(candidates[j])
	})
	for _, c := range candidates {
		obj, ok := decodeJudgment(c)
		if !ok {
			continue
		}
		if _, scored := obj["score"]; scored {
			return buildResult(obj, types.SourceBareObject), true
		}
	}
	return nil, false
}

// WholeText reads the entire text as one object.
func WholeText(text string) (*types.EvaluationResult, bool) {
	obj, ok := decodeJudgment(strings.TrimSpace(text))
	if !ok {
		return nil, false
	}
	return buildResult(obj, types.SourceWholeText), true
}

func firstMatch(re *regexp.Regexp, text, source string) (*types.EvaluationResult, bool) {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if obj, ok := decodeJudgment(strings.TrimSpace(m[1])); ok {
			return buildResult(obj, source), true
		}
	}
	return nil, false
}

// decodeJudgment parses candidate as a JSON object, repairing it once when
// strict decoding fails. Missing or drifted fields are left to buildResult.
func decodeJudgment(candidate string) (map[string]any, bool) {
	if candidate == "" {
		return nil, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(candidate)
		if rerr != nil {
			return nil, false
		}
		obj = nil
		if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
			return nil, false
		}
	}
	if obj == nil {
		return nil, false
	}
	if err := schemas.Validate(schemas.Judgment, obj); err != nil {
		return nil, false
	}
	return obj, true
}

// balancedObjects returns every balanced {...} substring, honoring JSON
// string literals.
func balancedObjects(text string) []string {
	var out []string
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		if end := matchBrace(text, start); end > start {
			out = append(out, text[start:end+1])
		}
	}
	return out
}

func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func buildResult(obj map[string]any, source string) *types.EvaluationResult {
	result := &types.EvaluationResult{
		Score:           CoerceScore(obj["score"]),
		Strengths:       stringList(obj["strengths"]),
		Improvements:    stringList(obj["improvements"]),
		Suggestions:     stringList(obj["suggestions"]),
		OverallFeedback: stringValue(obj["overall_feedback"]),
		Source:          source,
	}
	result.Normalize()
	return result
}

// CoerceScore converts a decoded score to an integer in [0,100]. Numbers
// are rounded; strings use their leading number ("82", "82/100", "82分").
// Anything else yields the neutral score.
func CoerceScore(v any) int {
	var f float64
	switch s := v.(type) {
	case float64:
		f = s
	case int:
		f = float64(s)
	case json.Number:
		parsed, err := s.Float64()
		if err != nil {
			return types.NeutralScore
		}
		f = parsed
	case string:
		m := leadingNumberRe.FindStringSubmatch(s)
		if m == nil {
			return types.NeutralScore
		}
		parsed, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return types.NeutralScore
		}
		f = parsed
	default:
		return types.NeutralScore
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return types.NeutralScore
	}
	f = math.Max(types.MinScore, math.Min(types.MaxScore, f))
	return types.ClampScore(int(math.Round(f)))
}

// stringList reads a list field. A lone string becomes a one-element list
// and non-string items are dropped.
func stringList(v any) []string {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case string:
		items = []any{t}
	default:
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
