package detection

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/image-annotator/pkg/types"
)

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInlineComment = regexp.MustCompile(`(?m)//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseOutlineResult parses a model answer. Answers that are not usable
// JSON yield an empty result with an explanatory description instead of an
// error.
func ParseOutlineResult(raw string) *types.OutlineResult {
	raw = SanitizeModelJSON(raw)

	if !strings.HasPrefix(raw, "{") {
		return &types.OutlineResult{
			Objects:     []types.Polygon{},
			Description: "Model returned non-JSON response",
		}
	}

	var result types.OutlineResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return &types.OutlineResult{
			Objects:     []types.Polygon{},
			Description: "Failed to parse model response",
		}
	}
	if result.Objects == nil {
		result.Objects = []types.Polygon{}
	}
	return &result
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from
// a model answer and keeps the outermost object.
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInlineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
