package engine

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

const maxTips = 3

// parseScore defensively extracts {score, tips} from the scoring call's
// output. The model is told to return bare JSON, but fences, prose
// wrappers and shape drift all happen; anything unusable yields ok=false
// and the caller falls back to the sentinel.
func parseScore(raw string) (int, []string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	// The object is sometimes embedded in prose; probe for it.
	if !gjson.Valid(s) {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start < 0 || end <= start {
			return 0, nil, false
		}
		s = s[start : end+1]
		if !gjson.Valid(s) {
			return 0, nil, false
		}
	}

	scoreField := gjson.Get(s, "score")
	tipsField := gjson.Get(s, "tips")
	if !scoreField.Exists() || scoreField.Type != gjson.Number {
		return 0, nil, false
	}
	if !tipsField.IsArray() {
		return 0, nil, false
	}

	var parsed struct {
		Score int      `json:"score"`
		Tips  []string `json:"tips"`
	}
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return 0, nil, false
	}

	if parsed.Score < 0 {
		parsed.Score = 0
	}
	if parsed.Score > 100 {
		parsed.Score = 100
	}

	tips := parsed.Tips
	if tips == nil {
		tips = []string{}
	}
	if len(tips) > maxTips {
		tips = tips[:maxTips]
	}
	return parsed.Score, tips, true
}
