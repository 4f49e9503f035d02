// Package sampler selects a bounded, quality-weighted cross-section of a
// speaker's messages for style profiling. Naive recency or length
// sampling under-represents a voice; this stratifies across quality,
// content shape and behavioral register.
package sampler

import (
	"sort"
	"strings"
	"unicode"

	"github.com/aminmomin2/convocate/internal/parser"
)

// DefaultCap bounds how many messages per speaker are sent to the
// profiling model.
const DefaultCap = 200

// Strata shares of the cap. Later strata exclude earlier picks.
const (
	qualityShare    = 40
	contentShare    = 30
	behavioralShare = 20
	recencyShare    = 10
)

var informalMarkers = []string{"lol", "lmao", "omg", "haha", "tbh", "ngl", "idk", "btw"}

var contentCategories = []func(string) bool{
	isQuestion,
	isLongStatement,
	isReactive,
	isLogistics,
	isCasualSlang,
}

var behavioralCategories = []func(string) bool{
	isProactive,
	isTerseReactive,
	isEmotional,
	isAnalytical,
	isCasualSlang,
}

// Sample returns msgs unchanged when it fits under cap; otherwise it
// returns exactly cap messages drawn from msgs, in chronological order,
// with no duplicates.
func Sample(msgs []parser.Message, cap int) []parser.Message {
	if cap <= 0 || len(msgs) <= cap {
		return msgs
	}

	chosen := make(map[int]bool, cap)

	pickTopQuality(msgs, chosen, cap*qualityShare/100)
	pickByCategory(msgs, chosen, cap*contentShare/100, contentCategories)
	pickByCategory(msgs, chosen, cap*behavioralShare/100, behavioralCategories)
	pickMostRecent(msgs, chosen, cap*recencyShare/100)

	// Category quotas rarely fill exactly; top up from quality order so
	// the result is always exactly cap.
	if len(chosen) < cap {
		pickTopQuality(msgs, chosen, cap-len(chosen))
	}

	indexes := make([]int, 0, len(chosen))
	for i := range chosen {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	if len(indexes) > cap {
		indexes = indexes[:cap]
	}

	out := make([]parser.Message, len(indexes))
	for i, idx := range indexes {
		out[i] = msgs[idx]
	}
	return out
}

// QualityScore rates how revealing of voice a single message is. Higher
// is better.
func QualityScore(text string) float64 {
	score := 0.0

	switch n := len([]rune(text)); {
	case n >= 10 && n <= 200:
		score += 3.0 // sweet spot: substantive but conversational
	case n > 200:
		score += 1.0
	default:
		score += 0.5
	}

	if strings.Contains(text, "?") {
		score += 1.5
	}
	if strings.Contains(text, "!") {
		score += 1.0
	}
	if strings.Contains(text, "...") {
		score += 0.5
	}

	score += uniqueWordRatio(text) * 2.0

	lower := strings.ToLower(text)
	for _, marker := range informalMarkers {
		if strings.Contains(lower, marker) {
			score += 0.5
			break
		}
	}
	if containsEmoji(text) {
		score += 0.5
	}

	return score
}

func pickTopQuality(msgs []parser.Message, chosen map[int]bool, n int) {
	if n <= 0 {
		return
	}

	type scored struct {
		idx   int
		score float64
	}
	var candidates []scored
	for i, m := range msgs {
		if !chosen[i] {
			candidates = append(candidates, scored{i, QualityScore(m.Text)})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	for i := 0; i < n && i < len(candidates); i++ {
		chosen[candidates[i].idx] = true
	}
}

func pickByCategory(msgs []parser.Message, chosen map[int]bool, n int, categories []func(string) bool) {
	if n <= 0 {
		return
	}
	perCategory := n / len(categories)
	if perCategory == 0 {
		perCategory = 1
	}

	taken := 0
	for _, match := range categories {
		count := 0
		for i, m := range msgs {
			if taken >= n || count >= perCategory {
				break
			}
			if chosen[i] || !match(m.Text) {
				continue
			}
			chosen[i] = true
			count++
			taken++
		}
	}
}

func pickMostRecent(msgs []parser.Message, chosen map[int]bool, n int) {
	for i := len(msgs) - 1; i >= 0 && n > 0; i-- {
		if chosen[i] {
			continue
		}
		chosen[i] = true
		n--
	}
}

// Content categories.

func isQuestion(text string) bool {
	return strings.Contains(text, "?")
}

func isLongStatement(text string) bool {
	return len([]rune(text)) > 100
}

func isReactive(text string) bool {
	if strings.Contains(text, "!") {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range []string{"haha", "lol", "omg", "wow", "nice", "yay"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isLogistics(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range []string{"tomorrow", "today", "tonight", "meet", "when", "where", "plan", "schedule", "time", "pick up"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isCasualSlang(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range []string{"lol", "lmao", "bro", "dude", "gonna", "wanna", "tbh", "ngl", "fr", "bruh"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Behavioral categories.

func isProactive(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range []string{"hey", "yo ", "hi ", "what's up", "whats up", "you up", "you around", "guess what"} {
		if strings.HasPrefix(lower, kw) {
			return true
		}
	}
	return false
}

func isTerseReactive(text string) bool {
	if len([]rune(text)) >= 20 {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range []string{"ok", "k", "yeah", "yea", "sure", "yep", "nah", "no", "cool", "lol", "same", "true"} {
		if lower == kw || strings.HasPrefix(lower, kw+" ") {
			return true
		}
	}
	return false
}

func isEmotional(text string) bool {
	if containsEmoji(text) {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range []string{"love", "hate", "miss", "sorry", "excited", "sad", "happy", "ugh", "can't believe", "cant believe"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isAnalytical(text string) bool {
	if len([]rune(text)) < 150 {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range []string{"because", "think", "actually", "however", "basically", "the thing is"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func uniqueWordRatio(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		seen[w] = true
	}
	return float64(len(seen)) / float64(len(words))
}

func containsEmoji(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.So, r) || (r >= 0x1F300 && r <= 0x1FAFF) {
			return true
		}
	}
	return false
}
