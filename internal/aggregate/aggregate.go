// Package aggregate merges parsed chat exports into a single chronological
// stream and picks the conversation's two principal speakers.
package aggregate

import (
	"errors"
	"sort"

	"github.com/aminmomin2/convocate/internal/parser"
)

// ErrNoValidMessages indicates that no parseable messages survived across
// all uploaded files.
var ErrNoValidMessages = errors.New("no valid messages found in uploaded files")

// Bucket groups one sender's messages, remembering the order in which the
// sender was first encountered so ranking ties are deterministic.
type Bucket struct {
	Sender   string
	Messages []parser.Message
	order    int
}

// Merge flattens the per-file message lists into one stream sorted by
// timestamp ascending. The sort is stable so equal timestamps keep their
// input order.
func Merge(files [][]parser.Message) ([]parser.Message, error) {
	var all []parser.Message
	for _, msgs := range files {
		all = append(all, msgs...)
	}
	if len(all) == 0 {
		return nil, ErrNoValidMessages
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	return all, nil
}

// Group buckets a sorted stream by exact sender string. No normalization
// is applied: "Alice" and "alice" are distinct speakers.
func Group(msgs []parser.Message) []Bucket {
	index := make(map[string]int)
	var buckets []Bucket

	for _, m := range msgs {
		i, ok := index[m.Sender]
		if !ok {
			i = len(buckets)
			index[m.Sender] = i
			buckets = append(buckets, Bucket{Sender: m.Sender, order: i})
		}
		buckets[i].Messages = append(buckets[i].Messages, m)
	}

	return buckets
}

// SelectTop ranks buckets by message count descending (ties broken by
// first-seen order) and returns only the top k. Everyone else is fully
// discarded: the surviving speakers become the personas.
func SelectTop(buckets []Bucket, k int) []Bucket {
	ranked := make([]Bucket, len(buckets))
	copy(ranked, buckets)

	sort.SliceStable(ranked, func(i, j int) bool {
		if len(ranked[i].Messages) != len(ranked[j].Messages) {
			return len(ranked[i].Messages) > len(ranked[j].Messages)
		}
		return ranked[i].order < ranked[j].order
	})

	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

// FilterSenders returns the subsequence of msgs whose sender is one of the
// given buckets, preserving order.
func FilterSenders(msgs []parser.Message, buckets []Bucket) []parser.Message {
	keep := make(map[string]bool, len(buckets))
	for _, b := range buckets {
		keep[b.Sender] = true
	}

	var out []parser.Message
	for _, m := range msgs {
		if keep[m.Sender] {
			out = append(out, m)
		}
	}
	return out
}
