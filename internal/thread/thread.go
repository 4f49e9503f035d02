// Package thread segments a two-party message stream into believable
// back-and-forth exchanges, discarding one-sided bursts and unrelated
// messages separated by long gaps.
package thread

import (
	"time"

	"github.com/aminmomin2/convocate/internal/parser"
)

const (
	// threadGap is the maximum silence before a thread closes.
	threadGap = 10 * time.Minute
	// burstGap is the tighter window a same-sender message must be
	// followed within to count as part of an active exchange.
	burstGap = 5 * time.Minute
)

// Reconstruct walks a chronologically sorted two-party stream and keeps
// only the stretches that look like genuine dialogue.
//
// A message extends the current thread when the gap since the thread's
// last message is under threadGap and either the sender changed (a reply)
// or the next message in the raw stream arrives within burstGap (a
// same-sender burst inside an active exchange). A trailing same-sender
// message with nothing after it closes the thread.
//
// Threads in which only one sender ever appears are discarded entirely.
// Survivors are concatenated in discovery order, so the output is a
// subsequence of the input.
func Reconstruct(msgs []parser.Message) []parser.Message {
	if len(msgs) == 0 {
		return nil
	}

	var threads [][]parser.Message
	current := []parser.Message{msgs[0]}

	for i := 1; i < len(msgs); i++ {
		m := msgs[i]
		if extendsThread(current, m, msgs, i) {
			current = append(current, m)
			continue
		}
		threads = append(threads, current)
		current = []parser.Message{m}
	}
	threads = append(threads, current)

	var out []parser.Message
	for _, th := range threads {
		if bothSendersPresent(th) {
			out = append(out, th...)
		}
	}
	return out
}

func extendsThread(current []parser.Message, m parser.Message, msgs []parser.Message, i int) bool {
	prev := current[len(current)-1]
	if m.Timestamp.Sub(prev.Timestamp) >= threadGap {
		return false
	}
	if m.Sender != prev.Sender {
		return true
	}
	// Same sender: only keep the burst if the conversation is still
	// moving, i.e. something else follows shortly.
	if i+1 < len(msgs) && msgs[i+1].Timestamp.Sub(m.Timestamp) < burstGap {
		return true
	}
	return false
}

func bothSendersPresent(th []parser.Message) bool {
	if len(th) < 2 {
		return false
	}
	first := th[0].Sender
	for _, m := range th[1:] {
		if m.Sender != first {
			return true
		}
	}
	return false
}
