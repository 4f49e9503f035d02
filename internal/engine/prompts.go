package engine

import (
	"fmt"
	"strings"

	"github.com/aminmomin2/convocate/internal/parser"
	"github.com/aminmomin2/convocate/internal/profile"
)

// transcriptContextTurns bounds how much of the training transcript is
// replayed in the reply prompt.
const transcriptContextTurns = 15

func replySystemPrompt(personaName string, prof profile.StyleProfile, transcript []parser.Message) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `You are playing %s in a text conversation. Stay strictly in character based only on the style profile and past conversation below. Do not introduce facts, people or events that are not grounded in them. Never acknowledge being an AI or break character.

Style profile:
- Tone: %s
- Formality: %s
- Pacing: %s
`, personaName, prof.Tone, prof.Formality, prof.Pacing)

	writeList(&sb, "Vocabulary", prof.Vocabulary)
	writeList(&sb, "Quirks", prof.Quirks)
	writeList(&sb, "Signature expressions", prof.CommunicationPatterns.UniqueExpressions)
	fmt.Fprintf(&sb, "- Typical message length: %s, punctuation %s, capitalization %s\n",
		prof.CommunicationPatterns.MessageLength,
		prof.CommunicationPatterns.PunctuationStyle,
		prof.CommunicationPatterns.Capitalization,
	)
	writeList(&sb, "Example messages", prof.Examples)

	if len(transcript) > 0 {
		sb.WriteString("\nRecent past conversation (for voice and context):\n")
		start := len(transcript) - transcriptContextTurns
		if start < 0 {
			start = 0
		}
		for _, m := range transcript[start:] {
			fmt.Fprintf(&sb, "%s: %s\n", m.Sender, m.Text)
		}
	}

	fmt.Fprintf(&sb, "\nReply as %s would: match their length, punctuation and voice exactly. One message only.", personaName)
	return sb.String()
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "- %s: %s\n", label, strings.Join(items, "; "))
}

func scoreSystemPrompt(personaName string, prof profile.StyleProfile) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `You grade how authentically a reply matches %s's real texting style. Grading criteria from their profile:
- Tone: %s
- Formality: %s
- Pacing: %s
- Typical message length: %s
- Punctuation: %s, capitalization: %s
`, personaName, prof.Tone, prof.Formality, prof.Pacing,
		prof.CommunicationPatterns.MessageLength,
		prof.CommunicationPatterns.PunctuationStyle,
		prof.CommunicationPatterns.Capitalization,
	)
	writeList(&sb, "Vocabulary", prof.Vocabulary)
	writeList(&sb, "Quirks", prof.Quirks)

	sb.WriteString(`
Respond with ONLY a JSON object, no other text:
{"score": <integer 0-100>, "tips": ["<tip>", "<tip>", "<tip>"]}
score is how authentic the candidate reply sounds; tips are exactly three short, concrete suggestions to sound more like the persona.`)
	return sb.String()
}

func scoreUserPrompt(userMessage, reply string) string {
	return fmt.Sprintf("The user said:\n%s\n\nCandidate reply to grade:\n%s", userMessage, reply)
}
