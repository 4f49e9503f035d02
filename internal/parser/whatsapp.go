package parser

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
	"time"
)

// WhatsApp exports come in two flavours depending on platform:
//
//	[1/2/23, 10:30] Alice: Hello there        (iOS)
//	1/2/23, 10:30 - Alice: Hello there        (Android)
//
// Continuation lines and system messages ("Messages are end-to-end
// encrypted...") don't match either pattern and are dropped.
var (
	waBracketRe = regexp.MustCompile(`^\[([^\]]+)\]\s+([^:]+):\s(.*)$`)
	waDashRe    = regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4},\s*\d{1,2}:\d{2}(?::\d{2})?(?:\s?[APap][Mm])?)\s-\s([^:]+):\s(.*)$`)
)

var waTimeLayouts = []string{
	"1/2/06, 15:04",
	"1/2/06, 15:04:05",
	"1/2/06, 3:04 PM",
	"1/2/06, 3:04:05 PM",
	"1/2/2006, 15:04",
	"1/2/2006, 15:04:05",
	"1/2/2006, 3:04 PM",
	"1/2/2006, 3:04:05 PM",
	"2006-01-02, 15:04",
}

// ParseWhatsApp parses a WhatsApp text export. Non-matching lines are
// silently dropped, which loses multi-line message bodies — a known
// simplification.
func ParseWhatsApp(data []byte) []Message {
	var msgs []Message

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Strip the left-to-right mark some exports prepend.
		line = strings.TrimPrefix(line, "‎")
		if line == "" {
			continue
		}

		var m []string
		if m = waBracketRe.FindStringSubmatch(line); m == nil {
			m = waDashRe.FindStringSubmatch(line)
		}
		if m == nil {
			continue
		}

		sender := strings.TrimSpace(m[2])
		text := m[3]
		if sender == "" || text == "" {
			continue
		}

		msgs = append(msgs, Message{
			Sender:    sender,
			Text:      text,
			Timestamp: parseWhatsAppTime(m[1]),
		})
	}

	return msgs
}

func parseWhatsAppTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	// Some locales use a narrow no-break space before AM/PM.
	raw = strings.ReplaceAll(raw, " ", " ")
	for _, layout := range waTimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Now()
}
