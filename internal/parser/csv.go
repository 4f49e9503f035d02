package parser

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"
)

var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"1/2/2006 15:04",
	"1/2/06 15:04",
	"1/2/2006, 3:04 PM",
}

// ParseCSV parses a header-driven CSV export with sender, message and
// timestamp columns. Rows missing sender or message are skipped; a
// missing timestamp defaults to now.
func ParseCSV(data []byte) []Message {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	senderIdx, okSender := cols["sender"]
	messageIdx, okMessage := cols["message"]
	tsIdx, okTS := cols["timestamp"]
	if !okSender || !okMessage {
		return nil
	}

	var msgs []Message
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}

		sender := field(row, senderIdx)
		text := field(row, messageIdx)
		if sender == "" || text == "" {
			continue
		}

		ts := time.Now()
		if okTS {
			if parsed, ok := parseFlexibleTime(field(row, tsIdx)); ok {
				ts = parsed
			}
		}

		msgs = append(msgs, Message{Sender: sender, Text: text, Timestamp: ts})
	}

	return msgs
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseFlexibleTime tries the known string layouts, then epoch seconds
// or milliseconds.
func parseFlexibleTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range csvTimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n), true
		}
		return time.Unix(n, 0), true
	}
	return time.Time{}, false
}
