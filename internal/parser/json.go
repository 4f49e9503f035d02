package parser

import (
	"encoding/json"
	"strings"
	"time"
)

type jsonRecord struct {
	Sender    string          `json:"sender"`
	Message   string          `json:"message"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// ParseJSON parses a top-level JSON array of {sender, message, timestamp}
// records. Non-array input yields an empty result rather than an error;
// records missing sender or message are skipped.
func ParseJSON(data []byte) []Message {
	var records []jsonRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}

	var msgs []Message
	for _, rec := range records {
		sender := strings.TrimSpace(rec.Sender)
		text := strings.TrimSpace(rec.Message)
		if sender == "" || text == "" {
			continue
		}

		msgs = append(msgs, Message{
			Sender:    sender,
			Text:      text,
			Timestamp: parseJSONTime(rec.Timestamp),
		})
	}

	return msgs
}

// parseJSONTime accepts either a string timestamp or a numeric epoch
// value (seconds or milliseconds). Anything else defaults to now.
func parseJSONTime(raw json.RawMessage) time.Time {
	if raw == nil {
		return time.Now()
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if ts, ok := parseFlexibleTime(s); ok {
			return ts
		}
		return time.Now()
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n > 1e12 {
			return time.UnixMilli(int64(n))
		}
		return time.Unix(int64(n), 0)
	}

	return time.Now()
}
