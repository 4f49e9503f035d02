package parser

import "time"

// Message is a single chat message, shared across all format parsers.
// Sender and Text are kept verbatim from the source file; Timestamp is
// best-effort and defaults to the parse time when the source value is
// missing or unreadable.
type Message struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
