package parser

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"
)

// smsBackup matches the "SMS Backup & Restore" export shape:
// <smses><sms address="..." body="..." date="epoch-ms" .../></smses>
type smsBackup struct {
	XMLName xml.Name   `xml:"smses"`
	SMS     []smsEntry `xml:"sms"`
}

type smsEntry struct {
	Address string `xml:"address,attr"`
	Body    string `xml:"body,attr"`
	Date    string `xml:"date,attr"`
}

// ParseSMSBackup parses an SMS backup XML export. Entries missing
// address or body are skipped; an unreadable date defaults to now.
func ParseSMSBackup(data []byte) []Message {
	var backup smsBackup
	if err := xml.Unmarshal(data, &backup); err != nil {
		return nil
	}

	var msgs []Message
	for _, sms := range backup.SMS {
		sender := strings.TrimSpace(sms.Address)
		text := strings.TrimSpace(sms.Body)
		if sender == "" || text == "" {
			continue
		}

		ts := time.Now()
		if ms, err := strconv.ParseInt(strings.TrimSpace(sms.Date), 10, 64); err == nil {
			ts = time.UnixMilli(ms)
		}

		msgs = append(msgs, Message{Sender: sender, Text: text, Timestamp: ts})
	}

	return msgs
}
