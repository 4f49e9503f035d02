package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aminmomin2/convocate/internal/aggregate"
	"github.com/aminmomin2/convocate/internal/events"
	"github.com/aminmomin2/convocate/internal/parser"
	"github.com/aminmomin2/convocate/internal/profile"
	"github.com/aminmomin2/convocate/internal/quota"
	"github.com/aminmomin2/convocate/internal/sampler"
	"github.com/aminmomin2/convocate/internal/thread"
)

const maxPersonasPerUpload = 2

// Persona is the wire shape returned to the client. The service is
// stateless between requests, so the transcript and profile travel back
// to the client and return with every chat call.
type Persona struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Transcript   []parser.Message     `json:"transcript"`
	ChatHistory  []parser.Message     `json:"chatHistory"`
	StyleProfile profile.StyleProfile `json:"styleProfile"`
}

type limitInfo struct {
	Skipped int    `json:"skipped"`
	Message string `json:"message"`
}

type uploadResponse struct {
	SessionID            string     `json:"sessionId"`
	Personas             []Persona  `json:"personas"`
	TotalPersonasCreated int        `json:"totalPersonasCreated"`
	LimitInfo            *limitInfo `json:"limitInfo,omitempty"`
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := quota.ClientID(w, r)

	// Pre-flight gate: refuse before any parsing or model spend.
	if err := s.ledger.CheckPersonas(ctx, clientID); err != nil {
		if errors.Is(err, quota.ErrPersonaLimit) {
			rec, _ := s.ledger.Usage(ctx, clientID)
			respondError(w, http.StatusTooManyRequests, fmt.Sprintf(
				"persona limit reached: %d of %d personas used", rec.PersonaCount, s.ledger.MaxPersonas()))
			return
		}
		s.logger.Error("quota pre-flight failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := r.ParseMultipartForm(s.cfg.MaxFileBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	var parsed [][]parser.Message
	for _, fh := range files {
		if fh.Size > s.cfg.MaxFileBytes {
			respondError(w, http.StatusBadRequest, fmt.Sprintf(
				"file %q exceeds the %dMB size limit", fh.Filename, s.cfg.MaxFileBytes/(1024*1024)))
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("could not read file %q", fh.Filename))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("could not read file %q", fh.Filename))
			return
		}
		msgs, err := parser.ParseWithLimit(data, fh.Filename, s.cfg.MaxFileBytes)
		if err != nil {
			switch {
			case errors.Is(err, parser.ErrUnsupportedFormat):
				respondError(w, http.StatusBadRequest, fmt.Sprintf(
					"unsupported file type %q: use .txt, .csv, .json or .xml", filepath.Ext(fh.Filename)))
			case errors.Is(err, parser.ErrFileTooLarge):
				respondError(w, http.StatusBadRequest, fmt.Sprintf(
					"file %q exceeds the %dMB size limit", fh.Filename, s.cfg.MaxFileBytes/(1024*1024)))
			default:
				respondError(w, http.StatusBadRequest, fmt.Sprintf(
					"could not parse %q: %v", fh.Filename, err))
			}
			return
		}
		parsed = append(parsed, msgs)
	}

	merged, err := aggregate.Merge(parsed)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	buckets := aggregate.Group(merged)
	top := aggregate.SelectTop(buckets, maxPersonasPerUpload)

	granted, rec, err := s.ledger.ReservePersonas(ctx, clientID, len(top))
	if err != nil {
		s.logger.Error("persona reservation failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if granted == 0 {
		respondError(w, http.StatusTooManyRequests, fmt.Sprintf(
			"persona limit reached: %d of %d personas used", rec.PersonaCount, s.ledger.MaxPersonas()))
		return
	}
	skipped := len(top) - granted
	top = top[:granted]

	// Reduce the merged stream to the chosen participants and rebuild
	// genuine back-and-forth threads. When the exchange never meets the
	// thread criteria, fall back to the raw two-party stream rather than
	// shipping an empty transcript.
	filtered := aggregate.FilterSenders(merged, top)
	transcript := thread.Reconstruct(filtered)
	if len(transcript) == 0 {
		transcript = filtered
	}

	sessionID := uuid.NewString()
	personas := make([]Persona, 0, len(top))
	for _, b := range top {
		samples := sampler.Sample(speakerMessages(transcript, b.Sender, b.Messages), s.cfg.SampleCap)
		prof, err := s.extractor.Extract(ctx, b.Sender, samples)
		if err != nil {
			// Extract only fails outward on upstream quota exhaustion.
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error":      "the style analysis service is temporarily unavailable",
				"errorType":  "quota_exceeded",
				"redirectTo": "/quota-exceeded",
			})
			return
		}
		p := Persona{
			ID:           uuid.NewString(),
			Name:         b.Sender,
			Transcript:   transcript,
			ChatHistory:  []parser.Message{},
			StyleProfile: prof,
		}
		personas = append(personas, p)
		s.publish(events.SubjectPersonaCreated, events.PersonaCreated{
			SessionID:      sessionID,
			PersonaID:      p.ID,
			TranscriptSize: len(transcript),
			Formality:      prof.Formality,
			Timestamp:      events.Now(),
		})
	}

	resp := uploadResponse{
		SessionID:            sessionID,
		Personas:             personas,
		TotalPersonasCreated: len(personas),
	}
	if skipped > 0 {
		resp.LimitInfo = &limitInfo{
			Skipped: skipped,
			Message: fmt.Sprintf("%d sender(s) skipped: persona limit is %d", skipped, s.ledger.MaxPersonas()),
		}
	}

	s.publish(events.SubjectUploadCompleted, events.UploadCompleted{
		SessionID:       sessionID,
		PersonasCreated: len(personas),
		PersonasSkipped: skipped,
		MessageCount:    len(merged),
		Timestamp:       events.Now(),
	})

	s.logger.Info("upload complete",
		"session_id", sessionID,
		"personas", len(personas),
		"skipped", skipped,
		"messages", len(merged))
	respondJSON(w, http.StatusOK, resp)
}

// speakerMessages pulls one sender's lines out of the reconstructed
// transcript, falling back to their raw bucket if reconstruction
// dropped every one of their threads. Sender identity is exact:
// "Alice" and "alice" are distinct speakers throughout the pipeline.
func speakerMessages(transcript []parser.Message, sender string, raw []parser.Message) []parser.Message {
	var out []parser.Message
	for _, m := range transcript {
		if m.Sender == sender {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return raw
	}
	return out
}

func (s *Server) publish(subject string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, data); err != nil {
		s.logger.Warn("event publish failed", "subject", subject, "error", err)
	}
}
