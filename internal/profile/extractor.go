package profile

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aminmomin2/convocate/internal/llm"
	"github.com/aminmomin2/convocate/internal/parser"
)

const extractionMaxTokens = 2048

type Extractor struct {
	llm    *llm.Client
	logger *slog.Logger
}

func NewExtractor(client *llm.Client, logger *slog.Logger) *Extractor {
	return &Extractor{llm: client, logger: logger}
}

// Extract profiles a speaker from sampled messages. It always returns a
// usable, schema-complete profile: model failures and malformed payloads
// fall back to the fixed default. The returned error is non-nil only for
// upstream quota exhaustion, which callers surface as a distinct
// condition instead of silently defaulting.
func (e *Extractor) Extract(ctx context.Context, speaker string, samples []parser.Message) (StyleProfile, error) {
	e.logger.Info("extracting style profile",
		"speaker", speaker,
		"sample_count", len(samples),
	)

	raw, err := e.llm.CompleteStructured(ctx,
		extractionSystemPrompt,
		[]llm.Message{{Role: llm.RoleUser, Content: extractionUserPrompt(speaker, samples)}},
		profileFunction(),
		extractionMaxTokens,
	)
	if err != nil {
		if llm.IsQuotaError(err) {
			return Default(), err
		}
		e.logger.Warn("profile extraction call failed, using defaults",
			"speaker", speaker,
			"error", err,
		)
		return Default(), nil
	}

	prof, ok := parseProfile(raw)
	if !ok {
		e.logger.Warn("profile payload unusable after repair, using defaults",
			"speaker", speaker,
			"payload_len", len(raw),
		)
		return Default(), nil
	}

	e.logger.Info("style profile extracted",
		"speaker", speaker,
		"tone", prof.Tone,
		"formality", prof.Formality,
	)
	return prof, nil
}

// parseProfile repairs, merges and validates a raw model payload. A
// validation failure discards the whole payload: the result is either a
// fully valid merged profile or nothing.
func parseProfile(raw string) (StyleProfile, bool) {
	repaired, ok := repairJSON(raw)
	if !ok {
		return StyleProfile{}, false
	}

	// Unmarshal over a copy of the defaults: fields the model omitted
	// keep their defaulted values, nested objects merge field-wise.
	prof := Default()
	if err := json.Unmarshal([]byte(repaired), &prof); err != nil {
		return StyleProfile{}, false
	}

	if !validate(prof) {
		return StyleProfile{}, false
	}

	normalize(&prof)
	return prof, true
}

func validate(p StyleProfile) bool {
	if p.Tone == "" {
		return false
	}
	switch p.Formality {
	case FormalityFormal, FormalityCasual, FormalityMixed:
	default:
		return false
	}
	return true
}
