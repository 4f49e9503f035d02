// Package engine runs one practice-chat turn: an in-character reply call
// followed by an independent scoring call. Only the reply call can fail
// the turn; scoring always degrades to a sentinel instead.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aminmomin2/convocate/internal/llm"
	"github.com/aminmomin2/convocate/internal/parser"
	"github.com/aminmomin2/convocate/internal/profile"
)

const (
	replyMaxTokens = 512
	scoreMaxTokens = 512
)

type Engine struct {
	llm    *llm.Client
	logger *slog.Logger
}

func New(client *llm.Client, logger *slog.Logger) *Engine {
	return &Engine{llm: client, logger: logger}
}

// TurnRequest carries everything one practice turn needs. ChatHistory is
// the committed turns so far; the engine never mutates it.
type TurnRequest struct {
	PersonaName string
	Transcript  []parser.Message
	ChatHistory []parser.Message
	UserMessage string
	Profile     profile.StyleProfile
}

// TurnResult is a completed turn. Score and Tips hold the sentinel
// (0, empty) when scoring degraded.
type TurnResult struct {
	Reply string
	Score int
	Tips  []string
}

// Run executes the turn state machine. The returned error is non-nil
// only when the reply call itself failed; there is no safe synthetic
// substitute for the persona's message.
func (e *Engine) Run(ctx context.Context, req TurnRequest) (TurnResult, error) {
	reply, err := e.llm.Complete(ctx,
		replySystemPrompt(req.PersonaName, req.Profile, req.Transcript),
		historyMessages(req),
		replyMaxTokens,
	)
	if err != nil {
		return TurnResult{}, fmt.Errorf("persona reply: %w", err)
	}

	result := TurnResult{Reply: reply, Score: 0, Tips: []string{}}

	raw, err := e.llm.Complete(ctx,
		scoreSystemPrompt(req.PersonaName, req.Profile),
		[]llm.Message{{Role: llm.RoleUser, Content: scoreUserPrompt(req.UserMessage, reply)}},
		scoreMaxTokens,
	)
	if err != nil {
		e.logger.Warn("scoring call failed, using sentinel",
			"persona", req.PersonaName,
			"error", err,
		)
		return result, nil
	}

	if score, tips, ok := parseScore(raw); ok {
		result.Score = score
		result.Tips = tips
	} else {
		e.logger.Warn("score payload unusable, using sentinel",
			"persona", req.PersonaName,
			"payload_len", len(raw),
		)
	}

	return result, nil
}

// historyMessages maps the practice history onto chat roles: the persona
// speaks as assistant, everyone else as user, with the new user message
// last.
func historyMessages(req TurnRequest) []llm.Message {
	msgs := make([]llm.Message, 0, len(req.ChatHistory)+1)
	for _, m := range req.ChatHistory {
		role := llm.RoleUser
		if m.Sender == req.PersonaName {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Text})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: req.UserMessage})
	return msgs
}
