package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aminmomin2/convocate/internal/llm"
	"github.com/aminmomin2/convocate/internal/parser"
	"github.com/aminmomin2/convocate/internal/profile"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	}
}

// twoCallModel answers the first call (reply) and second call (score)
// differently, like the real turn flow.
func twoCallModel(t *testing.T, reply string, scoreHandler func(w http.ResponseWriter)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			json.NewEncoder(w).Encode(completion(reply))
			return
		}
		scoreHandler(w)
	}))
	return server, &calls
}

func engineFor(server *httptest.Server) *Engine {
	client := llm.NewClientWithBaseURL("key", "model", server.URL+"/v1", 5*time.Second, testLogger())
	return New(client, testLogger())
}

func turnRequest() TurnRequest {
	base := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)
	return TurnRequest{
		PersonaName: "Alice",
		Transcript: []parser.Message{
			{Sender: "Alice", Text: "hey!", Timestamp: base},
			{Sender: "Bob", Text: "hi", Timestamp: base.Add(time.Minute)},
		},
		ChatHistory: []parser.Message{
			{Sender: "You", Text: "how was your day", Timestamp: base.Add(time.Hour)},
			{Sender: "Alice", Text: "pretty good!", Timestamp: base.Add(time.Hour + time.Minute)},
		},
		UserMessage: "want to hang this weekend?",
		Profile:     profile.Default(),
	}
}

func TestRun_ReplyAndScore(t *testing.T) {
	server, calls := twoCallModel(t, "yes! saturday?", func(w http.ResponseWriter) {
		json.NewEncoder(w).Encode(completion(`{"score": 85, "tips": ["shorter", "more emoji", "ask back"]}`))
	})
	defer server.Close()

	res, err := engineFor(server).Run(context.Background(), turnRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reply != "yes! saturday?" {
		t.Errorf("reply = %q", res.Reply)
	}
	if res.Score != 85 {
		t.Errorf("score = %d, want 85", res.Score)
	}
	if len(res.Tips) != 3 {
		t.Errorf("tips = %v, want 3", res.Tips)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 model calls, got %d", calls.Load())
	}
}

func TestRun_ScoringFailureKeepsReply(t *testing.T) {
	server, _ := twoCallModel(t, "the reply", func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer server.Close()

	res, err := engineFor(server).Run(context.Background(), turnRequest())
	if err != nil {
		t.Fatalf("scoring failure must not fail the turn: %v", err)
	}
	if res.Reply != "the reply" {
		t.Errorf("reply = %q", res.Reply)
	}
	if res.Score != 0 || len(res.Tips) != 0 {
		t.Errorf("expected sentinel score/tips, got %d %v", res.Score, res.Tips)
	}
}

func TestRun_MalformedScoreKeepsReply(t *testing.T) {
	server, _ := twoCallModel(t, "the reply", func(w http.ResponseWriter) {
		json.NewEncoder(w).Encode(completion("I would rate this about an 8 out of 10"))
	})
	defer server.Close()

	res, err := engineFor(server).Run(context.Background(), turnRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Score != 0 || len(res.Tips) != 0 {
		t.Errorf("expected sentinel for malformed score, got %d %v", res.Score, res.Tips)
	}
}

func TestRun_ReplyFailureFailsTurn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := engineFor(server).Run(context.Background(), turnRequest())
	if err == nil {
		t.Fatal("expected error when the reply call fails")
	}
}

func TestRun_HistoryRolesMapped(t *testing.T) {
	var gotMessages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			var req struct {
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			gotMessages = req.Messages
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion(`{"score":1,"tips":["a","b","c"]}`))
	}))
	defer server.Close()

	if _, err := engineFor(server).Run(context.Background(), turnRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// system + 2 history turns + new user message
	if len(gotMessages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(gotMessages))
	}
	if gotMessages[0].Role != "system" || !strings.Contains(gotMessages[0].Content, "Alice") {
		t.Errorf("system prompt missing persona frame: %+v", gotMessages[0])
	}
	if gotMessages[1].Role != "user" {
		t.Errorf("history user turn role = %q", gotMessages[1].Role)
	}
	if gotMessages[2].Role != "assistant" {
		t.Errorf("history persona turn role = %q", gotMessages[2].Role)
	}
	if gotMessages[3].Content != "want to hang this weekend?" {
		t.Errorf("new user message = %q", gotMessages[3].Content)
	}
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		name      string
		in        string
		wantOK    bool
		wantScore int
		wantTips  int
	}{
		{"strict json", `{"score": 72, "tips": ["a", "b", "c"]}`, true, 72, 3},
		{"fenced", "```json\n{\"score\": 40, \"tips\": []}\n```", true, 40, 0},
		{"embedded in prose", `Sure! {"score": 55, "tips": ["x","y","z"]} Hope that helps.`, true, 55, 3},
		{"clamped high", `{"score": 250, "tips": []}`, true, 100, 0},
		{"clamped low", `{"score": -3, "tips": []}`, true, 0, 0},
		{"extra tips truncated", `{"score": 10, "tips": ["a","b","c","d","e"]}`, true, 10, 3},
		{"score wrong type", `{"score": "great", "tips": []}`, false, 0, 0},
		{"tips wrong type", `{"score": 10, "tips": "be better"}`, false, 0, 0},
		{"missing score", `{"tips": ["a"]}`, false, 0, 0},
		{"no json at all", `I'd give it a solid seven.`, false, 0, 0},
		{"empty", ``, false, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, tips, ok := parseScore(tc.in)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if score != tc.wantScore {
				t.Errorf("score = %d, want %d", score, tc.wantScore)
			}
			if len(tips) != tc.wantTips {
				t.Errorf("tips = %v, want %d entries", tips, tc.wantTips)
			}
		})
	}
}
