package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aminmomin2/convocate/internal/config"
	"github.com/aminmomin2/convocate/internal/engine"
	"github.com/aminmomin2/convocate/internal/kvstore"
	"github.com/aminmomin2/convocate/internal/llm"
	"github.com/aminmomin2/convocate/internal/parser"
	"github.com/aminmomin2/convocate/internal/profile"
	"github.com/aminmomin2/convocate/internal/quota"
	"github.com/aminmomin2/convocate/internal/ticket"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

const profileArgs = `{"tone":"warm","formality":"casual","pacing":"quick",
"vocabulary":["yeah","totally"],"quirks":["double texts"],"examples":["omg yes!"],
"traits":{"openness":7,"expressiveness":8,"humor":9,"empathy":7,"directness":5,"enthusiasm":8},
"emotions":{"primary":"upbeat","secondary":["playful"],"triggers":{"positive":["plans"],"negative":["flaking"]}},
"preferences":{"topics":["food"],"avoids":["politics"],"engagement":["asks questions"]},
"communication_patterns":{"message_length":"short","punctuation_style":"light","capitalization":"lowercase","abbreviations":["lol"],"unique_expressions":["no cap"]}}`

// fakeModel answers structured extraction calls with a canned profile
// and free-text calls with reply then score, alternating per request.
func fakeModel(t *testing.T) *httptest.Server {
	t.Helper()
	var textCalls atomic.Int64
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		if bytes.Contains(body, []byte(`"functions"`)) {
			json.NewEncoder(w).Encode(completionWithFunctionCall(profileArgs))
			return
		}
		if textCalls.Add(1)%2 == 1 {
			json.NewEncoder(w).Encode(completionWithContent("hey!! how was it"))
			return
		}
		json.NewEncoder(w).Encode(completionWithContent(`{"score": 82, "tips": ["a", "b", "c"]}`))
	}))
}

func completionWithContent(content string) map[string]any {
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

func completionWithFunctionCall(arguments string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index": 0,
			"message": map[string]any{
				"role": "assistant",
				"function_call": map[string]any{
					"name":      "save_style_profile",
					"arguments": arguments,
				},
			},
			"finish_reason": "function_call",
		}},
	}
}

func newTestServer(t *testing.T, model *httptest.Server) *Server {
	t.Helper()
	logger := testLogger()
	client := llm.NewClientWithBaseURL("key", "model", model.URL+"/v1", 5*time.Second, logger)
	cfg := config.Config{
		Port:         0,
		MaxPersonas:  2,
		MaxMessages:  50,
		MaxFileBytes: 5 * 1024 * 1024,
		SampleCap:    200,
	}
	ledger := quota.NewLedger(kvstore.NewMemory(), cfg.MaxPersonas, cfg.MaxMessages)
	return NewServer(
		cfg,
		ledger,
		profile.NewExtractor(client, logger),
		engine.New(client, logger),
		ticket.NewCache(10*time.Minute),
		nil,
		logger,
	)
}

const whatsappChat = `[1/2/23, 10:30] Alice: Hello there
[1/2/23, 10:31] Bob: hey! how are you
[1/2/23, 10:45] Alice: doing great, you?
[1/2/23, 10:46] Bob: same same
[1/2/23, 11:00] Alice: lunch tomorrow?
[1/2/23, 11:02] Bob: yes! noon works
`

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	model := fakeModel(t)
	defer model.Close()
	srv := newTestServer(t, model)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestUploadCreatesTwoPersonas(t *testing.T) {
	model := fakeModel(t)
	defer model.Close()
	srv := newTestServer(t, model)

	body, contentType := multipartUpload(t, "chat.txt", whatsappChat)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SessionID == "" {
		t.Error("sessionId is empty")
	}
	if resp.TotalPersonasCreated != 2 || len(resp.Personas) != 2 {
		t.Fatalf("personas = %d (total %d), want 2", len(resp.Personas), resp.TotalPersonasCreated)
	}
	for _, p := range resp.Personas {
		if p.ID == "" {
			t.Error("persona id is empty")
		}
		if p.Name != "Alice" && p.Name != "Bob" {
			t.Errorf("unexpected persona name %q", p.Name)
		}
		if len(p.Transcript) == 0 {
			t.Error("persona transcript is empty")
		}
		if p.ChatHistory == nil || len(p.ChatHistory) != 0 {
			t.Errorf("chatHistory = %v, want empty slice", p.ChatHistory)
		}
		if p.StyleProfile.Tone != "warm" {
			t.Errorf("tone = %q, want warm", p.StyleProfile.Tone)
		}
		// Nested objects carry the extracted values, not defaults.
		if p.StyleProfile.Traits.Humor != 9 {
			t.Errorf("traits.humor = %d, want 9", p.StyleProfile.Traits.Humor)
		}
		if p.StyleProfile.Emotions.Primary != "upbeat" {
			t.Errorf("emotions.primary = %q, want upbeat", p.StyleProfile.Emotions.Primary)
		}
		if p.StyleProfile.CommunicationPatterns.PunctuationStyle != "light" {
			t.Errorf("punctuation_style = %q, want light",
				p.StyleProfile.CommunicationPatterns.PunctuationStyle)
		}
	}
	if resp.LimitInfo != nil {
		t.Errorf("limitInfo = %+v, want nil", resp.LimitInfo)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	model := fakeModel(t)
	defer model.Close()
	srv := newTestServer(t, model)

	body, contentType := multipartUpload(t, "chat.pdf", "not a chat")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported") {
		t.Errorf("body = %s, want unsupported-type message", rec.Body.String())
	}
}

func TestUploadRejectsEmptyForm(t *testing.T) {
	model := fakeModel(t)
	defer model.Close()
	srv := newTestServer(t, model)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadEnforcesPersonaCeiling(t *testing.T) {
	model := fakeModel(t)
	defer model.Close()
	srv := newTestServer(t, model)

	do := func() *httptest.ResponseRecorder {
		body, contentType := multipartUpload(t, "chat.txt", whatsappChat)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("X-Real-IP", "10.0.0.9")
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		return rec
	}

	if rec := do(); rec.Code != http.StatusOK {
		t.Fatalf("first upload status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second upload status = %d, want 429: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "persona limit") {
		t.Errorf("body = %s, want persona-limit message", rec.Body.String())
	}
}

func TestUploadPartialGrantReportsLimitInfo(t *testing.T) {
	model := fakeModel(t)
	defer model.Close()
	srv := newTestServer(t, model)

	// Burn one of the two slots so the next two-sender upload can only
	// be granted a single persona.
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	if granted, _, err := srv.ledger.ReservePersonas(ctx, "ip:10.0.0.7", 1); err != nil || granted != 1 {
		t.Fatalf("seed reservation: granted=%d err=%v", granted, err)
	}

	body, contentType := multipartUpload(t, "chat.txt", whatsappChat)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Forwarded-For", "10.0.0.7, 172.16.0.1")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalPersonasCreated != 1 {
		t.Fatalf("personas created = %d, want 1", resp.TotalPersonasCreated)
	}
	if resp.LimitInfo == nil || resp.LimitInfo.Skipped != 1 {
		t.Fatalf("limitInfo = %+v, want skipped=1", resp.LimitInfo)
	}
	// The most prolific sender wins the remaining slot.
	if resp.Personas[0].Name != "Alice" {
		t.Errorf("persona = %q, want Alice", resp.Personas[0].Name)
	}
}

func TestSpeakerMessagesExactSenderMatch(t *testing.T) {
	transcript := []parser.Message{
		{Sender: "Alice", Text: "from upper"},
		{Sender: "alice", Text: "from lower"},
		{Sender: "Alice", Text: "upper again"},
	}

	got := speakerMessages(transcript, "Alice", nil)
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	for _, m := range got {
		if m.Sender != "Alice" {
			t.Errorf("sampled message from distinct speaker %q: %q", m.Sender, m.Text)
		}
	}

	// The case-variant speaker keeps their own pool.
	got = speakerMessages(transcript, "alice", nil)
	if len(got) != 1 || got[0].Text != "from lower" {
		t.Errorf("got %v, want only the lower-case speaker's message", got)
	}

	// No transcript lines at all falls back to the raw bucket.
	raw := []parser.Message{{Sender: "Cara", Text: "solo"}}
	if got := speakerMessages(transcript, "Cara", raw); len(got) != 1 || got[0].Text != "solo" {
		t.Errorf("got %v, want the raw bucket fallback", got)
	}
}

func chatBody(t *testing.T, overrides map[string]any) *bytes.Reader {
	t.Helper()
	prof := profile.Default()
	body := map[string]any{
		"personaName":  "Alice",
		"transcript":   []map[string]any{},
		"chatHistory":  []map[string]any{},
		"userMessage":  "hey, how was your weekend?",
		"styleProfile": prof,
	}
	for k, v := range overrides {
		body[k] = v
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(raw)
}

func TestChatTurn(t *testing.T) {
	model := fakeModel(t)
	defer model.Close()
	srv := newTestServer(t, model)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", chatBody(t, nil))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TwinReply != "hey!! how was it" {
		t.Errorf("twinReply = %q", resp.TwinReply)
	}
	if resp.PersonaMessage != resp.TwinReply {
		t.Errorf("personaMessage = %q, want the reply", resp.PersonaMessage)
	}
	if resp.Score != 82 || len(resp.Tips) != 3 {
		t.Errorf("score = %d tips = %v, want 82 and 3 tips", resp.Score, resp.Tips)
	}
	if resp.ScoreID == "" {
		t.Fatal("scoreId is empty")
	}

	// The same turn is retrievable once through the score endpoint.
	pollReq := httptest.NewRequest(http.MethodGet, "/api/v1/score?id="+resp.ScoreID, nil)
	pollRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(pollRec, pollReq)
	if pollRec.Code != http.StatusOK {
		t.Fatalf("poll status = %d, want 200: %s", pollRec.Code, pollRec.Body.String())
	}
	var poll scoreResponse
	if err := json.Unmarshal(pollRec.Body.Bytes(), &poll); err != nil {
		t.Fatal(err)
	}
	if poll.Status != "complete" || poll.Score != 82 {
		t.Errorf("poll = %+v, want complete/82", poll)
	}

	// Second poll: consumed.
	againRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(againRec, httptest.NewRequest(http.MethodGet, "/api/v1/score?id="+resp.ScoreID, nil))
	if againRec.Code != http.StatusNotFound {
		t.Errorf("second poll status = %d, want 404", againRec.Code)
	}
}

func TestChatValidation(t *testing.T) {
	model := fakeModel(t)
	defer model.Close()
	srv := newTestServer(t, model)

	cases := []struct {
		name      string
		overrides map[string]any
	}{
		{"missing persona name", map[string]any{"personaName": ""}},
		{"missing user message", map[string]any{"userMessage": "  "}},
		{"missing profile", map[string]any{"styleProfile": nil}},
		{"missing transcript", map[string]any{"transcript": nil}},
		{"missing chat history", map[string]any{"chatHistory": nil}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", chatBody(t, tc.overrides))
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}

	t.Run("omitted transcript key", func(t *testing.T) {
		raw, err := json.Marshal(map[string]any{
			"personaName":  "Alice",
			"chatHistory":  []map[string]any{},
			"userMessage":  "hey",
			"styleProfile": profile.Default(),
		})
		if err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(raw))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestChatEnforcesMessageCeiling(t *testing.T) {
	model := fakeModel(t)
	defer model.Close()
	srv := newTestServer(t, model)
	// Low ceiling for the test client.
	srv.ledger = quota.NewLedger(kvstore.NewMemory(), 2, 1)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", chatBody(t, nil))
		req.Header.Set("X-Real-IP", "10.0.0.3")
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		return rec
	}

	if rec := do(); rec.Code != http.StatusOK {
		t.Fatalf("first turn status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second turn status = %d, want 429: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "message limit") {
		t.Errorf("body = %s, want message-limit error", rec.Body.String())
	}
}

func TestScoreMissingID(t *testing.T) {
	model := fakeModel(t)
	defer model.Close()
	srv := newTestServer(t, model)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/score", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/score?id=nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}
}

func TestScorePendingAndFailed(t *testing.T) {
	model := fakeModel(t)
	defer model.Close()
	srv := newTestServer(t, model)

	pending := srv.tickets.Create()
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/score?id="+pending, nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("pending status = %d, want 202", rec.Code)
	}
	// A pending read does not consume the ticket.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/score?id="+pending, nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("repeat pending status = %d, want 202", rec.Code)
	}

	failed := srv.tickets.Create()
	srv.tickets.Fail(failed)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/score?id="+failed, nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("failed status = %d, want 500", rec.Code)
	}
	var resp scoreResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "error" || resp.Score != 0 || len(resp.Tips) != 0 {
		t.Errorf("failed poll = %+v, want error/0/[]", resp)
	}
}

func TestUploadSurfacesUpstreamQuota(t *testing.T) {
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "You exceeded your current quota",
				"type":    "insufficient_quota",
			},
		})
	}))
	defer model.Close()
	srv := newTestServer(t, model)

	body, contentType := multipartUpload(t, "chat.txt", whatsappChat)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["errorType"] != "quota_exceeded" {
		t.Errorf("errorType = %q, want quota_exceeded", resp["errorType"])
	}
	if resp["redirectTo"] == "" {
		t.Error("redirectTo is empty")
	}
}
