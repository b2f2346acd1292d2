package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/goalpath/internal/session"
	"github.com/ashureev/goalpath/internal/tutor"
)

type recordedEvent struct {
	Event   string
	Payload any
}

type recordingConn struct {
	id     string
	mu     sync.Mutex
	events []recordedEvent
	done   chan struct{}
}

func newRecordingConn(id string) *recordingConn {
	return &recordingConn{id: id, done: make(chan struct{})}
}

func (c *recordingConn) ID() string            { return c.id }
func (c *recordingConn) Done() <-chan struct{} { return c.done }

func (c *recordingConn) Emit(_ context.Context, event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, recordedEvent{Event: event, Payload: payload})
	return nil
}

func (c *recordingConn) Events() []recordedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]recordedEvent(nil), c.events...)
}

type fakeProvider struct {
	content tutor.Content
	err     error
	panics  bool
	calls   int
	mu      sync.Mutex
}

func (p *fakeProvider) Generate(_ context.Context, _ string) (tutor.Content, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.panics {
		panic("provider exploded")
	}
	return p.content, p.err
}

func failingProvider() *fakeProvider {
	return &fakeProvider{err: &tutor.ProviderError{Reason: tutor.ReasonRequest, Err: errors.New("network down")}}
}

func envelope(t *testing.T, event string, payload any) Envelope {
	t.Helper()
	env, err := NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	return env
}

func fastRouter(reg *session.Registry, p Provider) *Router {
	return NewRouter(reg, p, RouterConfig{HelpDelayMin: time.Millisecond, HelpDelayMax: 2 * time.Millisecond})
}

// assertTriple checks typing=true, one response, typing=false and returns the response.
func assertTriple(t *testing.T, events []recordedEvent) tutor.Response {
	t.Helper()
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d: %+v", len(events), events)
	}
	if events[0].Event != EventTyping || events[0].Payload != true {
		t.Errorf("Expected ai_typing=true first, got %+v", events[0])
	}
	if events[1].Event != EventTutorResponse {
		t.Fatalf("Expected ai_tutor_response second, got %+v", events[1])
	}
	if events[2].Event != EventTyping || events[2].Payload != false {
		t.Errorf("Expected ai_typing=false last, got %+v", events[2])
	}
	resp, ok := events[1].Payload.(tutor.Response)
	if !ok {
		t.Fatalf("Expected tutor.Response payload, got %T", events[1].Payload)
	}
	return resp
}

func TestRouter_ChatProviderFailureFallsBack(t *testing.T) {
	reg := session.NewRegistry()
	r := fastRouter(reg, failingProvider())
	conn := newRecordingConn("c1")

	r.Handle(context.Background(), conn, envelope(t, EventUserMessage, ChatMessage{
		Text:      "Can you explain recursion?",
		SessionID: "s1",
	}))

	resp := assertTriple(t, conn.Events())
	if resp.Kind != tutor.KindTheory {
		t.Errorf("Expected theory fallback, got %q", resp.Kind)
	}
	if _, ok := resp.Data.(*tutor.TheoryData); !ok {
		t.Errorf("Expected theory data, got %T", resp.Data)
	}
	if resp.ID == "" || resp.Timestamp == "" {
		t.Errorf("Expected id and timestamp, got %+v", resp)
	}

	s, ok := reg.Get("c1")
	if !ok || s.SessionID != "s1" {
		t.Errorf("Expected session row for s1, got %+v (ok=%v)", s, ok)
	}
}

func TestRouter_ChatProviderSuccess(t *testing.T) {
	p := &fakeProvider{content: tutor.Content{Text: "Sure", Kind: tutor.KindText}}
	r := fastRouter(session.NewRegistry(), p)
	conn := newRecordingConn("c1")

	r.Handle(context.Background(), conn, envelope(t, EventTutorMessage, ChatMessage{
		Text:      "hello",
		SessionID: "s1",
	}))

	resp := assertTriple(t, conn.Events())
	if resp.Text != "Sure" || resp.Kind != tutor.KindText {
		t.Errorf("Expected provider content, got %+v", resp)
	}
}

func TestRouter_ChatStoresGoalAndWeek(t *testing.T) {
	reg := session.NewRegistry()
	r := fastRouter(reg, failingProvider())
	conn := newRecordingConn("c1")
	goal, week := "g1", "Backend Basics"

	r.Handle(context.Background(), conn, envelope(t, EventUserMessage, ChatMessage{
		Text: "give me a problem", SessionID: "s1", GoalID: &goal, CurrentWeek: &week,
	}))
	// A later message without week keeps the stored one as context.
	r.Handle(context.Background(), conn, envelope(t, EventUserMessage, ChatMessage{
		Text: "another problem please", SessionID: "s1",
	}))

	s, _ := reg.Get("c1")
	if s.GoalID != "g1" || s.CurrentWeek != week {
		t.Errorf("Expected goal and week to persist, got %+v", s)
	}

	events := conn.Events()
	resp := events[len(events)-2].Payload.(tutor.Response)
	d, ok := resp.Data.(*tutor.PracticeData)
	if !ok || d.Difficulty != "intermediate" {
		t.Errorf("Expected Backend Basics practice fallback, got %+v", resp.Data)
	}
}

func TestRouter_HelpRequestSuccess(t *testing.T) {
	p := &fakeProvider{content: tutor.Content{
		Text: "...",
		Kind: tutor.KindPractice,
		Data: &tutor.PracticeData{Problem: "P", Difficulty: "beginner", Hints: []string{"h1"}, Solution: "S"},
	}}
	r := NewRouter(session.NewRegistry(), p, RouterConfig{})
	conn := newRecordingConn("c1")

	start := time.Now()
	r.Handle(context.Background(), conn, envelope(t, EventRequestHelp, HelpRequest{
		Topic: "Python Fundamentals", HelpType: "practice", SessionID: "s1",
	}))
	elapsed := time.Since(start)

	resp := assertTriple(t, conn.Events())
	if resp.Kind != tutor.KindPractice {
		t.Errorf("Expected practice kind, got %q", resp.Kind)
	}
	if d, ok := resp.Data.(*tutor.PracticeData); !ok || d.Problem != "P" {
		t.Errorf("Expected problem P, got %+v", resp.Data)
	}
	if elapsed < 500*time.Millisecond {
		t.Errorf("Expected at least 500ms delay, got %v", elapsed)
	}
}

func TestRouter_HelpKindMismatchFallsBack(t *testing.T) {
	p := &fakeProvider{content: tutor.Content{Text: "chatty", Kind: tutor.KindText}}
	r := fastRouter(session.NewRegistry(), p)
	conn := newRecordingConn("c1")

	r.Handle(context.Background(), conn, envelope(t, EventRequestHelp, HelpRequest{
		Topic: "Backend Basics", HelpType: "example", SessionID: "s1",
	}))

	resp := assertTriple(t, conn.Events())
	if resp.Kind != tutor.KindExample {
		t.Fatalf("Expected example fallback, got %q", resp.Kind)
	}
	if d := resp.Data.(*tutor.ExampleData); d.Explanation != "This example demonstrates basic API endpoint creation." {
		t.Errorf("Unexpected example data: %+v", d)
	}
}

func TestRouter_MalformedChatSendsApology(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  Envelope
	}{
		{"bad json", Envelope{Event: EventUserMessage, Data: json.RawMessage(`{"text":`)}},
		{"no data", Envelope{Event: EventUserMessage}},
		{"missing session", envelope(t, EventUserMessage, ChatMessage{Text: "hi"})},
		{"empty text", envelope(t, EventUserMessage, ChatMessage{Text: "  ", SessionID: "s1"})},
		{"unknown help type", envelope(t, EventRequestHelp, HelpRequest{Topic: "x", HelpType: "poem", SessionID: "s1"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &fakeProvider{}
			r := fastRouter(session.NewRegistry(), p)
			conn := newRecordingConn("c1")

			r.Handle(context.Background(), conn, tt.env)

			events := conn.Events()
			if len(events) != 2 {
				t.Fatalf("Expected apology and typing=false, got %+v", events)
			}
			resp := events[0].Payload.(tutor.Response)
			if resp.Text != tutor.Apology().Text || resp.Kind != tutor.KindText {
				t.Errorf("Expected apology, got %+v", resp)
			}
			if events[1].Event != EventTyping || events[1].Payload != false {
				t.Errorf("Expected typing=false, got %+v", events[1])
			}
			if p.calls != 0 {
				t.Errorf("Provider must not be called for malformed input")
			}
		})
	}
}

func TestRouter_PanicClearsTyping(t *testing.T) {
	r := fastRouter(session.NewRegistry(), &fakeProvider{panics: true})
	conn := newRecordingConn("c1")

	r.Handle(context.Background(), conn, envelope(t, EventUserMessage, ChatMessage{Text: "hi", SessionID: "s1"}))

	resp := assertTriple(t, conn.Events())
	if resp.Text != tutor.Apology().Text {
		t.Errorf("Expected apology after panic, got %q", resp.Text)
	}
}

func TestRouter_TypingEcho(t *testing.T) {
	reg := session.NewRegistry()
	r := fastRouter(reg, nil)
	conn := newRecordingConn("c1")

	r.Handle(context.Background(), conn, envelope(t, EventUserTyping, TypingSignal{IsTyping: true, SessionID: "s1"}))
	r.Handle(context.Background(), conn, envelope(t, EventUserTyping, TypingSignal{IsTyping: false, SessionID: "s1"}))

	events := conn.Events()
	if len(events) != 2 || events[0].Payload != true || events[1].Payload != false {
		t.Fatalf("Expected echoed typing true then false, got %+v", events)
	}
	if _, ok := reg.Get("c1"); !ok {
		t.Error("Expected typing signal to create the session row")
	}
}

func TestRouter_NilProviderUsesFallback(t *testing.T) {
	r := fastRouter(session.NewRegistry(), nil)
	conn := newRecordingConn("c1")

	r.Handle(context.Background(), conn, envelope(t, EventUserMessage, ChatMessage{Text: "show me an example", SessionID: "s1"}))

	resp := assertTriple(t, conn.Events())
	if resp.Kind != tutor.KindExample {
		t.Errorf("Expected example fallback, got %q", resp.Kind)
	}
}

func TestRouter_DisconnectRemovesSession(t *testing.T) {
	reg := session.NewRegistry()
	r := fastRouter(reg, failingProvider())
	c1, c2 := newRecordingConn("c1"), newRecordingConn("c2")

	r.Handle(context.Background(), c1, envelope(t, EventUserMessage, ChatMessage{Text: "hi", SessionID: "s1"}))
	r.Handle(context.Background(), c2, envelope(t, EventUserMessage, ChatMessage{Text: "hi", SessionID: "s2"}))
	before := reg.Count()

	close(c1.done)
	r.Disconnect(c1)

	if reg.Count() != before-1 {
		t.Errorf("Expected count %d, got %d", before-1, reg.Count())
	}
	if _, ok := reg.Get("c1"); ok {
		t.Error("Expected c1 session to be removed")
	}
}

func TestRouter_NoEmitsAfterClose(t *testing.T) {
	reg := session.NewRegistry()
	r := fastRouter(reg, failingProvider())
	conn := newRecordingConn("c1")
	close(conn.done)

	r.Handle(context.Background(), conn, envelope(t, EventUserMessage, ChatMessage{Text: "hi", SessionID: "s1"}))
	r.Handle(context.Background(), conn, envelope(t, EventRequestHelp, HelpRequest{Topic: "x", HelpType: "theory", SessionID: "s1"}))

	if events := conn.Events(); len(events) != 0 {
		t.Errorf("Expected no events on a closed connection, got %+v", events)
	}
	if reg.Count() != 0 {
		t.Errorf("Expected no session rows for a closed connection, got %d", reg.Count())
	}
}

func TestRouter_HelpAbortsWhenConnectionCloses(t *testing.T) {
	r := NewRouter(session.NewRegistry(), failingProvider(), RouterConfig{
		HelpDelayMin: time.Second, HelpDelayMax: time.Second,
	})
	conn := newRecordingConn("c1")

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(conn.done)
	}()

	start := time.Now()
	r.Handle(context.Background(), conn, envelope(t, EventRequestHelp, HelpRequest{Topic: "x", HelpType: "theory", SessionID: "s1"}))
	if time.Since(start) >= time.Second {
		t.Error("Expected help delay to stop when the connection closed")
	}

	events := conn.Events()
	if len(events) != 1 || events[0].Payload != true {
		t.Errorf("Expected only the initial typing event, got %+v", events)
	}
}
