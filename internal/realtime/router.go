package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ashureev/goalpath/internal/domain"
	"github.com/ashureev/goalpath/internal/session"
	"github.com/ashureev/goalpath/internal/tutor"
)

// Default bounds of the artificial delay before answering a help request.
const (
	DefaultHelpDelayMin = 500 * time.Millisecond
	DefaultHelpDelayMax = 1500 * time.Millisecond
)

var (
	errMissingSessionID = errors.New("missing sessionId")
	errEmptyMessage     = errors.New("empty message text")
	errUnknownHelpType  = errors.New("unknown helpType")
	errConnClosed       = errors.New("connection closed")
)

// Conn is the router's view of one client connection.
type Conn interface {
	ID() string
	Emit(ctx context.Context, event string, payload any) error
	// Done is closed once the connection is gone.
	Done() <-chan struct{}
}

// Provider produces structured tutor content for a prompt.
// *tutor.Adapter is the production implementation.
type Provider interface {
	Generate(ctx context.Context, prompt string) (tutor.Content, error)
}

// RouterConfig tunes a Router. Zero values pick defaults.
type RouterConfig struct {
	HelpDelayMin time.Duration
	HelpDelayMax time.Duration
	Classifier   tutor.Classifier
	Logger       *slog.Logger
	Now          func() time.Time
}

// Router dispatches inbound events for every connection.
type Router struct {
	registry   *session.Registry
	provider   Provider
	classifier tutor.Classifier
	delayMin   time.Duration
	delayMax   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewRouter creates a router backed by registry and provider.
func NewRouter(registry *session.Registry, provider Provider, cfg RouterConfig) *Router {
	r := &Router{
		registry:   registry,
		provider:   provider,
		classifier: cfg.Classifier,
		delayMin:   cfg.HelpDelayMin,
		delayMax:   cfg.HelpDelayMax,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if r.classifier == nil {
		r.classifier = tutor.KeywordClassifier{}
	}
	if r.delayMin <= 0 {
		r.delayMin = DefaultHelpDelayMin
	}
	if r.delayMax < r.delayMin {
		r.delayMax = max(DefaultHelpDelayMax, r.delayMin)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Registry returns the session registry the router writes to.
func (r *Router) Registry() *session.Registry {
	return r.registry
}

// Handle processes one inbound event. It blocks until the event is fully
// answered; callers run it on its own goroutine.
func (r *Router) Handle(ctx context.Context, conn Conn, env Envelope) {
	switch env.Event {
	case EventUserMessage, EventTutorMessage:
		r.exchange(ctx, conn, env, r.handleChat)
	case EventRequestHelp:
		r.exchange(ctx, conn, env, r.handleHelp)
	case EventUserTyping:
		r.handleTyping(ctx, conn, env.Data)
	case EventPing:
		r.emit(ctx, conn, EventPong, nil)
	default:
		r.logger.Debug("Ignoring unknown tutor event", "event", env.Event, "conn_id", conn.ID())
	}
}

// Reject answers a frame that could not be decoded at all.
func (r *Router) Reject(ctx context.Context, conn Conn, err error) {
	x := &exchange{r: r, conn: conn, event: "malformed"}
	x.fail(ctx, err)
}

// Disconnect drops the session row for conn. Call exactly once per connection.
func (r *Router) Disconnect(conn Conn) {
	if r.registry.Remove(conn.ID()) {
		r.logger.Info("Tutor session ended", "conn_id", conn.ID(), "sessions", r.registry.Count())
	}
}

// exchange tracks the typing/response triple of one chat or help event.
type exchange struct {
	r         *Router
	conn      Conn
	event     string
	typingOn  bool
	responded bool
	typingOff bool
}

func (x *exchange) startTyping(ctx context.Context) {
	if x.typingOn {
		return
	}
	x.typingOn = true
	x.r.emit(ctx, x.conn, EventTyping, true)
}

func (x *exchange) respond(ctx context.Context, c tutor.Content) {
	if x.responded {
		return
	}
	x.responded = true
	x.r.emit(ctx, x.conn, EventTutorResponse, tutor.NewResponse(c, x.r.now()))
}

func (x *exchange) stopTyping(ctx context.Context) {
	if x.typingOff {
		return
	}
	x.typingOff = true
	x.r.emit(ctx, x.conn, EventTyping, false)
}

// fail answers with the apology unless a response already went out, and
// always clears typing.
func (x *exchange) fail(ctx context.Context, err error) {
	if isClosed(x.conn) {
		x.r.logger.Debug("Tutor event abandoned, connection closed", "event", x.event, "conn_id", x.conn.ID())
		return
	}
	x.r.logger.Warn("Tutor event failed", "event", x.event, "conn_id", x.conn.ID(), "error", err)
	x.respond(ctx, tutor.Apology())
	x.stopTyping(ctx)
}

func (r *Router) exchange(ctx context.Context, conn Conn, env Envelope, fn func(context.Context, *exchange, json.RawMessage) error) {
	x := &exchange{r: r, conn: conn, event: env.Event}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Tutor event handler panicked",
				"event", env.Event,
				"conn_id", conn.ID(),
				"panic", p,
				"stack", string(debug.Stack()))
			x.fail(ctx, fmt.Errorf("panic: %v", p))
		}
	}()

	if err := fn(ctx, x, env.Data); err != nil {
		x.fail(ctx, err)
	}
}

func (r *Router) handleChat(ctx context.Context, x *exchange, data json.RawMessage) error {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode chat message: %w", err)
	}
	if msg.SessionID == "" {
		return errMissingSessionID
	}
	if strings.TrimSpace(msg.Text) == "" {
		return errEmptyMessage
	}

	s, err := r.touch(x.conn, session.Fields{
		SessionID:    session.String(msg.SessionID),
		GoalID:       msg.GoalID,
		CurrentWeek:  msg.CurrentWeek,
		LastActivity: session.Time(r.now()),
	})
	if err != nil {
		return err
	}

	x.startTyping(ctx)

	intent := r.classifier.Classify(msg.Text)
	topic := s.CurrentWeek
	r.logger.Info("Tutor message received",
		"conn_id", x.conn.ID(),
		"session_id", msg.SessionID,
		"goal_id", s.GoalID,
		"intent", intent)

	content, err := r.generate(ctx, tutor.BuildPrompt(intent, topic, msg.Text))
	if err != nil {
		r.logger.Warn("Provider failed, using fallback content",
			"conn_id", x.conn.ID(),
			"session_id", msg.SessionID,
			"intent", intent,
			"error", err)
		content = tutor.ChatFallback(topic, intent, msg.Text)
	}

	x.respond(ctx, content)
	x.stopTyping(ctx)
	return nil
}

func (r *Router) handleHelp(ctx context.Context, x *exchange, data json.RawMessage) error {
	var req HelpRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode help request: %w", err)
	}
	if req.SessionID == "" {
		return errMissingSessionID
	}
	intent := tutor.ParseIntent(req.HelpType)
	if intent == tutor.IntentQuestion {
		return fmt.Errorf("%w: %q", errUnknownHelpType, req.HelpType)
	}

	if _, err := r.touch(x.conn, session.Fields{
		SessionID:    session.String(req.SessionID),
		LastActivity: session.Time(r.now()),
	}); err != nil {
		return err
	}

	x.startTyping(ctx)

	if err := r.pause(ctx, x.conn); err != nil {
		return err
	}

	r.logger.Info("Tutor help requested",
		"conn_id", x.conn.ID(),
		"session_id", req.SessionID,
		"topic", req.Topic,
		"help_type", intent)

	content, err := r.generate(ctx, tutor.BuildHelpPrompt(intent, req.Topic))
	if err == nil && content.Kind != intent.Kind() {
		err = &tutor.ProviderError{
			Reason: tutor.ReasonInvalid,
			Err:    fmt.Errorf("expected %s response, got %s", intent.Kind(), content.Kind),
		}
	}
	if err != nil {
		r.logger.Warn("Provider failed, using fallback content",
			"conn_id", x.conn.ID(),
			"session_id", req.SessionID,
			"help_type", intent,
			"error", err)
		content = tutor.Lookup(req.Topic, intent)
	}

	x.respond(ctx, content)
	x.stopTyping(ctx)
	return nil
}

func (r *Router) handleTyping(ctx context.Context, conn Conn, data json.RawMessage) {
	var sig TypingSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		r.logger.Debug("Dropping malformed typing signal", "conn_id", conn.ID(), "error", err)
		return
	}
	if sig.SessionID != "" {
		if _, err := r.touch(conn, session.Fields{
			SessionID:    session.String(sig.SessionID),
			LastActivity: session.Time(r.now()),
		}); err != nil {
			return
		}
	}
	r.emit(ctx, conn, EventTyping, sig.IsTyping)
}

// touch upserts the session row for conn. A row written after the
// connection closed is removed again, since Disconnect may already have run.
func (r *Router) touch(conn Conn, f session.Fields) (domain.TutorSession, error) {
	if isClosed(conn) {
		return domain.TutorSession{}, errConnClosed
	}
	s := r.registry.Upsert(conn.ID(), f)
	if isClosed(conn) {
		r.registry.Remove(conn.ID())
		return domain.TutorSession{}, errConnClosed
	}
	return s, nil
}

// generate calls the provider on a context that outlives the connection;
// only the provider's own timeout bounds it.
func (r *Router) generate(ctx context.Context, prompt string) (tutor.Content, error) {
	if r.provider == nil {
		return tutor.Content{}, &tutor.ProviderError{Reason: tutor.ReasonUnavailable, Err: tutor.ErrProviderUnavailable}
	}
	return r.provider.Generate(context.WithoutCancel(ctx), prompt)
}

// pause waits a random duration in [delayMin, delayMax].
func (r *Router) pause(ctx context.Context, conn Conn) error {
	d := r.delayMin
	if span := r.delayMax - r.delayMin; span > 0 {
		d += time.Duration(rand.Int64N(int64(span) + 1))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-conn.Done():
		return errConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) emit(ctx context.Context, conn Conn, event string, payload any) {
	if isClosed(conn) {
		return
	}
	if err := conn.Emit(ctx, event, payload); err != nil {
		r.logger.Debug("Failed to emit tutor event", "event", event, "conn_id", conn.ID(), "error", err)
	}
}

func isClosed(conn Conn) bool {
	select {
	case <-conn.Done():
		return true
	default:
		return false
	}
}
