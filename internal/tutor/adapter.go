package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Generator returns the raw text a remote model produced for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// FailureReason classifies a ProviderError.
type FailureReason string

const (
	ReasonUnavailable FailureReason = "unavailable"
	ReasonRequest     FailureReason = "request"
	ReasonParse       FailureReason = "parse"
	ReasonInvalid     FailureReason = "invalid"
)

// ErrProviderUnavailable is wrapped when no generator is configured.
var ErrProviderUnavailable = errors.New("generation provider not configured")

// ProviderError is the only error an Adapter returns.
type ProviderError struct {
	Reason FailureReason
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Reason, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// DefaultProviderTimeout bounds a single provider call.
const DefaultProviderTimeout = 30 * time.Second

// Adapter turns a Generator into validated structured content.
type Adapter struct {
	gen     Generator
	timeout time.Duration
}

// NewAdapter wraps gen. A nil gen yields an adapter that always fails with
// ReasonUnavailable. A non-positive timeout uses DefaultProviderTimeout.
func NewAdapter(gen Generator, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &Adapter{gen: gen, timeout: timeout}
}

// Available reports whether a generator is configured.
func (a *Adapter) Available() bool {
	return a != nil && a.gen != nil
}

// Generate sends prompt to the provider and decodes its reply. It does not retry.
func (a *Adapter) Generate(ctx context.Context, prompt string) (Content, error) {
	if !a.Available() {
		return Content{}, &ProviderError{Reason: ReasonUnavailable, Err: ErrProviderUnavailable}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return Content{}, &ProviderError{Reason: ReasonRequest, Err: err}
	}
	return ParseContent(raw)
}

// StripFences removes a surrounding ```json / ``` markdown fence, if any.
// The info string may sit on its own line or run straight into the body.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
	})
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseContent decodes provider text into Content and validates it.
func ParseContent(raw string) (Content, error) {
	body := StripFences(raw)
	if body == "" {
		return Content{}, &ProviderError{Reason: ReasonParse, Err: errors.New("empty response")}
	}

	var envelope struct {
		Text string          `json:"text"`
		Kind Kind            `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return Content{}, &ProviderError{Reason: ReasonParse, Err: err}
	}

	data, err := decodeData(envelope.Kind, envelope.Data)
	if err != nil {
		return Content{}, &ProviderError{Reason: ReasonInvalid, Err: err}
	}

	c := Content{Text: envelope.Text, Kind: envelope.Kind, Data: data}
	if err := c.Validate(); err != nil {
		return Content{}, &ProviderError{Reason: ReasonInvalid, Err: err}
	}
	return c, nil
}
