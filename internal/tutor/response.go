package tutor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the shape of an outbound response.
type Kind string

const (
	KindText     Kind = "text"
	KindTheory   Kind = "theory"
	KindPractice Kind = "practice"
	KindExample  Kind = "example"
)

// TimestampLayout is ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// TheoryData is the payload of a theory response.
type TheoryData struct {
	Explanation string   `json:"explanation"`
	KeyPoints   []string `json:"keyPoints"`
	Examples    []string `json:"examples"`
}

// PracticeData is the payload of a practice response.
type PracticeData struct {
	Problem    string   `json:"problem"`
	Difficulty string   `json:"difficulty"`
	Hints      []string `json:"hints"`
	Solution   string   `json:"solution"`
}

// ExampleData is the payload of an example response.
type ExampleData struct {
	Example     string `json:"example"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

// Content is a response body without identity: the part a provider or the
// fallback bank produces.
type Content struct {
	Text string `json:"text"`
	Kind Kind   `json:"type"`
	// Data is nil, *TheoryData, *PracticeData or *ExampleData according to Kind.
	Data any `json:"data"`
}

// Response is sent to the client as the ai_tutor_response event.
type Response struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Kind      Kind   `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// NewResponse stamps content with a fresh id and the given time.
func NewResponse(c Content, now time.Time) Response {
	return Response{
		ID:        uuid.NewString(),
		Text:      c.Text,
		Kind:      c.Kind,
		Data:      c.Data,
		Timestamp: FormatTimestamp(now),
	}
}

// Content strips the identity fields.
func (r Response) Content() Content {
	return Content{Text: r.Text, Kind: r.Kind, Data: r.Data}
}

// UnmarshalJSON decodes Data into the typed payload matching Kind.
func (r *Response) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID        string          `json:"id"`
		Text      string          `json:"text"`
		Kind      Kind            `json:"type"`
		Data      json.RawMessage `json:"data"`
		Timestamp string          `json:"timestamp"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := decodeData(raw.Kind, raw.Data)
	if err != nil {
		return err
	}
	*r = Response{ID: raw.ID, Text: raw.Text, Kind: raw.Kind, Data: data, Timestamp: raw.Timestamp}
	return nil
}

var (
	errUnknownKind    = errors.New("unknown response type")
	errMissingField   = errors.New("missing required field")
	errUnexpectedData = errors.New("text response must not carry data")
)

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func decodeData(kind Kind, raw json.RawMessage) (any, error) {
	switch kind {
	case KindText:
		if !isNull(raw) {
			return nil, errUnexpectedData
		}
		return nil, nil
	case KindTheory:
		var d TheoryData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode theory data: %w", err)
		}
		return &d, nil
	case KindPractice:
		var d PracticeData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode practice data: %w", err)
		}
		return &d, nil
	case KindExample:
		var d ExampleData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode example data: %w", err)
		}
		return &d, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownKind, kind)
	}
}

// Validate checks that Data matches Kind and required fields are present.
func (c Content) Validate() error {
	if c.Text == "" {
		return fmt.Errorf("%w: text", errMissingField)
	}
	switch c.Kind {
	case KindText:
		if c.Data != nil {
			return errUnexpectedData
		}
	case KindTheory:
		d, ok := c.Data.(*TheoryData)
		if !ok || d == nil {
			return fmt.Errorf("%w: data", errMissingField)
		}
		if d.Explanation == "" || d.KeyPoints == nil || d.Examples == nil {
			return fmt.Errorf("%w: theory requires explanation, keyPoints, examples", errMissingField)
		}
	case KindPractice:
		d, ok := c.Data.(*PracticeData)
		if !ok || d == nil {
			return fmt.Errorf("%w: data", errMissingField)
		}
		if d.Problem == "" || d.Difficulty == "" || d.Hints == nil || d.Solution == "" {
			return fmt.Errorf("%w: practice requires problem, difficulty, hints, solution", errMissingField)
		}
	case KindExample:
		d, ok := c.Data.(*ExampleData)
		if !ok || d == nil {
			return fmt.Errorf("%w: data", errMissingField)
		}
		if d.Example == "" || d.Code == "" || d.Explanation == "" {
			return fmt.Errorf("%w: example requires example, code, explanation", errMissingField)
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownKind, c.Kind)
	}
	return nil
}
