package output

import (
	"encoding/json"
	"io"
	"os"
)

// Response is the success envelope for JSON output.
type Response struct {
	OK      bool   `json:"ok"`
	Data    any    `json:"data,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// ErrorResponse is the error envelope for JSON output.
type ErrorResponse struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error"`
	Code       string `json:"code"`
	Hint       string `json:"hint,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// Format specifies the output format.
type Format int

const (
	FormatJSON  Format = iota // Full envelope
	FormatQuiet               // Data only, no envelope
)

// Options controls output behavior.
type Options struct {
	Format Format
	Writer io.Writer
}

// Writer handles all output formatting.
type Writer struct {
	opts Options
}

// New creates a new output writer.
func New(opts Options) *Writer {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	return &Writer{opts: opts}
}

// ResponseOption customizes a success response.
type ResponseOption func(*Response)

// WithSummary attaches a one-line human summary to the envelope.
func WithSummary(s string) ResponseOption {
	return func(r *Response) { r.Summary = s }
}

// OK outputs a success response.
func (w *Writer) OK(data any, opts ...ResponseOption) error {
	resp := &Response{OK: true, Data: data}
	for _, opt := range opts {
		opt(resp)
	}
	if w.opts.Format == FormatQuiet {
		return w.writeJSON(resp.Data)
	}
	return w.writeJSON(resp)
}

// Err outputs an error response.
func (w *Writer) Err(err error) error {
	e := AsError(err)
	return w.writeJSON(&ErrorResponse{
		OK:         false,
		Error:      e.Message,
		Code:       e.Code,
		Hint:       e.Hint,
		RetryAfter: e.RetryAfter,
	})
}

func (w *Writer) writeJSON(v any) error {
	enc := json.NewEncoder(w.opts.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
