// internal/entry/decode.go
package entry

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedRecordError wraps a per-line decode failure. Callers skip the line
// and continue; a single bad record never aborts a scan.
type MalformedRecordError struct {
	Line string
	Err  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: %v", e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// Decode parses one JSONL line into an Entry and sanitizes its text payloads.
// On invalid JSON it returns a *MalformedRecordError.
func Decode(line []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(line, &e); err != nil {
		return nil, &MalformedRecordError{Line: string(line), Err: err}
	}
	e.sanitize()
	return &e, nil
}

// sanitize strips ASCII control characters from message text in place. Tool
// output can contain terminal escape sequences that would corrupt rendering.
func (e *Entry) sanitize() {
	if e.Message == nil {
		return
	}
	sanitizeContent(&e.Message.Content)
}

func sanitizeContent(c *MessageContent) {
	if c.IsText {
		c.Text = stripControlChars(c.Text)
		return
	}
	for i := range c.Blocks {
		b := &c.Blocks[i]
		switch b.Type {
		case "text":
			b.Text = stripControlChars(b.Text)
		case "thinking":
			b.Thinking = stripControlChars(b.Thinking)
		case "tool_result":
			if b.Content != nil {
				sanitizeContent(b.Content)
			}
		}
	}
}

// stripControlChars removes ASCII control characters except newline, tab and
// carriage return, which are meaningful in message text.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
