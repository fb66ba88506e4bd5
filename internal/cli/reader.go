package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/spice-inbox/internal/model"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// maxLineSize bounds a single JSONL record. Notification bodies are short.
const maxLineSize = 1 << 20

// MessageReader decodes newline-delimited JSON messages, one RawMessage per
// line. Blank lines and lines starting with # are skipped.
type MessageReader struct {
	scanner *bufio.Scanner
	line    int
	failed  bool
}

// NewMessageReader creates a reader over r.
func NewMessageReader(r io.Reader) *MessageReader {
	if r == nil {
		panic("reader cannot be nil")
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &MessageReader{scanner: scanner}
}

// Next returns the next message. It returns io.EOF when the input is
// exhausted and ErrInputCancelled once ctx is done. A malformed line yields
// an error naming the line; the reader stays usable afterwards.
func (r *MessageReader) Next(ctx context.Context) (model.RawMessage, error) {
	for {
		if ctx.Err() != nil {
			return model.RawMessage{}, ErrInputCancelled
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil && !r.failed {
				r.failed = true
				return model.RawMessage{}, fmt.Errorf("failed to read line %d: %w", r.line+1, err)
			}
			return model.RawMessage{}, io.EOF
		}
		r.line++

		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var msg model.RawMessage
		if err := json.Unmarshal([]byte(text), &msg); err != nil {
			return model.RawMessage{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		if msg.Channel == "" {
			msg.Channel = model.ChannelSMS
		}
		return msg, nil
	}
}

// Line returns the number of the last line read.
func (r *MessageReader) Line() int {
	return r.line
}

// CountMessages counts the non-blank, non-comment lines of data so a
// progress bar can be sized before decoding.
func CountMessages(data []byte) int {
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			n++
		}
	}
	return n
}
