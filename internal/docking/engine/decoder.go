package engine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// maxFrameBytes caps a single stdout line. Anything longer is treated as a
// protocol violation rather than buffered unboundedly.
const maxFrameBytes = 1 << 20

// Frame is one parsed message from the engine's stdout stream. Progress is
// nil when the line carried no progress field. Raw holds the full line so
// terminal frames can be unmarshaled into a Result by the caller.
type Frame struct {
	Progress *int   `json:"progress"`
	Message  string `json:"message"`
	Status   string `json:"status"`

	Raw []byte `json:"-"`
}

// Terminal reports whether the frame carries a final status.
func (f *Frame) Terminal() bool {
	return f.Status != ""
}

// Decoder reads the engine's line-oriented JSON stream. Lines that are not
// valid JSON objects are collected as diagnostics instead of failing the
// stream; the engine prints library warnings on stdout occasionally.
type Decoder struct {
	scanner     *bufio.Scanner
	diagnostics []string
}

// NewDecoder wraps r with line framing bounded at maxFrameBytes.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxFrameBytes)
	return &Decoder{scanner: sc}
}

// Next returns the next JSON frame, skipping blank and non-JSON lines.
// It returns io.EOF when the stream ends, or bufio.ErrTooLong when a line
// exceeds the frame cap.
func (d *Decoder) Next() (*Frame, error) {
	for d.scanner.Scan() {
		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] != '{' {
			d.addDiagnostic(line)
			continue
		}

		var frame Frame
		if err := json.Unmarshal(line, &frame); err != nil {
			d.addDiagnostic(line)
			continue
		}
		frame.Raw = append([]byte(nil), line...)
		return &frame, nil
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Diagnostics returns the non-JSON lines seen so far, for inclusion in
// failure messages.
func (d *Decoder) Diagnostics() []string {
	return d.diagnostics
}

func (d *Decoder) addDiagnostic(line []byte) {
	// Retain a reasonable number; a chatty engine should not grow memory.
	if len(d.diagnostics) >= 50 {
		return
	}
	d.diagnostics = append(d.diagnostics, strings.TrimSpace(string(line)))
}
