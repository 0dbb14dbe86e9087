package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const maxLineBytes = 16 << 20

// Reader yields one JSON object per non-blank line. Lines that are not JSON objects
// are skipped and counted instead of failing the whole stream.
type Reader struct {
	sc      *bufio.Scanner
	line    int
	skipped int
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc}
}

// Next returns the next object, or io.EOF when the stream is exhausted.
func (r *Reader) Next() (map[string]any, error) {
	for r.sc.Scan() {
		r.line++
		raw := bytes.TrimSpace(r.sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
			r.skipped++
			continue
		}
		return obj, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("jsonl line %d: %w", r.line+1, err)
	}
	return nil, io.EOF
}

// Skip marks the most recent object as rejected by the caller.
func (r *Reader) Skip() { r.skipped++ }

func (r *Reader) Skipped() int { return r.skipped }

func (r *Reader) Line() int { return r.line }

type Writer struct {
	bw  *bufio.Writer
	enc *json.Encoder
	n   int
}

func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &Writer{bw: bw, enc: enc}
}

func (w *Writer) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	w.n++
	return nil
}

func (w *Writer) Count() int { return w.n }

func (w *Writer) Flush() error { return w.bw.Flush() }
