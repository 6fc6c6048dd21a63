package output

import (
	"bytes"
	"io"
)

// IndentWriter prefixes every line written through it with Indent, so that
// tables and captured output line up with renderer bullets.
type IndentWriter struct {
	w       io.Writer
	prefix  []byte
	midLine bool
}

func NewIndentWriter(w io.Writer) *IndentWriter {
	return &IndentWriter{w: w, prefix: []byte(Indent)}
}

func (w *IndentWriter) Write(p []byte) (int, error) {
	if w.w == nil {
		return len(p), nil
	}
	written := 0
	for len(p) > 0 {
		if !w.midLine {
			if _, err := w.w.Write(w.prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}
		chunk := p
		if i := bytes.IndexByte(p, '\n'); i >= 0 {
			chunk = p[:i+1]
			w.midLine = false
		}
		n, err := w.w.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
		p = p[len(chunk):]
	}
	return written, nil
}
