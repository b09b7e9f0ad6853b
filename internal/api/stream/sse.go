package stream

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
)

// eventWriter frames Server-Sent Events. Every event gets a sequential id so
// clients can report Last-Event-ID when they reconnect.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	seq     uint64
	buf     bytes.Buffer
}

func newEventWriter(w http.ResponseWriter, flusher http.Flusher) *eventWriter {
	return &eventWriter{w: w, flusher: flusher}
}

// retry sets the client reconnect delay.
func (e *eventWriter) retry(millis int) error {
	e.buf.Reset()
	e.buf.WriteString("retry: ")
	e.buf.WriteString(strconv.Itoa(millis))
	e.buf.WriteString("\n\n")
	return e.flush()
}

// send writes one event. Multi-line payloads are split across data lines.
func (e *eventWriter) send(event string, payload []byte) error {
	e.seq++
	e.buf.Reset()
	fmt.Fprintf(&e.buf, "id: %d\nevent: %s\n", e.seq, event)
	for _, line := range bytes.Split(payload, []byte("\n")) {
		e.buf.WriteString("data: ")
		e.buf.Write(line)
		e.buf.WriteByte('\n')
	}
	e.buf.WriteByte('\n')
	return e.flush()
}

func (e *eventWriter) flush() error {
	if _, err := e.w.Write(e.buf.Bytes()); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
