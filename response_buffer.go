package bdispatch

import (
	"bytes"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrBufferFull is returned when a write would grow the response buffer past its limit.
var ErrBufferFull = errors.New("bdispatch: response buffer is full")

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// ResponseBuffer is the buffered [ResponseWriter] the dispatcher hands to middleware and handlers. Nothing
// reaches the underlying writer until the buffer is flushed, so the response can be reset and replaced
// entirely until that point.
type ResponseBuffer struct {
	resp   http.ResponseWriter
	buf    *bytes.Buffer
	header http.Header
	limit  int

	status      int
	wroteHeader bool
	sentHeader  bool
	flushed     bool
}

// NewResponseWriter buffers writes to 'resp' up to 'limit' bytes. A negative limit disables the limit.
func NewResponseWriter(resp http.ResponseWriter, limit int) ResponseWriter {
	return newBufferResponse(resp, limit)
}

func newBufferResponse(resp http.ResponseWriter, limit int) *ResponseBuffer {
	buf, _ := bufPool.Get().(*bytes.Buffer)
	buf.Reset()

	return &ResponseBuffer{
		resp:   resp,
		buf:    buf,
		header: http.Header{},
		limit:  limit,
		status: http.StatusOK,
	}
}

// Header returns the buffered header map. It is copied to the underlying writer on the first flush.
func (w *ResponseBuffer) Header() http.Header { return w.header }

// WriteHeader records the status code. Only the first call has an effect, like the standard library.
func (w *ResponseBuffer) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}

	w.wroteHeader = true
	w.status = statusCode
}

// Write appends to the buffer or fails with [ErrBufferFull] without writing anything.
func (w *ResponseBuffer) Write(p []byte) (int, error) {
	if w.limit >= 0 && w.buf.Len()+len(p) > w.limit {
		return 0, ErrBufferFull
	}

	w.wroteHeader = true

	return w.buf.Write(p)
}

// Status returns the status code that is, or will be, sent.
func (w *ResponseBuffer) Status() int { return w.status }

// Flushed reports whether anything has been sent to the underlying writer explicitly.
func (w *ResponseBuffer) Flushed() bool { return w.flushed }

// Reset discards the buffered body, headers and status. It panics when the buffer was already flushed
// explicitly since the client has then already received part of the response.
func (w *ResponseBuffer) Reset() {
	if w.flushed {
		panic("bdispatch: cannot reset response, already flushed")
	}

	w.buf.Reset()
	w.header = http.Header{}
	w.status = http.StatusOK
	w.wroteHeader = false
}

// FlushBuffer writes the buffered response to the underlying writer without flushing the underlying
// writer itself. The dispatcher calls it once after the handler chain has returned.
func (w *ResponseBuffer) FlushBuffer() error {
	if !w.sentHeader {
		dst := w.resp.Header()
		for k, v := range w.header {
			dst[k] = v
		}

		w.resp.WriteHeader(w.status)
		w.sentHeader = true
	}

	if w.buf.Len() < 1 {
		return nil
	}

	if _, err := w.resp.Write(w.buf.Bytes()); err != nil {
		return errors.Wrap(err, "write buffered response")
	}

	w.buf.Reset()

	return nil
}

// FlushError implements the interface used by [http.ResponseController]. After an explicit flush the
// response can no longer be reset.
func (w *ResponseBuffer) FlushError() error {
	if err := w.FlushBuffer(); err != nil {
		return err
	}

	w.flushed = true

	if err := http.NewResponseController(w.resp).Flush(); err != nil &&
		!errors.Is(err, http.ErrNotSupported) {
		return errors.Wrap(err, "flush underlying response")
	}

	return nil
}

// Free returns the buffer to the pool. The writer must not be used afterwards.
func (w *ResponseBuffer) Free() {
	if w.buf == nil {
		return
	}

	w.buf.Reset()
	bufPool.Put(w.buf)
	w.buf = nil
}

// Unwrap allows [http.ResponseController] to reach the underlying writer.
func (w *ResponseBuffer) Unwrap() http.ResponseWriter { return w.resp }

var _ ResponseWriter = &ResponseBuffer{}
