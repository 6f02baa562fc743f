// context.go
package reef

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"
)

// Ctx carries the request/response pair for a single Handler invocation.
type Ctx struct {
	w   http.ResponseWriter
	req *http.Request
	log *slog.Logger
	rc  *http.ResponseController

	status        int
	headerWritten bool
}

func newCtx(w http.ResponseWriter, req *http.Request, log *slog.Logger) *Ctx {
	if log == nil {
		log = slog.Default()
	}
	return &Ctx{
		w:      w,
		req:    req,
		log:    log,
		rc:     http.NewResponseController(w),
		status: http.StatusOK,
	}
}

// Request returns the underlying *http.Request.
func (c *Ctx) Request() *http.Request { return c.req }

// Writer returns the underlying http.ResponseWriter.
func (c *Ctx) Writer() http.ResponseWriter { return c.w }

// Response is an alias for Writer, for handlers that prefer that name.
func (c *Ctx) Response() http.ResponseWriter { return c.w }

// Header returns the response header map.
func (c *Ctx) Header() http.Header { return c.w.Header() }

// Context returns the request's context.
func (c *Ctx) Context() context.Context { return c.req.Context() }

// Logger returns the router-scoped logger.
func (c *Ctx) Logger() *slog.Logger { return c.log }

// SetWriter replaces the response writer, rebuilding the ResponseController.
func (c *Ctx) SetWriter(w http.ResponseWriter) {
	c.w = w
	c.rc = http.NewResponseController(w)
	c.headerWritten = false
}

// Status records the status to use on the next write. It has no effect once
// the header has already been flushed.
func (c *Ctx) Status(code int) *Ctx {
	if !c.headerWritten {
		c.status = code
	}
	return c
}

// StatusCode returns the currently tracked status.
func (c *Ctx) StatusCode() int { return c.status }

func (c *Ctx) writeHeaderOnce(status int) {
	c.status = status
	if c.headerWritten {
		return
	}
	c.headerWritten = true
	c.w.WriteHeader(status)
}

// Param returns a path parameter extracted by the router's mux pattern.
func (c *Ctx) Param(name string) string { return c.req.PathValue(name) }

// Query returns the first value of a query parameter.
func (c *Ctx) Query(name string) string {
	if c.req.URL == nil {
		return ""
	}
	return c.req.URL.Query().Get(name)
}

// QueryValues returns the parsed query string.
func (c *Ctx) QueryValues() url.Values {
	if c.req.URL == nil {
		return url.Values{}
	}
	return c.req.URL.Query()
}

// Form parses and returns the request's form values.
func (c *Ctx) Form() (url.Values, error) {
	if err := c.req.ParseForm(); err != nil {
		return nil, err
	}
	return c.req.Form, nil
}

// MultipartForm parses a multipart request up to maxMemory bytes in memory,
// returning a cleanup func that removes any temporary files.
func (c *Ctx) MultipartForm(maxMemory int64) (*multipart.Form, func(), error) {
	if err := c.req.ParseMultipartForm(maxMemory); err != nil {
		return nil, func() {}, err
	}
	form := c.req.MultipartForm
	return form, func() {
		if form != nil {
			_ = form.RemoveAll()
		}
	}, nil
}

// Cookie returns the named request cookie.
func (c *Ctx) Cookie(name string) (*http.Cookie, error) { return c.req.Cookie(name) }

// SetCookie adds a Set-Cookie header to the response.
func (c *Ctx) SetCookie(ck *http.Cookie) { http.SetCookie(c.w, ck) }

// Bind decodes a JSON request body into v, rejecting unknown fields and
// trailing data. maxBytes of 0 means no limit is enforced.
func (c *Ctx) Bind(v any, maxBytes int64) error {
	body := io.Reader(c.req.Body)
	if maxBytes > 0 {
		body = http.MaxBytesReader(c.w, c.req.Body, maxBytes)
	}
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	var extra json.RawMessage
	switch err := dec.Decode(&extra); {
	case err == io.EOF:
		return nil
	case err == nil:
		return errors.New("reef: unexpected trailing data after JSON body")
	default:
		return err
	}
}

// NoContent writes a 204 response with no body.
func (c *Ctx) NoContent() error {
	c.writeHeaderOnce(http.StatusNoContent)
	return nil
}

// Redirect writes a redirect response. A code of 0 defaults to 302.
func (c *Ctx) Redirect(code int, location string) error {
	if code == 0 {
		code = http.StatusFound
	}
	http.Redirect(c.w, c.req, location, code)
	c.status = code
	c.headerWritten = true
	return nil
}

// JSON writes v as a JSON response.
func (c *Ctx) JSON(status int, v any) error {
	if c.w.Header().Get("Content-Type") == "" {
		c.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeHeaderOnce(status)
	_, err = c.w.Write(b)
	return err
}

// HTML writes an HTML response.
func (c *Ctx) HTML(status int, s string) error {
	if c.w.Header().Get("Content-Type") == "" {
		c.w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	c.writeHeaderOnce(status)
	_, err := io.WriteString(c.w, s)
	return err
}

// Text writes a plain-text response. Invalid UTF-8 falls back to
// application/octet-stream.
func (c *Ctx) Text(status int, s string) error {
	if c.w.Header().Get("Content-Type") == "" {
		if utf8.ValidString(s) {
			c.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		} else {
			c.w.Header().Set("Content-Type", "application/octet-stream")
		}
	}
	c.writeHeaderOnce(status)
	_, err := io.WriteString(c.w, s)
	return err
}

// Bytes writes a raw byte response with the given content type, defaulting
// to application/octet-stream.
func (c *Ctx) Bytes(status int, b []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if c.w.Header().Get("Content-Type") == "" {
		c.w.Header().Set("Content-Type", contentType)
	}
	c.writeHeaderOnce(status)
	_, err := c.w.Write(b)
	return err
}

// Write implements io.Writer, flushing the tracked status on first use.
func (c *Ctx) Write(p []byte) (int, error) {
	c.writeHeaderOnce(c.status)
	return c.w.Write(p)
}

// WriteString writes a string, flushing the tracked status on first use.
func (c *Ctx) WriteString(s string) (int, error) { return c.Write([]byte(s)) }

// File serves a local file. A code of 0 uses the currently tracked status.
func (c *Ctx) File(code int, path string) error {
	if code == 0 {
		code = c.status
	}
	c.writeHeaderOnce(code)
	http.ServeFile(c.w, c.req, path)
	return nil
}

// Download serves a local file as an attachment named filename.
func (c *Ctx) Download(code int, path, filename string) error {
	c.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return c.File(code, path)
}

// Stream calls fn with the response writer, defaulting to
// application/octet-stream when no content type has been set.
func (c *Ctx) Stream(fn func(io.Writer) error) error {
	if c.w.Header().Get("Content-Type") == "" {
		c.w.Header().Set("Content-Type", "application/octet-stream")
	}
	c.writeHeaderOnce(c.status)
	return fn(c.w)
}

// SSE streams ch as server-sent events until it is closed or the request
// context is done, then emits a terminal "end" event.
func (c *Ctx) SSE(ch <-chan any) error {
	flusher, ok := c.w.(http.Flusher)
	if !ok {
		return errors.New("reef: response writer does not support flushing")
	}
	if c.w.Header().Get("Content-Type") == "" {
		c.w.Header().Set("Content-Type", "text/event-stream")
		c.w.Header().Set("Cache-Control", "no-cache")
		c.w.Header().Set("Connection", "keep-alive")
	}
	c.writeHeaderOnce(c.status)

	ctx := c.req.Context()
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				_, _ = io.WriteString(c.w, "event: end\n\n")
				flusher.Flush()
				return nil
			}
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.w, "data: %s\n\n", b)
			flusher.Flush()
		case <-ctx.Done():
			return nil
		}
	}
}

// Flush flushes the underlying writer if it supports it.
func (c *Ctx) Flush() {
	if f, ok := c.w.(http.Flusher); ok {
		f.Flush()
	}
}

// SetWriteDeadline delegates to the response controller.
func (c *Ctx) SetWriteDeadline(t time.Time) error { return c.rc.SetWriteDeadline(t) }

// EnableFullDuplex delegates to the response controller.
func (c *Ctx) EnableFullDuplex() error { return c.rc.EnableFullDuplex() }

// Hijack delegates to the response controller.
func (c *Ctx) Hijack() (net.Conn, *bufio.ReadWriter, error) { return c.rc.Hijack() }
