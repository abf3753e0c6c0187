// Package transport defines the non-blocking HTTP client collaborator
// contract the engine depends on (spec §4.2) and a default net/http-backed
// implementation.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Request is the engine's method-agnostic view of one HTTP exchange.
type Request struct {
	Method string
	URL    string
	Body   []byte
	// Header is applied on top of whatever the Requester sets by default
	// (e.g. content-type, user-agent).
	Header http.Header
}

// Response is the full response the engine needs: status, order-preserving
// case-insensitive headers, and body bytes (spec §4.2).
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Handle represents one in-flight request. Done closes when Result is
// ready. The engine may abandon a Handle at any time (spec §4.2
// "Cancellation"); a Requester implementation must not leak resources when
// that happens, relying on the context passed to Start for cancellation.
type Handle interface {
	Done() <-chan struct{}
	Result() (*Response, error)
}

// Requester issues one request and notifies the engine when the response
// is fully available, without blocking the caller. This is the host's
// non-blocking HTTP client, per spec §4.2.
type Requester interface {
	Start(ctx context.Context, req Request) (Handle, error)
}

// handle is the default Requester's Handle implementation: a future backed
// by an unbuffered channel, closed exactly once by the background goroutine
// that drives the real net/http call. This is the "future/task" shape
// spec §9 recommends for callback-driven HTTP.
type handle struct {
	done chan struct{}
	resp *Response
	err  error
}

func (h *handle) Done() <-chan struct{} { return h.done }

func (h *handle) Result() (*Response, error) {
	<-h.done
	return h.resp, h.err
}

// HTTPRequester is the default Requester, backed by a *http.Client.
type HTTPRequester struct {
	Client *http.Client
}

// NewHTTPRequester returns an HTTPRequester using client, or
// http.DefaultClient if client is nil.
func NewHTTPRequester(client *http.Client) *HTTPRequester {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRequester{Client: client}
}

// Start launches req on a background goroutine and returns immediately
// with a Handle. The caller (the engine's Driver) suspends at the handle's
// Done channel between the HTTP_REQ and HTTP_RES sub-phases (spec §5).
func (r *HTTPRequester) Start(ctx context.Context, req Request) (Handle, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("transport: building request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	h := &handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		resp, err := r.Client.Do(httpReq)
		if err != nil {
			h.err = err
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			h.err = fmt.Errorf("transport: reading response body: %w", err)
			return
		}
		h.resp = &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
		}
	}()
	return h, nil
}
