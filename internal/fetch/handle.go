// Package fetch provides a cancelable future for asynchronous tile loads.
//
// A Handle is created in the pending state and settles exactly once into one
// of resolved, rejected or canceled. Cancellation races against transport
// completion; whichever happens first wins, so a handle canceled before the
// response arrives never exposes a result.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"sync"

	_ "image/jpeg"
	_ "image/png"
)

// ErrCanceled is reported by Wait when the handle was canceled before the
// transport settled it.
var ErrCanceled = errors.New("fetch canceled")

// ErrDecode wraps payload decode failures so callers can tell them apart
// from transport errors.
var ErrDecode = errors.New("payload is not a decodable image")

type state int

const (
	statePending state = iota
	stateResolved
	stateRejected
	stateCanceled
)

// Handle is the result container for one in-flight fetch.
type Handle struct {
	mu     sync.Mutex
	state  state
	img    image.Image
	err    error
	done   chan struct{}
	cancel context.CancelFunc
}

// Go runs fn asynchronously and returns a handle that settles with its
// result. The context passed to fn is canceled when the handle is canceled,
// which aborts any transport fn started.
func Go(ctx context.Context, fn func(context.Context) (image.Image, error)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer cancel()
		img, err := fn(ctx)
		if err != nil {
			h.settle(stateRejected, nil, err)
			return
		}
		h.settle(stateResolved, img, nil)
	}()

	return h
}

// Get starts an HTTP GET for url and decodes the response body as an image.
func Get(ctx context.Context, client *http.Client, url string) *Handle {
	return Go(ctx, func(ctx context.Context) (image.Image, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected http status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		img, _, err := image.Decode(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return img, nil
	})
}

// Resolved returns an already-settled handle holding img. Providers that
// produce tiles locally use it to keep the same asynchronous surface.
func Resolved(img image.Image) *Handle {
	h := &Handle{
		state:  stateResolved,
		img:    img,
		done:   make(chan struct{}),
		cancel: func() {},
	}
	close(h.done)
	return h
}

// settle moves the handle out of pending. Returns false if it already left.
func (h *Handle) settle(s state, img image.Image, err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != statePending {
		return false
	}
	h.state = s
	h.img = img
	h.err = err
	close(h.done)
	return true
}

// Cancel aborts the fetch if it is still pending. The in-flight transport is
// torn down and no result will ever be exposed. Canceling a settled handle
// is a no-op.
func (h *Handle) Cancel() {
	if h.settle(stateCanceled, nil, ErrCanceled) {
		h.cancel()
	}
}

// Done is closed once the handle settles.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the handle settles or ctx expires. On resolution it
// returns the decoded image; on rejection or cancellation the corresponding
// error.
func (h *Handle) Wait(ctx context.Context) (image.Image, error) {
	select {
	case <-h.done:
		return h.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the settled outcome. It must only be called after Done is
// closed; before settlement it reports a pending error.
func (h *Handle) Result() (image.Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case stateResolved:
		return h.img, nil
	case stateRejected:
		return nil, h.err
	case stateCanceled:
		return nil, ErrCanceled
	default:
		return nil, errors.New("fetch still pending")
	}
}

// Canceled reports whether the handle settled by cancellation.
func (h *Handle) Canceled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == stateCanceled
}
