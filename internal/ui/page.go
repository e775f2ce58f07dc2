package ui

import (
	"context"
	"errors"

	"lessonlab-backend/internal/client"
)

const (
	msgNotSignedIn = "You must be signed in to do that. Please sign in and try again."
	msgCancelled   = "The request was cancelled."
	msgUnexpected  = "Something went wrong. Please try again."
)

// lifetime scopes outstanding requests to a page. Closing it cancels them
// and marks late results for discarding.
type lifetime struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newLifetime() lifetime {
	ctx, cancel := context.WithCancel(context.Background())
	return lifetime{ctx: ctx, cancel: cancel}
}

// derive returns a context cancelled by either parent or the page lifetime.
func (l lifetime) derive(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(l.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (l lifetime) closed() bool { return l.ctx.Err() != nil }

// errorMessage turns a failed call into text for the page. Server details are
// shown verbatim.
func errorMessage(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrNotAuthenticated):
		return msgNotSignedIn
	case errors.As(err, &apiErr) && apiErr.Detail != "":
		return apiErr.Detail
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return msgCancelled
	default:
		return msgUnexpected
	}
}
