// Package handler adapts trigger payloads to counter.Service calls.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/tckz/view-counter/internal/counter"
)

// allowedMethods is the Allow header sent with 405 responses.
const allowedMethods = "GET, POST"

type Counter interface {
	HandleRequest(ctx context.Context, req any) (int64, error)
	Read(ctx context.Context) (int64, error)
}

var _ Counter = (*counter.Service)(nil)

type CountResponse struct {
	Count int64 `json:"count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusCode maps an error kind to an HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, counter.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, counter.ErrStoreWriteConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
