// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// APIError is a non-2xx response from the Diiwaan service. It covers
// validation failures, conflicts and auth rejections; these are recorded
// against the offending queue entry and retried, they never abort a drain
// pass.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("diiwaan api: status %d: %s", e.StatusCode, e.Body)
}

// IsNetworkError reports whether err is a connectivity-class failure (host
// unreachable, dropped connection, request timeout/cancel). The reconciler
// aborts the remainder of a drain pass on these, since every subsequent call
// would fail the same way.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
