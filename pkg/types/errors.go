// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

var (
	// ErrInvalidRequest marks a request rejected before any processing:
	// a missing keyword, an empty article list, or a malformed range.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound marks a missing project or article.
	ErrNotFound = errors.New("not found")
)
