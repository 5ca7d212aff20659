// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// CandidateSet is the ordered, deduplicated output of a search.
type CandidateSet struct {
	Articles []Article `json:"articles" yaml:"articles"`

	// PageSize is the result cap the backends were asked for.
	PageSize int `json:"page_size" yaml:"page_size"`

	// Truncated is true when the backend returned as many results as
	// requested, so more may exist.
	Truncated bool `json:"is_truncated" yaml:"is_truncated"`

	// Method names the backend that produced Articles.
	Method string `json:"search_method" yaml:"search_method"`

	// BackendErrors maps backend name to the error it reported.
	BackendErrors map[string]string `json:"backend_errors,omitempty" yaml:"backend_errors,omitempty"`
}

// Cursor is a half-open index range [Start, End) over a caller-held
// article list. End of zero selects through the end of the list.
type Cursor struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Slice returns the concrete sublist selected by the cursor.
func (c Cursor) Slice(list []Article) ([]Article, error) {
	end := c.End
	if end == 0 {
		end = len(list)
	}
	if c.Start < 0 || end < c.Start || end > len(list) {
		return nil, fmt.Errorf("%w: range [%d, %d) outside list of %d", ErrInvalidRequest, c.Start, c.End, len(list))
	}
	return list[c.Start:end], nil
}
