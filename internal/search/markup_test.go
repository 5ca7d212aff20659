// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import "testing"

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  A  plain\ttitle ", "A plain title"},
		{"italic", "Role of <i>KRAS</i> in cancer", "Role of KRAS in cancer"},
		{"headings", "<h4>Background</h4>Text here.<h4>Methods</h4>We did.", "Background Text here. Methods We did."},
		{"entities", "p &lt; 0.05 &amp; more", "p < 0.05 & more"},
		{"superscript", "Ca<sup>2+</sup> signalling", "Ca2+ signalling"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripMarkup(tt.in); got != tt.want {
				t.Errorf("stripMarkup(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
