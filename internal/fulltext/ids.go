// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"regexp"
	"strings"
)

// IdentifierType classifies an article identifier.
type IdentifierType int

const (
	TypeUnknown IdentifierType = iota
	TypePMID
	TypePMCID
	TypeDOI
)

func (t IdentifierType) String() string {
	switch t {
	case TypePMID:
		return "pmid"
	case TypePMCID:
		return "pmcid"
	case TypeDOI:
		return "doi"
	default:
		return "unknown"
	}
}

// pmidPattern matches PubMed ids: "12345678", "PMID:12345678", "pmid 123".
var pmidPattern = regexp.MustCompile(`^(?i:pmid[:\s]*)?(\d{1,9})$`)

// pmcidPattern matches PMC ids with or without prefix: "PMC1234567", "pmc1234567".
var pmcidPattern = regexp.MustCompile(`^(?i:pmc)(\d{1,9})$`)

// doiPattern matches DOIs: "10.1038/s41586-020-2012-7".
var doiPattern = regexp.MustCompile(`^(?i:doi:\s*)?(10\.\d{4,9}/\S+)$`)

// Classify determines the identifier type and returns the normalized form.
// PMC ids are normalized to upper-case "PMC" followed by digits.
func Classify(identifier string) (IdentifierType, string) {
	identifier = strings.TrimSpace(identifier)

	if m := pmcidPattern.FindStringSubmatch(identifier); m != nil {
		return TypePMCID, "PMC" + m[1]
	}
	if m := pmidPattern.FindStringSubmatch(identifier); m != nil {
		return TypePMID, m[1]
	}
	if m := doiPattern.FindStringSubmatch(identifier); m != nil {
		return TypeDOI, m[1]
	}
	return TypeUnknown, identifier
}

// NormalizePMCID returns id in "PMC1234567" form, adding the prefix when
// the source omitted it. Unrecognized input is returned trimmed.
func NormalizePMCID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if m := pmcidPattern.FindStringSubmatch(id); m != nil {
		return "PMC" + m[1]
	}
	if pmidPattern.MatchString(id) && !strings.ContainsAny(id, ": ") {
		return "PMC" + id
	}
	return id
}

// numericPMCID strips the PMC prefix for NCBI efetch, which expects the
// bare number.
func numericPMCID(id string) string {
	if m := pmcidPattern.FindStringSubmatch(strings.TrimSpace(id)); m != nil {
		return m[1]
	}
	return strings.TrimSpace(id)
}
