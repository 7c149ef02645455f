package policy

import (
	"fmt"
	"strings"
)

// Region identifies the regulatory region a policy chunk applies to.
type Region string

const (
	RegionGlobal Region = "global"
	RegionUS     Region = "us"
	RegionEU     Region = "eu"
	RegionUK     Region = "uk"
)

// ContentType identifies the ad surface a policy chunk governs.
type ContentType string

const (
	ContentTypeAdText      ContentType = "ad_text"
	ContentTypeImage       ContentType = "image"
	ContentTypeVideo       ContentType = "video"
	ContentTypeLandingPage ContentType = "landing_page"
	ContentTypeGeneral     ContentType = "general"
)

// Source identifies the policy program a chunk was ingested from.
type Source string

const (
	SourceGoogle Source = "google"
)

// SectionLevel records where a chunk's section sits in the document
// hierarchy: H2 for top-level policy sections, H3 for subsections.
type SectionLevel string

const (
	SectionLevelH2 SectionLevel = "H2"
	SectionLevelH3 SectionLevel = "H3"
)

var (
	regionValues       = []string{"global", "us", "eu", "uk"}
	contentTypeValues  = []string{"ad_text", "image", "video", "landing_page", "general"}
	sourceValues       = []string{"google"}
	sectionLevelValues = []string{"H2", "H3"}
)

// InvalidFilterError reports a filter value outside the closed vocabulary
// of its dimension.
type InvalidFilterError struct {
	Dimension string
	Value     string
	Allowed   []string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid %s %q: must be one of %s", e.Dimension, e.Value, strings.Join(e.Allowed, ", "))
}

// ParseRegion validates a raw region value. Matching ignores case and
// surrounding whitespace.
func ParseRegion(raw string) (Region, error) {
	r := Region(strings.ToLower(strings.TrimSpace(raw)))
	switch r {
	case RegionGlobal, RegionUS, RegionEU, RegionUK:
		return r, nil
	}
	return "", &InvalidFilterError{Dimension: "region", Value: raw, Allowed: regionValues}
}

// ParseContentType validates a raw content type value. Matching ignores
// case and surrounding whitespace.
func ParseContentType(raw string) (ContentType, error) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(raw)))
	switch ct {
	case ContentTypeAdText, ContentTypeImage, ContentTypeVideo, ContentTypeLandingPage, ContentTypeGeneral:
		return ct, nil
	}
	return "", &InvalidFilterError{Dimension: "content_type", Value: raw, Allowed: contentTypeValues}
}

// ParseSource validates a raw policy source value. Matching ignores case
// and surrounding whitespace.
func ParseSource(raw string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case SourceGoogle:
		return s, nil
	}
	return "", &InvalidFilterError{Dimension: "policy_source", Value: raw, Allowed: sourceValues}
}

// ParseSectionLevel validates a raw section level value. Matching ignores
// case and surrounding whitespace.
func ParseSectionLevel(raw string) (SectionLevel, error) {
	sl := SectionLevel(strings.ToUpper(strings.TrimSpace(raw)))
	switch sl {
	case SectionLevelH2, SectionLevelH3:
		return sl, nil
	}
	return "", &InvalidFilterError{Dimension: "section_level", Value: raw, Allowed: sectionLevelValues}
}

// Filters narrows retrieval to chunks matching every set dimension.
// A nil field leaves that dimension unconstrained.
type Filters struct {
	Region      *Region
	ContentType *ContentType
	Source      *Source
}

// Empty reports whether no dimension is constrained.
func (f Filters) Empty() bool {
	return f.Region == nil && f.ContentType == nil && f.Source == nil
}

// ParseFilters validates raw filter values and builds the filter set.
// An empty string leaves the corresponding dimension unconstrained; any
// other value must belong to the dimension's vocabulary.
func ParseFilters(region, contentType, source string) (Filters, error) {
	var f Filters

	if region != "" {
		parsed, err := ParseRegion(region)
		if err != nil {
			return Filters{}, err
		}
		f.Region = &parsed
	}

	if contentType != "" {
		parsed, err := ParseContentType(contentType)
		if err != nil {
			return Filters{}, err
		}
		f.ContentType = &parsed
	}

	if source != "" {
		parsed, err := ParseSource(source)
		if err != nil {
			return Filters{}, err
		}
		f.Source = &parsed
	}

	return f, nil
}
