package fields

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
)

// Segments parses items whose flattened text reads "Label: DATE: Organization, Location".
type Segments struct{}

// ResolveKey implements jobs.KeyResolver.
func (Segments) ResolveKey(listing jobs.RawListing) (string, error) {
	return resolveKey(listing)
}

// Extract implements jobs.FieldExtractor.
func (Segments) Extract(listing jobs.RawListing) (jobs.Fields, error) {
	frag, err := parseFragment(listing)
	if err != nil {
		return jobs.Fields{}, err
	}
	segments := strings.Split(frag.text, segmentSep)
	if len(segments) < 3 {
		return jobs.Fields{}, fmt.Errorf("%w: expected 3 colon segments, got %d", jobs.ErrMalformedListing, len(segments))
	}
	date := strings.TrimSpace(segments[1])
	if date == "" {
		return jobs.Fields{}, fmt.Errorf("%w: empty date segment", jobs.ErrMalformedListing)
	}
	return build(frag, date, strings.TrimSpace(segments[2]))
}
