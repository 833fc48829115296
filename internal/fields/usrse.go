package fields

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
)

// USRSE parses the US-RSE board item shape:
//
//	<li><a href="URL">Title</a>: Organization, Location <em>Posted: DATE</em></li>
type USRSE struct{}

// ResolveKey implements jobs.KeyResolver.
func (USRSE) ResolveKey(listing jobs.RawListing) (string, error) {
	return resolveKey(listing)
}

// Extract implements jobs.FieldExtractor.
func (USRSE) Extract(listing jobs.RawListing) (jobs.Fields, error) {
	frag, err := parseFragment(listing)
	if err != nil {
		return jobs.Fields{}, err
	}

	em := frag.root.Find("em").First()
	if em.Length() == 0 {
		return jobs.Fields{}, fmt.Errorf("%w: no posted date", jobs.ErrMalformedListing)
	}
	dateParts := strings.Split(normalizeSpace(em.Text()), segmentSep)
	if len(dateParts) < 2 || strings.TrimSpace(dateParts[1]) == "" {
		return jobs.Fields{}, fmt.Errorf("%w: unexpected date label %q", jobs.ErrMalformedListing, em.Text())
	}

	segments := strings.Split(frag.text, segmentSep)
	if len(segments) < 2 {
		return jobs.Fields{}, fmt.Errorf("%w: no organization segment", jobs.ErrMalformedListing)
	}
	composite := strings.TrimSpace(segments[1])
	composite = strings.TrimSpace(strings.TrimSuffix(composite, postedLabel))

	return build(frag, strings.TrimSpace(dateParts[1]), composite)
}
