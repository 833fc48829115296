// Package fields holds the field-extraction strategies that turn one listing
// fragment into structured posting fields.
package fields

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
)

const (
	segmentSep  = ": "
	postedLabel = "Posted"
)

// Strategy names accepted by New.
const (
	StrategyUSRSE    = "usrse"
	StrategySegments = "segments"
)

// New returns the strategy registered under name.
func New(name string) (jobs.FieldExtractor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyUSRSE:
		return USRSE{}, nil
	case StrategySegments:
		return Segments{}, nil
	default:
		return nil, fmt.Errorf("unknown field strategy %q", name)
	}
}

// fragment is a parsed listing with its first link resolved.
type fragment struct {
	root  *goquery.Selection
	url   string
	title string
	text  string
}

func parseFragment(listing jobs.RawListing) (fragment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listing.HTML))
	if err != nil {
		return fragment{}, fmt.Errorf("%w: parse fragment: %w", jobs.ErrMalformedListing, err)
	}
	root := doc.Find("body")
	link := root.Find("a").First()
	if link.Length() == 0 {
		return fragment{}, fmt.Errorf("%w: no link in listing", jobs.ErrMalformedListing)
	}
	href, ok := link.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return fragment{}, fmt.Errorf("%w: first link has no href", jobs.ErrMalformedListing)
	}
	return fragment{
		root:  root,
		url:   href,
		title: strings.TrimSpace(normalizeSpace(link.Text())),
		text:  normalizeSpace(root.Text()),
	}, nil
}

func resolveKey(listing jobs.RawListing) (string, error) {
	frag, err := parseFragment(listing)
	if err != nil {
		return "", err
	}
	return frag.url, nil
}

// normalizeSpace replaces non-breaking spaces, which the board uses around its labels.
func normalizeSpace(s string) string {
	return strings.ReplaceAll(s, "\u00a0", " ")
}

// splitComposite splits "Organization, City, Region" into organization and the
// remaining location tokens.
func splitComposite(composite string) (string, string, error) {
	tokens := strings.Split(composite, ",")
	org := strings.TrimSpace(tokens[0])
	if org == "" {
		return "", "", fmt.Errorf("%w: empty organization in %q", jobs.ErrMalformedListing, composite)
	}
	rest := make([]string, 0, len(tokens)-1)
	for _, tok := range tokens[1:] {
		if tok = strings.TrimSpace(tok); tok != "" {
			rest = append(rest, tok)
		}
	}
	return org, strings.Join(rest, ", "), nil
}

func build(frag fragment, date, composite string) (jobs.Fields, error) {
	org, location, err := splitComposite(composite)
	if err != nil {
		return jobs.Fields{}, err
	}
	lower := strings.ToLower(location)
	return jobs.Fields{
		URL:          frag.url,
		DatePosted:   date,
		Title:        frag.title,
		Organization: org,
		Location:     location,
		IsRemote:     strings.Contains(lower, "remote"),
		IsFlexible:   strings.Contains(lower, "flexible"),
		IsHybrid:     strings.Contains(lower, "hybrid"),
	}, nil
}
