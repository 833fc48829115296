package jobs

import "errors"

// Error kinds. Wrap them with fmt.Errorf("...: %w", ErrX) and classify with errors.Is.
var (
	ErrFetch            = errors.New("fetch board")
	ErrReadExistingKeys = errors.New("read existing keys")
	ErrMalformedListing = errors.New("malformed listing")
	ErrRender           = errors.New("render page")
	ErrEnrichment       = errors.New("enrich listing")
	ErrPersistence      = errors.New("persist batch")
)

// Kind names an error class for logs and metrics.
type Kind string

// Kind values returned by KindOf.
const (
	KindNone        Kind = ""
	KindFetch       Kind = "fetch"
	KindReadKeys    Kind = "read_existing_keys"
	KindMalformed   Kind = "malformed_listing"
	KindRender      Kind = "render"
	KindEnrichment  Kind = "enrichment"
	KindPersistence Kind = "persistence"
	KindUnknown     Kind = "unknown"
)

// KindOf classifies err. Render is checked before enrichment because render
// failures are wrapped in both.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMalformedListing):
		return KindMalformed
	case errors.Is(err, ErrRender):
		return KindRender
	case errors.Is(err, ErrEnrichment):
		return KindEnrichment
	case errors.Is(err, ErrFetch):
		return KindFetch
	case errors.Is(err, ErrReadExistingKeys):
		return KindReadKeys
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	default:
		return KindUnknown
	}
}
