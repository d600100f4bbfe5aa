package resolver

import (
	"errors"

	"github.com/aluedeke/go-appfeed/pkg/catalog"
)

// Non-fatal conditions recorded in Result.Warnings
var (
	ErrCatalogLookup  = errors.New("catalog lookup failed")
	ErrIconExtraction = errors.New("icon extraction failed")
)

// Outcome tags a Result
type Outcome int

const (
	// Resolved: identity recovered and classified by the catalog, or
	// taken from the cache.
	Resolved Outcome = iota
	// Unclassified: identity recovered, catalog miss, genre defaults to app.
	Unclassified
	// Rejected: the asset produced no identity; see Reason.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case Unclassified:
		return "unclassified"
	default:
		return "rejected"
	}
}

// Reason explains a rejection
type Reason string

const (
	ReasonDownload   Reason = "download"
	ReasonBadArchive Reason = "bad-zip"
	ReasonUnsafe     Reason = "unsafe"
	ReasonNoBundleID Reason = "no-bundle-id"
)

// Icon sources
const (
	IconFromCatalog = "catalog"
	IconFromArchive = "archive"
)

// Result is the outcome of resolving one asset
type Result struct {
	Outcome  Outcome
	BundleID string
	Genre    catalog.Genre
	Reason   Reason // set when Outcome is Rejected
	Err      error  // cause of a rejection

	Cached     bool   // served from the resolution cache
	IconSource string // where the icon came from, empty when none was written
	Warnings   []error
}

// OK reports whether the result carries a bundle identifier
func (r Result) OK() bool {
	return r.Outcome != Rejected
}

func rejected(reason Reason, err error) Result {
	return Result{Outcome: Rejected, Reason: reason, Err: err}
}

// metricLabel is the outcome label used for counters
func (r Result) metricLabel() string {
	if r.Outcome == Rejected {
		return string(r.Reason)
	}
	if r.Cached {
		return "cached"
	}
	return r.Outcome.String()
}
