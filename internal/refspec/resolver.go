package refspec

import (
	"github.com/quantmind-br/remotefetch/internal/domain"
)

// Resolve computes the refspecs for one fetch. A non-empty explicit list is
// used verbatim and the configured specs are ignored; otherwise the
// configured specs are used unmodified. Invalid specs fail with
// domain.ErrInvalidRefspec.
func Resolve(explicit, configured []string) ([]Refspec, error) {
	if len(explicit) > 0 {
		return ParseAll(explicit, domain.DirectionFetch)
	}
	return ParseAll(configured, domain.DirectionFetch)
}
