package refspec

import (
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/quantmind-br/remotefetch/internal/domain"
)

const (
	tagPrefix    = "refs/tags/"
	peeledSuffix = "^{}"
)

// LocalRefs is a snapshot of local reference values keyed by name
type LocalRefs map[plumbing.ReferenceName]plumbing.Hash

// PlanOptions tunes how advertised heads are mapped onto local refs
type PlanOptions struct {
	Autotag domain.AutotagPolicy
	Prune   bool
	// HasObject reports whether an object is already stored locally.
	// Used by AutotagAuto; nil means nothing is local.
	HasObject func(plumbing.Hash) bool
}

// Plan matches advertised heads against specs and returns the tip updates
// needed to bring local refs in line with the remote. Unchanged refs are
// omitted. Every spec is applied to every head; when two specs map onto the
// same destination the first one wins. Source-only specs produce no update,
// see Wants.
func Plan(heads []domain.RemoteHead, specs []Refspec, local LocalRefs, opts PlanOptions) []domain.TipUpdate {
	if opts.Autotag == domain.AutotagAll {
		specs = append(append([]Refspec{}, specs...), MustParse(TagsRefspec, domain.DirectionFetch))
	}

	var updates []domain.TipUpdate
	claimed := map[plumbing.ReferenceName]bool{}
	wanted := map[plumbing.Hash]bool{}
	remote := map[plumbing.ReferenceName]bool{}
	short := resolveShort(heads, specs)

	for _, head := range heads {
		remote[head.Name] = true
		if !fetchable(head) {
			continue
		}
		for i, spec := range specs {
			if !matches(spec, short[i], head.Name) {
				continue
			}
			wanted[head.OID] = true
			if spec.IsSourceOnly() {
				continue
			}
			dst := spec.Transform(head.Name)
			if claimed[dst] {
				continue
			}
			claimed[dst] = true
			u := domain.TipUpdate{
				RefName: dst,
				Old:     local[dst],
				New:     head.OID,
				Force:   spec.Force(),
			}
			if !u.IsNoop() {
				updates = append(updates, u)
			}
		}
	}

	if opts.Autotag == domain.AutotagAuto {
		updates = append(updates, followTags(heads, claimed, wanted, local, opts.HasObject)...)
	}

	if opts.Prune {
		updates = append(updates, prune(specs, remote, claimed, local)...)
	}

	return updates
}

// Wants returns the objects of heads matched by source-only specs, which
// are fetched without a tip update
func Wants(heads []domain.RemoteHead, specs []Refspec) []plumbing.Hash {
	short := resolveShort(heads, specs)
	seen := map[plumbing.Hash]bool{}
	var out []plumbing.Hash
	for _, head := range heads {
		if !fetchable(head) {
			continue
		}
		for i, spec := range specs {
			if spec.IsSourceOnly() && matches(spec, short[i], head.Name) && !seen[head.OID] {
				seen[head.OID] = true
				out = append(out, head.OID)
			}
		}
	}
	return out
}

func fetchable(head domain.RemoteHead) bool {
	return head.SymrefTarget == "" && !head.OID.IsZero() && !IsPeeled(head.Name)
}

// resolveShort picks, for every spec with a short source, the advertised
// head it names. A tag wins over a branch of the same name, as in git.
func resolveShort(heads []domain.RemoteHead, specs []Refspec) map[int]plumbing.ReferenceName {
	out := map[int]plumbing.ReferenceName{}
	for i, spec := range specs {
		if !spec.isShort() {
			continue
		}
		best := len(shortRules)
		for _, head := range heads {
			if !fetchable(head) {
				continue
			}
			if r := spec.rank(head.Name); r >= 0 && r < best {
				best = r
				out[i] = head.Name
			}
		}
	}
	return out
}

func matches(spec Refspec, resolved, name plumbing.ReferenceName) bool {
	if spec.isShort() {
		return resolved != "" && resolved == name
	}
	return spec.Match(name)
}

// followTags picks advertised tags that point at objects the fetch brings in
// or that already exist locally. Existing local tags are never moved.
func followTags(heads []domain.RemoteHead, claimed map[plumbing.ReferenceName]bool, wanted map[plumbing.Hash]bool, local LocalRefs, hasObject func(plumbing.Hash) bool) []domain.TipUpdate {
	var updates []domain.TipUpdate
	for _, head := range heads {
		if !strings.HasPrefix(head.Name.String(), tagPrefix) || head.SymrefTarget != "" || IsPeeled(head.Name) {
			continue
		}
		if claimed[head.Name] {
			continue
		}
		if _, exists := local[head.Name]; exists {
			continue
		}
		target := head.OID
		if peeled, ok := peeledTarget(heads, head.Name); ok {
			target = peeled
		}
		reachable := wanted[target] || (hasObject != nil && hasObject(target))
		if !reachable {
			continue
		}
		claimed[head.Name] = true
		updates = append(updates, domain.TipUpdate{RefName: head.Name, New: head.OID})
	}
	return updates
}

// IsPeeled reports whether name is the "^{}" entry of an annotated tag
func IsPeeled(name plumbing.ReferenceName) bool {
	return strings.HasSuffix(name.String(), peeledSuffix)
}

// PeeledName returns the advertisement name of the peeled value of tag
func PeeledName(tag plumbing.ReferenceName) plumbing.ReferenceName {
	return plumbing.ReferenceName(tag.String() + peeledSuffix)
}

// peeledTarget finds the "<tag>^{}" entry advertised for an annotated tag
func peeledTarget(heads []domain.RemoteHead, tag plumbing.ReferenceName) (plumbing.Hash, bool) {
	peeled := PeeledName(tag)
	for _, h := range heads {
		if h.Name == peeled {
			return h.OID, true
		}
	}
	return plumbing.ZeroHash, false
}

// prune deletes local refs under a wildcard destination whose source is gone
func prune(specs []Refspec, remote, claimed map[plumbing.ReferenceName]bool, local LocalRefs) []domain.TipUpdate {
	names := make([]plumbing.ReferenceName, 0, len(local))
	for name := range local {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	var updates []domain.TipUpdate
	for _, name := range names {
		if claimed[name] {
			continue
		}
		for _, spec := range specs {
			if !spec.IsWildcard() {
				continue
			}
			src, ok := spec.MatchDestination(name)
			if !ok {
				continue
			}
			if !remote[src] {
				claimed[name] = true
				updates = append(updates, domain.TipUpdate{RefName: name, Old: local[name], Force: true})
			}
			break
		}
	}
	return updates
}
