package refspec

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/quantmind-br/remotefetch/internal/domain"
)

const (
	forcePrefix = "+"
	separator   = ":"
	wildcard    = "*"
)

// TagsRefspec maps every remote tag onto the local tag namespace. It is not
// forced, so an existing local tag only moves by fast-forward.
const TagsRefspec = "refs/tags/*:refs/tags/*"

// shortRules are the names a short source is tried as, in order of preference
var shortRules = []string{"refs/%s", "refs/tags/%s", "refs/heads/%s", "refs/remotes/%s", "refs/remotes/%s/HEAD"}

// Refspec is a validated source:destination mapping for one direction.
// A fetch refspec may omit the destination: its objects are fetched but no
// local ref is written.
type Refspec struct {
	spec      config.RefSpec
	direction domain.Direction
	text      string
}

// Parse validates s as a refspec for the given direction. Fetch refspecs
// accept a bare source ("master", "refs/heads/dev") and an empty destination.
func Parse(s string, dir domain.Direction) (Refspec, error) {
	if strings.TrimSpace(s) == "" {
		return Refspec{}, fmt.Errorf("%w: empty refspec", domain.ErrInvalidRefspec)
	}

	native := s
	if dir == domain.DirectionFetch && !strings.Contains(s, separator) {
		native = s + separator
	}
	spec := config.RefSpec(native)
	if err := validate(spec, dir); err != nil {
		return Refspec{}, fmt.Errorf("%w: %q: %v", domain.ErrInvalidRefspec, s, err)
	}

	src := spec.Src()
	dst := destination(spec)
	if dir == domain.DirectionFetch && src == "" {
		return Refspec{}, fmt.Errorf("%w: %q: fetch refspec needs a source", domain.ErrInvalidRefspec, s)
	}
	for _, part := range []string{src, dst} {
		if err := checkPattern(part); err != nil {
			return Refspec{}, fmt.Errorf("%w: %q: %v", domain.ErrInvalidRefspec, s, err)
		}
	}

	return Refspec{spec: spec, direction: dir, text: s}, nil
}

// validate is go-git's check, relaxed for source-only fetch refspecs
func validate(spec config.RefSpec, dir domain.Direction) error {
	s := string(spec)
	if dir == domain.DirectionFetch && strings.Count(s, separator) == 1 && strings.HasSuffix(s, separator) {
		if strings.Count(s, wildcard) > 1 {
			return config.ErrRefSpecMalformedWildcard
		}
		return nil
	}
	return spec.Validate()
}

// MustParse is like Parse but panics on error
func MustParse(s string, dir domain.Direction) Refspec {
	r, err := Parse(s, dir)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseAll parses every string, failing on the first invalid one
func ParseAll(specs []string, dir domain.Direction) ([]Refspec, error) {
	out := make([]Refspec, 0, len(specs))
	for _, s := range specs {
		r, err := Parse(s, dir)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// FromNative revalidates go-git refspecs for the given direction
func FromNative(specs []config.RefSpec, dir domain.Direction) ([]Refspec, error) {
	out := make([]Refspec, 0, len(specs))
	for _, spec := range specs {
		r, err := Parse(string(spec), dir)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// NativeAll returns the go-git form of every refspec
func NativeAll(specs []Refspec) []config.RefSpec {
	out := make([]config.RefSpec, 0, len(specs))
	for _, r := range specs {
		out = append(out, r.spec)
	}
	return out
}

// checkPattern rejects characters git never allows in a ref name
func checkPattern(p string) error {
	if strings.Contains(p, "..") {
		return fmt.Errorf("%q contains '..'", p)
	}
	if strings.Contains(p, "@{") {
		return fmt.Errorf("%q contains '@{'", p)
	}
	if strings.HasSuffix(p, "/") || strings.HasSuffix(p, ".lock") {
		return fmt.Errorf("%q has an invalid suffix", p)
	}
	for _, r := range p {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%q contains a control character", p)
		}
		switch r {
		case ' ', '~', '^', '?', '[', '\\':
			return fmt.Errorf("%q contains %q", p, r)
		}
	}
	return nil
}

func destination(spec config.RefSpec) string {
	s := string(spec)
	return s[strings.Index(s, separator)+1:]
}

func (r Refspec) String() string {
	return r.text
}

// Native returns the go-git form of the refspec
func (r Refspec) Native() config.RefSpec {
	return r.spec
}

// Source returns the source pattern without the force marker
func (r Refspec) Source() string {
	return r.spec.Src()
}

// Destination returns the destination pattern
func (r Refspec) Destination() string {
	return destination(r.spec)
}

// Force reports whether non-fast-forward updates are allowed
func (r Refspec) Force() bool {
	return r.spec.IsForceUpdate()
}

// Direction returns the direction the refspec was parsed for
func (r Refspec) Direction() domain.Direction {
	return r.direction
}

// IsWildcard reports whether source and destination carry a wildcard
func (r Refspec) IsWildcard() bool {
	return r.spec.IsWildcard()
}

// IsSourceOnly reports whether the refspec fetches without writing a local ref
func (r Refspec) IsSourceOnly() bool {
	return r.Destination() == ""
}

// isShort reports whether the source is an abbreviated name like "master"
func (r Refspec) isShort() bool {
	src := r.Source()
	return src != "HEAD" && !strings.HasPrefix(src, "refs/") && !r.IsWildcard()
}

// rank returns the position of the first short rule name satisfies, or -1
func (r Refspec) rank(name plumbing.ReferenceName) int {
	for i, rule := range shortRules {
		if name.String() == fmt.Sprintf(rule, r.Source()) {
			return i
		}
	}
	return -1
}

// Match reports whether name matches the source pattern. Short sources
// match any of the names git expands them to.
func (r Refspec) Match(name plumbing.ReferenceName) bool {
	if r.isShort() {
		return r.rank(name) >= 0
	}
	return r.spec.Match(name)
}

// Transform maps a matching source name onto the destination pattern
func (r Refspec) Transform(name plumbing.ReferenceName) plumbing.ReferenceName {
	return r.spec.Dst(name)
}

// MatchDestination reports whether local falls under the destination pattern
// and returns the source name it would have been fetched from
func (r Refspec) MatchDestination(local plumbing.ReferenceName) (plumbing.ReferenceName, bool) {
	dst := r.Destination()
	src := r.Source()
	name := local.String()
	if dst == "" || r.isShort() {
		return "", false
	}

	if !r.IsWildcard() {
		if name == dst {
			return plumbing.ReferenceName(src), true
		}
		return "", false
	}

	i := strings.Index(dst, wildcard)
	prefix, suffix := dst[:i], dst[i+1:]
	if len(name) < len(prefix)+len(suffix) || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	match := name[len(prefix) : len(name)-len(suffix)]
	j := strings.Index(src, wildcard)
	return plumbing.ReferenceName(src[:j] + match + src[j+1:]), true
}
