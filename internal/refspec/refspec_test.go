package refspec

import (
	"testing"

	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind-br/remotefetch/internal/domain"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		dir      domain.Direction
		src      string
		dst      string
		force    bool
		wildcard bool
	}{
		{"default fetch", "+refs/heads/*:refs/remotes/origin/*", domain.DirectionFetch, "refs/heads/*", "refs/remotes/origin/*", true, true},
		{"plain fetch", "refs/heads/*:refs/remotes/origin/*", domain.DirectionFetch, "refs/heads/*", "refs/remotes/origin/*", false, true},
		{"exact", "refs/heads/master:refs/remotes/origin/master", domain.DirectionFetch, "refs/heads/master", "refs/remotes/origin/master", false, false},
		{"push delete", ":refs/heads/old", domain.DirectionPush, "", "refs/heads/old", false, false},
		{"wildcard in middle", "refs/heads/feature/*/tip:refs/remotes/origin/f/*", domain.DirectionFetch, "refs/heads/feature/*/tip", "refs/remotes/origin/f/*", false, true},
		{"source only", "refs/heads/master", domain.DirectionFetch, "refs/heads/master", "", false, false},
		{"short source only", "master", domain.DirectionFetch, "master", "", false, false},
		{"empty destination", "refs/heads/master:", domain.DirectionFetch, "refs/heads/master", "", false, false},
		{"forced source only wildcard", "+refs/heads/*", domain.DirectionFetch, "refs/heads/*", "", true, true},
		{"short source", "dev:refs/remotes/origin/dev", domain.DirectionFetch, "dev", "refs/remotes/origin/dev", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.in, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.in, r.String())
			assert.Equal(t, tt.src, r.Source())
			assert.Equal(t, tt.dst, r.Destination())
			assert.Equal(t, tt.force, r.Force())
			assert.Equal(t, tt.wildcard, r.IsWildcard())
			assert.Equal(t, tt.dir, r.Direction())
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		dir  domain.Direction
	}{
		{"empty", "", domain.DirectionFetch},
		{"blank", "   ", domain.DirectionFetch},
		{"push without separator", "refs/heads/master", domain.DirectionPush},
		{"two separators", "a:b:c", domain.DirectionFetch},
		{"push with empty destination", "refs/heads/master:", domain.DirectionPush},
		{"source only double wildcard", "refs/*/x/*", domain.DirectionFetch},
		{"bare separator", ":", domain.DirectionFetch},
		{"wildcard mismatch", "refs/heads/*:refs/remotes/origin/master", domain.DirectionFetch},
		{"double wildcard", "refs/heads/**:refs/remotes/origin/**", domain.DirectionFetch},
		{"fetch without source", ":refs/remotes/origin/master", domain.DirectionFetch},
		{"space", "refs/heads/a b:refs/remotes/origin/a b", domain.DirectionFetch},
		{"dot dot", "refs/heads/../x:refs/remotes/origin/x", domain.DirectionFetch},
		{"reflog syntax", "refs/heads/x@{1}:refs/remotes/origin/x", domain.DirectionFetch},
		{"lock suffix", "refs/heads/x.lock:refs/remotes/origin/x", domain.DirectionFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in, tt.dir)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidRefspec)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("a:b:c", domain.DirectionFetch) })
	assert.NotPanics(t, func() { MustParse(DefaultFetch("origin"), domain.DirectionFetch) })
}

func TestRefspec_MatchAndTransform(t *testing.T) {
	r := MustParse("refs/heads/*:refs/remotes/origin/*", domain.DirectionFetch)

	assert.True(t, r.Match("refs/heads/master"))
	assert.True(t, r.Match("refs/heads/feature/x"))
	assert.False(t, r.Match("refs/tags/v1"))
	assert.Equal(t, plumbing.ReferenceName("refs/remotes/origin/master"), r.Transform("refs/heads/master"))
	assert.Equal(t, plumbing.ReferenceName("refs/remotes/origin/feature/x"), r.Transform("refs/heads/feature/x"))

	exact := MustParse("refs/heads/master:refs/remotes/up/main", domain.DirectionFetch)
	assert.True(t, exact.Match("refs/heads/master"))
	assert.False(t, exact.Match("refs/heads/main"))
	assert.Equal(t, plumbing.ReferenceName("refs/remotes/up/main"), exact.Transform("refs/heads/master"))
}

func TestRefspec_SourceOnly(t *testing.T) {
	r := MustParse("refs/heads/master", domain.DirectionFetch)
	assert.True(t, r.IsSourceOnly())
	assert.True(t, r.Match("refs/heads/master"))
	assert.Equal(t, config.RefSpec("refs/heads/master:"), r.Native())

	_, ok := r.MatchDestination("refs/heads/master")
	assert.False(t, ok)

	back, err := FromNative([]config.RefSpec{r.Native()}, domain.DirectionFetch)
	require.NoError(t, err)
	assert.True(t, back[0].IsSourceOnly())
	assert.Equal(t, r.Source(), back[0].Source())

	assert.False(t, MustParse(DefaultFetch("origin"), domain.DirectionFetch).IsSourceOnly())
}

func TestRefspec_ShortSourceMatchesExpandedNames(t *testing.T) {
	r := MustParse("master", domain.DirectionFetch)

	assert.True(t, r.Match("refs/heads/master"))
	assert.True(t, r.Match("refs/tags/master"))
	assert.True(t, r.Match("refs/remotes/master/HEAD"))
	assert.False(t, r.Match("refs/heads/feature/master"))
	assert.False(t, r.Match("master"))
}

func TestRefspec_MatchDestination(t *testing.T) {
	r := MustParse("+refs/heads/*:refs/remotes/origin/*", domain.DirectionFetch)

	src, ok := r.MatchDestination("refs/remotes/origin/dev")
	require.True(t, ok)
	assert.Equal(t, plumbing.ReferenceName("refs/heads/dev"), src)

	_, ok = r.MatchDestination("refs/remotes/upstream/dev")
	assert.False(t, ok)

	exact := MustParse("refs/heads/master:refs/remotes/up/main", domain.DirectionFetch)
	src, ok = exact.MatchDestination("refs/remotes/up/main")
	require.True(t, ok)
	assert.Equal(t, plumbing.ReferenceName("refs/heads/master"), src)
}

func TestParseAll_StopsOnFirstError(t *testing.T) {
	_, err := ParseAll([]string{DefaultFetch("origin"), "a:b:c"}, domain.DirectionFetch)
	assert.ErrorIs(t, err, domain.ErrInvalidRefspec)

	specs, err := ParseAll([]string{DefaultFetch("origin"), TagsRefspec}, domain.DirectionFetch)
	require.NoError(t, err)
	assert.Len(t, specs, 2)
}

func TestResolve(t *testing.T) {
	configured := []string{"+refs/heads/*:refs/remotes/origin/*"}

	t.Run("explicit specs replace configured ones", func(t *testing.T) {
		specs, err := Resolve([]string{"refs/heads/dev:refs/remotes/origin/dev"}, configured)
		require.NoError(t, err)
		require.Len(t, specs, 1)
		assert.Equal(t, "refs/heads/dev:refs/remotes/origin/dev", specs[0].String())
	})

	t.Run("no explicit specs uses configured ones", func(t *testing.T) {
		specs, err := Resolve(nil, configured)
		require.NoError(t, err)
		require.Len(t, specs, 1)
		assert.Equal(t, configured[0], specs[0].String())

		specs, err = Resolve([]string{}, configured)
		require.NoError(t, err)
		assert.Equal(t, configured[0], specs[0].String())
	})

	t.Run("configured refspecs are not validated when explicit ones are given", func(t *testing.T) {
		_, err := Resolve([]string{"refs/heads/a:refs/remotes/o/a"}, []string{"garbage"})
		assert.NoError(t, err)
	})

	t.Run("malformed explicit refspec fails", func(t *testing.T) {
		_, err := Resolve([]string{""}, configured)
		assert.ErrorIs(t, err, domain.ErrInvalidRefspec)
	})
}

func TestNativeRoundTrip(t *testing.T) {
	specs, err := ParseAll([]string{DefaultFetch("origin"), "refs/heads/dev:refs/remotes/origin/dev"}, domain.DirectionFetch)
	require.NoError(t, err)

	native := NativeAll(specs)
	require.Len(t, native, 2)
	assert.Equal(t, "+refs/heads/*:refs/remotes/origin/*", string(native[0]))

	back, err := FromNative(native, domain.DirectionFetch)
	require.NoError(t, err)
	assert.Equal(t, specs, back)

	_, err = FromNative([]config.RefSpec{"refs/*/x/*:refs/*"}, domain.DirectionFetch)
	assert.ErrorIs(t, err, domain.ErrInvalidRefspec)
}
