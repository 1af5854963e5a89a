package testutil

import (
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage"
	"github.com/stretchr/testify/require"
)

var testSignature = object.Signature{
	Name:  "Test Author",
	Email: "test@example.com",
	When:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
}

// EmptyTree stores the empty tree object and returns its hash
func EmptyTree(t *testing.T, s storer.EncodedObjectStorer) plumbing.Hash {
	t.Helper()

	obj := s.NewEncodedObject()
	require.NoError(t, (&object.Tree{}).Encode(obj))
	h, err := s.SetEncodedObject(obj)
	require.NoError(t, err)
	return h
}

// Commit stores a commit with an empty tree and returns its hash.
// Distinct messages give distinct hashes.
func Commit(t *testing.T, s storer.EncodedObjectStorer, message string, parents ...plumbing.Hash) plumbing.Hash {
	t.Helper()

	c := &object.Commit{
		Author:       testSignature,
		Committer:    testSignature,
		Message:      message,
		TreeHash:     EmptyTree(t, s),
		ParentHashes: parents,
	}
	obj := s.NewEncodedObject()
	require.NoError(t, c.Encode(obj))
	h, err := s.SetEncodedObject(obj)
	require.NoError(t, err)
	return h
}

// AnnotatedTag stores a tag object pointing at target and returns its hash
func AnnotatedTag(t *testing.T, s storer.EncodedObjectStorer, name string, target plumbing.Hash) plumbing.Hash {
	t.Helper()

	tag := &object.Tag{
		Name:       name,
		Tagger:     testSignature,
		Message:    name + "\n",
		TargetType: plumbing.CommitObject,
		Target:     target,
	}
	obj := s.NewEncodedObject()
	require.NoError(t, tag.Encode(obj))
	h, err := s.SetEncodedObject(obj)
	require.NoError(t, err)
	return h
}

// SetRef points name at h
func SetRef(t *testing.T, s storer.ReferenceStorer, name string, h plumbing.Hash) {
	t.Helper()
	require.NoError(t, s.SetReference(plumbing.NewHashReference(plumbing.ReferenceName(name), h)))
}

// SetSymbolicRef points name at target
func SetSymbolicRef(t *testing.T, s storer.ReferenceStorer, name, target string) {
	t.Helper()
	require.NoError(t, s.SetReference(plumbing.NewSymbolicReference(plumbing.ReferenceName(name), plumbing.ReferenceName(target))))
}

// RefHash returns the hash name points at, or the zero hash when it is missing
func RefHash(t *testing.T, s storer.ReferenceStorer, name string) plumbing.Hash {
	t.Helper()

	ref, err := s.Reference(plumbing.ReferenceName(name))
	if err == plumbing.ErrReferenceNotFound {
		return plumbing.ZeroHash
	}
	require.NoError(t, err)
	return ref.Hash()
}

// Upstream is a source repository with master and dev branches
type Upstream struct {
	Storer storage.Storer
	Master plumbing.Hash
	Dev    plumbing.Hash
}

// NewUpstream seeds s with master and dev branches and a symbolic HEAD
func NewUpstream(t *testing.T, s storage.Storer) *Upstream {
	t.Helper()

	root := Commit(t, s, "root\n")
	dev := Commit(t, s, "dev work\n", root)
	SetRef(t, s, "refs/heads/master", root)
	SetRef(t, s, "refs/heads/dev", dev)
	SetSymbolicRef(t, s, "HEAD", "refs/heads/master")

	return &Upstream{Storer: s, Master: root, Dev: dev}
}

// Advance adds a commit on top of branch and moves the branch to it
func (u *Upstream) Advance(t *testing.T, branch, message string) plumbing.Hash {
	t.Helper()

	name := "refs/heads/" + branch
	h := Commit(t, u.Storer, message, RefHash(t, u.Storer, name))
	SetRef(t, u.Storer, name, h)
	switch branch {
	case "master":
		u.Master = h
	case "dev":
		u.Dev = h
	}
	return h
}
