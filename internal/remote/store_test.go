package remote

import (
	"io"
	"os"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind-br/remotefetch/internal/domain"
	"github.com/quantmind-br/remotefetch/tests/testutil"
)

const githubURL = "https://github.com/acme/widgets.git"

func newTestStore(t *testing.T) (*Store, billy.Filesystem, *memory.Storage) {
	t.Helper()
	fs := memfs.New()
	storage := memory.NewStorage()
	return NewStore(StoreOptions{Filesystem: fs, References: storage}), fs, storage
}

func readFile(t *testing.T, fs billy.Filesystem, name string) string {
	t.Helper()
	f, err := fs.Open(name)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func writeFile(t *testing.T, fs billy.Filesystem, name, content string) {
	t.Helper()
	f, err := fs.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestStore_Add(t *testing.T) {
	store, fs, _ := newTestStore(t)

	r, err := store.Add("upstream", githubURL)
	require.NoError(t, err)
	assert.Equal(t, "upstream", r.Name())
	assert.False(t, r.IsEphemeral())
	assert.Equal(t, []string{"+refs/heads/*:refs/remotes/upstream/*"}, r.FetchRefspecs())

	content := readFile(t, fs, "config")
	assert.Contains(t, content, `[remote "upstream"]`)
	assert.Contains(t, content, "url = "+githubURL)
	assert.Contains(t, content, "fetch = +refs/heads/*:refs/remotes/upstream/*")

	_, err = store.Add("upstream", githubURL)
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	_, err = store.Add("other", "")
	assert.ErrorIs(t, err, domain.ErrInvalidURL)

	_, err = store.Add("bad name", githubURL)
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestStore_Lookup(t *testing.T) {
	store, _, _ := newTestStore(t)
	_, err := store.Add("origin", githubURL)
	require.NoError(t, err)

	r, found, err := store.Lookup("origin")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, githubURL, r.URL())
	assert.Equal(t, domain.AutotagAuto, r.Autotag())

	r, found, err = store.Lookup("missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, r)
}

func TestStore_NamesAndAll(t *testing.T) {
	store, _, _ := newTestStore(t)

	names, err := store.Names()
	require.NoError(t, err)
	assert.Empty(t, names)

	for _, name := range []string{"zeta", "alpha", "origin"} {
		_, err := store.Add(name, githubURL)
		require.NoError(t, err)
	}

	names, err = store.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "origin", "zeta"}, names)

	var seen []string
	for r, err := range store.All() {
		require.NoError(t, err)
		seen = append(seen, r.Name())
		if r.Name() == "origin" {
			break
		}
	}
	assert.Equal(t, []string{"alpha", "origin"}, seen)
}

func TestStore_Save(t *testing.T) {
	store, fs, _ := newTestStore(t)
	r, err := store.Add("origin", githubURL)
	require.NoError(t, err)

	require.NoError(t, r.SetPushURL("ssh://git@github.com/acme/widgets.git"))
	require.NoError(t, r.AddFetchRefspec("+refs/pull/*/head:refs/remotes/origin/pr/*"))
	require.NoError(t, r.AddPushRefspec("refs/heads/master:refs/heads/master"))
	r.SetAutotag(domain.AutotagNone)
	require.NoError(t, store.Save(r))

	loaded, found, err := store.Lookup("origin")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, r.PushURL(), loaded.PushURL())
	assert.Equal(t, r.FetchRefspecs(), loaded.FetchRefspecs())
	assert.Equal(t, r.PushRefspecs(), loaded.PushRefspecs())
	assert.Equal(t, domain.AutotagNone, loaded.Autotag())
	assert.Contains(t, readFile(t, fs, "config"), "tagopt = --no-tags")

	loaded.SetAutotag(domain.AutotagAll)
	require.NoError(t, store.Save(loaded))
	assert.Contains(t, readFile(t, fs, "config"), "tagopt = --tags")

	ephemeral, err := New(githubURL)
	require.NoError(t, err)
	assert.ErrorIs(t, store.Save(ephemeral), domain.ErrNotPersistable)
}

func TestStore_PreservesUnrelatedConfig(t *testing.T) {
	store, fs, _ := newTestStore(t)
	writeFile(t, fs, "config", `[core]
	bare = false
[remote "origin"]
	url = https://example.com/a.git
	fetch = +refs/heads/*:refs/remotes/origin/*
	prune = true
`)

	r, found, err := store.Lookup("origin")
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, r.SetURL(githubURL))
	require.NoError(t, store.Save(r))

	content := readFile(t, fs, "config")
	assert.Contains(t, content, "bare = false")
	assert.Contains(t, content, "prune = true")
	assert.Contains(t, content, "url = "+githubURL)
	assert.NotContains(t, content, "example.com")
}

func TestStore_WriteFailsWhenLocked(t *testing.T) {
	store, fs, _ := newTestStore(t)
	writeFile(t, fs, "config.lock", "")

	_, err := store.Add("origin", githubURL)
	assert.ErrorIs(t, err, ErrConfigLocked)

	_, err = fs.Stat("config")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_Rename(t *testing.T) {
	store, fs, storage := newTestStore(t)
	r, err := store.Add("origin", githubURL)
	require.NoError(t, err)
	require.NoError(t, r.AddFetchRefspec("+refs/heads/*:refs/heads/*"))
	require.NoError(t, store.Save(r))

	h := plumbing.NewHash("1111111111111111111111111111111111111111")
	require.NoError(t, storage.SetReference(plumbing.NewHashReference("refs/remotes/origin/master", h)))
	require.NoError(t, storage.SetReference(plumbing.NewSymbolicReference("refs/remotes/origin/HEAD", "refs/remotes/origin/master")))
	require.NoError(t, storage.SetReference(plumbing.NewHashReference("refs/remotes/origin-old/master", h)))

	writeFile(t, fs, "config", readFile(t, fs, "config")+"[branch \"master\"]\n\tremote = origin\n\tmerge = refs/heads/master\n")

	problems, err := store.Rename(r, "upstream")
	require.NoError(t, err)
	assert.Equal(t, []string{"+refs/heads/*:refs/heads/*"}, problems)
	assert.Equal(t, "upstream", r.Name())
	assert.Equal(t, []string{"+refs/heads/*:refs/remotes/upstream/*", "+refs/heads/*:refs/heads/*"}, r.FetchRefspecs())

	_, found, err := store.Lookup("origin")
	require.NoError(t, err)
	assert.False(t, found)
	loaded, found, err := store.Lookup("upstream")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, r.FetchRefspecs(), loaded.FetchRefspecs())
	assert.Contains(t, readFile(t, fs, "config"), "remote = upstream")

	moved, err := storage.Reference("refs/remotes/upstream/master")
	require.NoError(t, err)
	assert.Equal(t, h, moved.Hash())
	head, err := storage.Reference("refs/remotes/upstream/HEAD")
	require.NoError(t, err)
	assert.Equal(t, plumbing.ReferenceName("refs/remotes/upstream/master"), head.Target())
	_, err = storage.Reference("refs/remotes/origin/master")
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
	_, err = storage.Reference("refs/remotes/origin-old/master")
	assert.NoError(t, err)
}

func TestStore_RenameFullSuccessReturnsEmpty(t *testing.T) {
	store, _, _ := newTestStore(t)
	r, err := store.Add("origin", githubURL)
	require.NoError(t, err)

	problems, err := store.Rename(r, "upstream")
	require.NoError(t, err)
	assert.NotNil(t, problems)
	assert.Empty(t, problems)
}

func TestStore_RenameErrors(t *testing.T) {
	store, _, _ := newTestStore(t)
	r, err := store.Add("origin", githubURL)
	require.NoError(t, err)
	_, err = store.Add("upstream", githubURL)
	require.NoError(t, err)

	_, err = store.Rename(r, "upstream")
	assert.ErrorIs(t, err, domain.ErrDuplicateName)
	assert.Equal(t, "origin", r.Name())

	_, err = store.Rename(r, "")
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	ephemeral, err := New(githubURL)
	require.NoError(t, err)
	_, err = store.Rename(ephemeral, "other")
	assert.ErrorIs(t, err, domain.ErrNotPersistable)
}

func TestStore_Remove(t *testing.T) {
	store, fs, storage := newTestStore(t)
	_, err := store.Add("origin", githubURL)
	require.NoError(t, err)
	_, err = store.Add("keep", githubURL)
	require.NoError(t, err)

	h := plumbing.NewHash("1111111111111111111111111111111111111111")
	require.NoError(t, storage.SetReference(plumbing.NewHashReference("refs/remotes/origin/master", h)))
	require.NoError(t, storage.SetReference(plumbing.NewHashReference("refs/remotes/keep/master", h)))

	require.NoError(t, store.Remove("origin"))

	names, err := store.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, names)
	assert.NotContains(t, readFile(t, fs, "config"), `"origin"`)

	_, err = storage.Reference("refs/remotes/origin/master")
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
	_, err = storage.Reference("refs/remotes/keep/master")
	assert.NoError(t, err)

	assert.ErrorIs(t, store.Remove("origin"), domain.ErrNotFound)
}

func TestStore_RemoveLogsMalformedRefspecs(t *testing.T) {
	fs := memfs.New()
	storage := memory.NewStorage()
	logger, buf := testutil.NewBufferLogger(t)
	store := NewStore(StoreOptions{Filesystem: fs, References: storage, Logger: logger})

	writeFile(t, fs, "config", `[remote "origin"]
	url = `+githubURL+`
	fetch = a:b:c
	fetch = +refs/heads/*:refs/remotes/mirror/*
`)
	h := plumbing.NewHash("1111111111111111111111111111111111111111")
	require.NoError(t, storage.SetReference(plumbing.NewHashReference("refs/remotes/mirror/master", h)))
	require.NoError(t, storage.SetReference(plumbing.NewHashReference("refs/remotes/origin/master", h)))

	require.NoError(t, store.Remove("origin"))

	_, err := storage.Reference("refs/remotes/mirror/master")
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound, "valid specs still drive cleanup")
	_, err = storage.Reference("refs/remotes/origin/master")
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)

	assert.Contains(t, buf.String(), "Ignoring malformed fetch refspec")
	assert.Contains(t, buf.String(), "a:b:c")
}
