package repository

import (
	"errors"
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/quantmind-br/remotefetch/internal/domain"
	gitclient "github.com/quantmind-br/remotefetch/internal/git"
	"github.com/quantmind-br/remotefetch/internal/refspec"
	"github.com/quantmind-br/remotefetch/internal/remote"
	"github.com/quantmind-br/remotefetch/internal/utils"
)

// ErrNoConfigFilesystem is returned when the storer does not expose the git directory
var ErrNoConfigFilesystem = errors.New("repository storage has no git directory")

// Repository binds a go-git object store to the remote config store kept in
// the same git directory
type Repository struct {
	repo    *git.Repository
	storer  storage.Storer
	remotes *remote.Store
	path    string
}

// Options contains options for opening or creating a Repository
type Options struct {
	// Client defaults to the real go-git client
	Client gitclient.Client
	// Bare applies to Init only
	Bare   bool
	Logger *utils.Logger
}

// Open opens the repository containing path, searching parent directories
func Open(path string, opts Options) (*Repository, error) {
	c := client(opts)
	repo, err := c.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return fromGit(repo, path, opts.Logger)
}

// Init creates a repository at path
func Init(path string, opts Options) (*Repository, error) {
	c := client(opts)
	repo, err := c.PlainInit(path, opts.Bare)
	if err != nil {
		return nil, fmt.Errorf("init repository %s: %w", path, err)
	}
	return fromGit(repo, path, opts.Logger)
}

// NewMemory creates an in-memory repository whose config lives in fs.
// A nil fs gets a fresh in-memory filesystem.
func NewMemory(fs billy.Filesystem, logger *utils.Logger) (*Repository, error) {
	s := memory.NewStorage()
	repo, err := git.Init(s, nil)
	if err != nil {
		return nil, fmt.Errorf("init memory repository: %w", err)
	}
	if fs == nil {
		fs = memfs.New()
	}
	return &Repository{
		repo:    repo,
		storer:  s,
		remotes: remote.NewStore(remote.StoreOptions{Filesystem: fs, References: s, Logger: logger}),
	}, nil
}

func client(opts Options) gitclient.Client {
	if opts.Client != nil {
		return opts.Client
	}
	return gitclient.NewClient()
}

func fromGit(repo *git.Repository, path string, logger *utils.Logger) (*Repository, error) {
	fsStorage, ok := repo.Storer.(*filesystem.Storage)
	if !ok {
		return nil, ErrNoConfigFilesystem
	}
	return &Repository{
		repo:   repo,
		storer: repo.Storer,
		remotes: remote.NewStore(remote.StoreOptions{
			Filesystem: fsStorage.Filesystem(),
			References: repo.Storer,
			Logger:     logger,
		}),
		path: path,
	}, nil
}

// Git returns the underlying go-git repository
func (r *Repository) Git() *git.Repository { return r.repo }

// Storer returns the object and reference store fetches write into
func (r *Repository) Storer() storage.Storer { return r.storer }

// Remotes returns the remote config store
func (r *Repository) Remotes() *remote.Store { return r.remotes }

// Path returns the path the repository was opened from, empty in memory
func (r *Repository) Path() string { return r.path }

// References returns a snapshot of every hash reference
func (r *Repository) References() (refspec.LocalRefs, error) {
	refs, err := r.storer.IterReferences()
	if err != nil {
		return nil, err
	}
	defer refs.Close()

	local := refspec.LocalRefs{}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() == plumbing.HashReference {
			local[ref.Name()] = ref.Hash()
		}
		return nil
	})
	return local, err
}

// HasObject reports whether h is stored locally
func (r *Repository) HasObject(h plumbing.Hash) bool {
	return !h.IsZero() && r.storer.HasEncodedObject(h) == nil
}

// ResolveRemote returns the named remote, or an ephemeral remote when
// nameOrURL is not a configured name but a valid URL
func (r *Repository) ResolveRemote(nameOrURL string) (*remote.Remote, error) {
	rem, found, err := r.remotes.Lookup(nameOrURL)
	if err != nil {
		return nil, err
	}
	if found {
		return rem, nil
	}
	if !remote.ValidURL(nameOrURL) {
		return nil, fmt.Errorf("remote %q: %w", nameOrURL, domain.ErrNotFound)
	}
	return remote.New(nameOrURL)
}
