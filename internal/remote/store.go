package remote

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing"
	format "github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/quantmind-br/remotefetch/internal/domain"
	"github.com/quantmind-br/remotefetch/internal/refspec"
	"github.com/quantmind-br/remotefetch/internal/utils"
)

const (
	remoteSection = "remote"
	branchSection = "branch"

	urlKey     = "url"
	pushURLKey = "pushurl"
	fetchKey   = "fetch"
	pushKey    = "push"
	tagOptKey  = "tagopt"
	remoteKey  = "remote"
	mergeKey   = "merge"

	remotesPrefix = "refs/remotes/"

	tagOptAll  = "--tags"
	tagOptNone = "--no-tags"

	// DefaultConfigPath is the config file name inside a git directory
	DefaultConfigPath = "config"
)

// ErrConfigLocked is returned when another writer holds the config lock
var ErrConfigLocked = errors.New("config file is locked")

// Store persists remotes in a git-config file and keeps their
// remote-tracking refs in step on rename and removal
type Store struct {
	fs     billy.Filesystem
	path   string
	refs   storer.ReferenceStorer
	logger *utils.Logger
}

// StoreOptions contains options for creating a Store
type StoreOptions struct {
	// Filesystem holds the config file, typically the git directory
	Filesystem billy.Filesystem
	// Path of the config file inside Filesystem, defaults to "config"
	Path string
	// References is where remote-tracking refs live
	References storer.ReferenceStorer
	Logger     *utils.Logger
}

// NewStore creates a new Store
func NewStore(opts StoreOptions) *Store {
	path := opts.Path
	if path == "" {
		path = DefaultConfigPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Store{
		fs:     opts.Filesystem,
		path:   path,
		refs:   opts.References,
		logger: logger.WithComponent("remote-store"),
	}
}

// Add persists a new remote with the default fetch refspec
func (s *Store) Add(name, url string) (*Remote, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	if !ValidURL(url) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidURL, url)
	}

	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	if cfg.Section(remoteSection).HasSubsection(name) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateName, name)
	}

	r := &Remote{
		name:      name,
		url:       url,
		fetch:     []string{refspec.DefaultFetch(name)},
		autotag:   domain.AutotagAuto,
		persisted: true,
	}
	writeRemote(cfg.Section(remoteSection).Subsection(name), r)

	if err := s.write(cfg); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("remote", name).Str("url", url).Msg("Added remote")
	return r, nil
}

// Lookup loads the named remote. Unknown names report found == false with
// a nil error; err is only set when the config cannot be read.
func (s *Store) Lookup(name string) (r *Remote, found bool, err error) {
	cfg, err := s.load()
	if err != nil {
		return nil, false, err
	}
	sec := cfg.Section(remoteSection)
	if !sec.HasSubsection(name) {
		return nil, false, nil
	}
	return readRemote(sec.Subsection(name)), true, nil
}

// Names returns the sorted names of all configured remotes
func (s *Store) Names() ([]string, error) {
	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	return subsectionNames(cfg.Section(remoteSection)), nil
}

// All lazily yields every configured remote in name order
func (s *Store) All() iter.Seq2[*Remote, error] {
	return func(yield func(*Remote, error) bool) {
		cfg, err := s.load()
		if err != nil {
			yield(nil, err)
			return
		}
		sec := cfg.Section(remoteSection)
		for _, name := range subsectionNames(sec) {
			if !yield(readRemote(sec.Subsection(name)), nil) {
				return
			}
		}
	}
}

// Save writes the remote's url, refspecs and tag policy back to config
func (s *Store) Save(r *Remote) error {
	if r.IsEphemeral() {
		return fmt.Errorf("%w: remote has no name", domain.ErrNotPersistable)
	}

	cfg, err := s.load()
	if err != nil {
		return err
	}
	writeRemote(cfg.Section(remoteSection).Subsection(r.name), r)
	return s.write(cfg)
}

// Rename renames a persisted remote, rewriting its fetch refspecs and moving
// its remote-tracking refs. It returns the fetch refspecs that could not be
// migrated and were kept verbatim; an empty slice means full success.
func (s *Store) Rename(r *Remote, newName string) ([]string, error) {
	if r.IsEphemeral() {
		return nil, fmt.Errorf("%w: cannot rename an ephemeral remote", domain.ErrNotPersistable)
	}
	if err := ValidName(newName); err != nil {
		return nil, err
	}

	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	sec := cfg.Section(remoteSection)
	if sec.HasSubsection(newName) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateName, newName)
	}
	if !sec.HasSubsection(r.name) {
		return nil, fmt.Errorf("remote %s: %w", r.name, domain.ErrNotFound)
	}

	oldName := r.name
	stored := readRemote(sec.Subsection(oldName))
	migrated, problems := refspec.MigrateForRename(stored.fetch, oldName, newName)

	sub := sec.Subsection(oldName)
	sub.Name = newName
	sub.RemoveOption(fetchKey)
	for _, spec := range migrated {
		sub.AddOption(fetchKey, spec)
	}
	for _, branch := range branches(cfg) {
		if branch.Option(remoteKey) == oldName {
			branch.SetOption(remoteKey, newName)
		}
	}

	if err := s.write(cfg); err != nil {
		return nil, err
	}
	if err := s.moveTrackingRefs(oldName, newName); err != nil {
		return nil, err
	}

	r.name = newName
	r.fetch = migrated
	s.logger.Info().
		Str("from", oldName).
		Str("to", newName).
		Int("unmigrated", len(problems)).
		Msg("Renamed remote")
	return problems, nil
}

// Remove deletes the remote's config and its remote-tracking refs
func (s *Store) Remove(name string) error {
	cfg, err := s.load()
	if err != nil {
		return err
	}
	sec := cfg.Section(remoteSection)
	if !sec.HasSubsection(name) {
		return fmt.Errorf("remote %s: %w", name, domain.ErrNotFound)
	}

	stored := readRemote(sec.Subsection(name))
	sec.RemoveSubsection(name)
	for _, branch := range branches(cfg) {
		if branch.Option(remoteKey) == name {
			branch.RemoveOption(remoteKey)
			branch.RemoveOption(mergeKey)
		}
	}
	if err := s.write(cfg); err != nil {
		return err
	}

	var specs []refspec.Refspec
	for _, raw := range stored.fetch {
		spec, err := refspec.Parse(raw, domain.DirectionFetch)
		if err != nil {
			s.logger.Warn().Err(err).Str("remote", name).Msg("Ignoring malformed fetch refspec while removing tracking refs")
			continue
		}
		specs = append(specs, spec)
	}
	return s.removeTrackingRefs(name, specs)
}

func (s *Store) load() (*format.Config, error) {
	cfg := format.New()

	f, err := s.fs.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	if err := format.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return cfg, nil
}

// write encodes cfg into a lock file and renames it over the config
func (s *Store) write(cfg *format.Config) (err error) {
	lock := s.path + ".lock"
	f, err := s.fs.OpenFile(lock, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s", ErrConfigLocked, lock)
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", lock, err)
	}
	defer func() {
		if err != nil {
			_ = s.fs.Remove(lock)
		}
	}()

	if err := format.NewEncoder(f).Encode(cfg); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", lock, err)
	}
	if err := s.fs.Rename(lock, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) moveTrackingRefs(oldName, newName string) error {
	if s.refs == nil {
		return nil
	}
	oldPrefix := refspec.RemoteTrackingPrefix(oldName)
	newPrefix := refspec.RemoteTrackingPrefix(newName)

	refs, err := s.collectRefs(oldPrefix)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		name := plumbing.ReferenceName(newPrefix + strings.TrimPrefix(ref.Name().String(), oldPrefix))
		var moved *plumbing.Reference
		if ref.Type() == plumbing.SymbolicReference {
			target := ref.Target().String()
			if strings.HasPrefix(target, oldPrefix) {
				target = newPrefix + strings.TrimPrefix(target, oldPrefix)
			}
			moved = plumbing.NewSymbolicReference(name, plumbing.ReferenceName(target))
		} else {
			moved = plumbing.NewHashReference(name, ref.Hash())
		}
		if err := s.refs.SetReference(moved); err != nil {
			return fmt.Errorf("move %s: %w", ref.Name(), err)
		}
		if err := s.refs.RemoveReference(ref.Name()); err != nil {
			return fmt.Errorf("move %s: %w", ref.Name(), err)
		}
	}
	return nil
}

func (s *Store) removeTrackingRefs(name string, specs []refspec.Refspec) error {
	if s.refs == nil {
		return nil
	}
	prefix := refspec.RemoteTrackingPrefix(name)
	refs, err := s.collectRefs("refs/")
	if err != nil {
		return err
	}
	for _, ref := range refs {
		drop := strings.HasPrefix(ref.Name().String(), prefix)
		for _, spec := range specs {
			if !strings.HasPrefix(spec.Destination(), remotesPrefix) {
				continue
			}
			if _, ok := spec.MatchDestination(ref.Name()); ok {
				drop = true
			}
		}
		if !drop {
			continue
		}
		if err := s.refs.RemoveReference(ref.Name()); err != nil {
			return fmt.Errorf("remove %s: %w", ref.Name(), err)
		}
	}
	return nil
}

func (s *Store) collectRefs(prefix string) ([]*plumbing.Reference, error) {
	refIter, err := s.refs.IterReferences()
	if err != nil {
		return nil, err
	}
	defer refIter.Close()

	var refs []*plumbing.Reference
	err = refIter.ForEach(func(ref *plumbing.Reference) error {
		if strings.HasPrefix(ref.Name().String(), prefix) {
			refs = append(refs, ref)
		}
		return nil
	})
	return refs, err
}

func readRemote(sub *format.Subsection) *Remote {
	r := &Remote{
		name:      sub.Name,
		url:       sub.Option(urlKey),
		pushURL:   sub.Option(pushURLKey),
		fetch:     sub.Options.GetAll(fetchKey),
		push:      sub.Options.GetAll(pushKey),
		autotag:   domain.AutotagAuto,
		persisted: true,
	}
	switch sub.Option(tagOptKey) {
	case tagOptAll:
		r.autotag = domain.AutotagAll
	case tagOptNone:
		r.autotag = domain.AutotagNone
	}
	return r
}

// writeRemote replaces the keys this package owns and keeps any other option
func writeRemote(sub *format.Subsection, r *Remote) {
	for _, key := range []string{urlKey, pushURLKey, fetchKey, pushKey, tagOptKey} {
		sub.RemoveOption(key)
	}

	sub.AddOption(urlKey, r.url)
	if r.pushURL != "" {
		sub.AddOption(pushURLKey, r.pushURL)
	}
	for _, spec := range r.fetch {
		sub.AddOption(fetchKey, spec)
	}
	for _, spec := range r.push {
		sub.AddOption(pushKey, spec)
	}
	switch r.autotag {
	case domain.AutotagAll:
		sub.AddOption(tagOptKey, tagOptAll)
	case domain.AutotagNone:
		sub.AddOption(tagOptKey, tagOptNone)
	}
}

func branches(cfg *format.Config) format.Subsections {
	if !cfg.HasSection(branchSection) {
		return nil
	}
	return cfg.Section(branchSection).Subsections
}

func subsectionNames(sec *format.Section) []string {
	names := make([]string, 0, len(sec.Subsections))
	for _, sub := range sec.Subsections {
		names = append(names, sub.Name)
	}
	sort.Strings(names)
	return names
}
