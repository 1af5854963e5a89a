package remote

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/client"

	"github.com/quantmind-br/remotefetch/internal/domain"
	"github.com/quantmind-br/remotefetch/internal/refspec"
)

// Remote is the identity and configuration of one remote endpoint.
// A Remote without a name is ephemeral and cannot be saved or renamed.
type Remote struct {
	name      string
	url       string
	pushURL   string
	fetch     []string
	push      []string
	autotag   domain.AutotagPolicy
	persisted bool
}

// New returns an ephemeral remote for url
func New(url string) (*Remote, error) {
	if !ValidURL(url) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidURL, url)
	}
	return &Remote{url: url, autotag: domain.AutotagAuto}, nil
}

// ValidURL reports whether a transport understands url. Local paths must
// name an existing directory; file:// URLs are accepted as given.
func ValidURL(url string) bool {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(url) != url {
		return false
	}

	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return false
	}
	if _, ok := client.Protocols[ep.Protocol]; !ok {
		return false
	}

	if ep.Protocol == "file" {
		if strings.HasPrefix(url, "file://") {
			return ep.Path != ""
		}
		info, err := os.Stat(url)
		return err == nil && info.IsDir()
	}
	return ep.Host != ""
}

// Name returns the remote name, empty for ephemeral remotes
func (r *Remote) Name() string { return r.name }

// URL returns the fetch URL
func (r *Remote) URL() string { return r.url }

// PushURL returns the push URL, empty when pushes use URL
func (r *Remote) PushURL() string { return r.pushURL }

// Autotag returns the tag-following policy
func (r *Remote) Autotag() domain.AutotagPolicy { return r.autotag }

// IsEphemeral reports whether the remote is bound to persisted config
func (r *Remote) IsEphemeral() bool { return !r.persisted }

// FetchRefspecs returns a copy of the configured fetch refspecs
func (r *Remote) FetchRefspecs() []string {
	return append([]string{}, r.fetch...)
}

// PushRefspecs returns a copy of the configured push refspecs
func (r *Remote) PushRefspecs() []string {
	return append([]string{}, r.push...)
}

// SetURL changes the URL in memory only. Live connections are unaffected.
func (r *Remote) SetURL(url string) error {
	if !ValidURL(url) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidURL, url)
	}
	r.url = url
	return nil
}

// SetPushURL changes the push URL in memory only. An empty url clears it.
func (r *Remote) SetPushURL(url string) error {
	if url != "" && !ValidURL(url) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidURL, url)
	}
	r.pushURL = url
	return nil
}

// SetAutotag changes the tag-following policy in memory only
func (r *Remote) SetAutotag(policy domain.AutotagPolicy) {
	r.autotag = policy
}

// AddFetchRefspec appends a fetch refspec after validating it
func (r *Remote) AddFetchRefspec(spec string) error {
	if _, err := refspec.Parse(spec, domain.DirectionFetch); err != nil {
		return err
	}
	r.fetch = append(r.fetch, spec)
	return nil
}

// AddPushRefspec appends a push refspec after validating it
func (r *Remote) AddPushRefspec(spec string) error {
	if _, err := refspec.Parse(spec, domain.DirectionPush); err != nil {
		return err
	}
	r.push = append(r.push, spec)
	return nil
}

// ClearRefspecs removes all fetch and push refspecs
func (r *Remote) ClearRefspecs() {
	r.fetch = nil
	r.push = nil
}

// Clone returns an independent copy of the remote
func (r *Remote) Clone() *Remote {
	c := *r
	c.fetch = r.FetchRefspecs()
	c.push = r.PushRefspecs()
	return &c
}

func (r *Remote) String() string {
	if r.name == "" {
		return r.url
	}
	return fmt.Sprintf("%s (%s)", r.name, r.url)
}

// ValidName reports whether name can be used as a remote name in config
// and in refs/remotes/<name>/
func ValidName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", domain.ErrInvalidName)
	case strings.HasPrefix(name, ".") || strings.HasPrefix(name, "-"):
		return fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	case strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/"):
		return fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	case strings.ContainsAny(name, "\"\n*:"):
		return fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	}
	if _, err := refspec.Parse(refspec.DefaultFetch(name), domain.DirectionFetch); err != nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	}
	return nil
}
