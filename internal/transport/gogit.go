package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/storage"

	"github.com/quantmind-br/remotefetch/internal/domain"
	"github.com/quantmind-br/remotefetch/internal/refspec"
	"github.com/quantmind-br/remotefetch/internal/utils"
)

// DefaultMaxAuthRounds bounds credential challenges within one Connect
const DefaultMaxAuthRounds = 3

var (
	// ErrNotConnected is returned by operations that need an open session
	ErrNotConnected = errors.New("transport not connected")
	// ErrPushUnsupported is returned when connecting for push
	ErrPushUnsupported = errors.New("push is not supported")
)

// GoGit implements domain.Transport on top of go-git's transport clients.
// One instance serves a single fetch and is not safe for concurrent use.
type GoGit struct {
	url           string
	endpoint      *transport.Endpoint
	client        transport.Transport
	storer        storage.Storer
	auth          domain.Authenticator
	maxAuthRounds int
	retrier       *Retrier
	logger        *utils.Logger

	session transport.UploadPackSession
	advRefs *packp.AdvRefs
	heads   []domain.RemoteHead
}

// Options contains options for creating a GoGit transport
type Options struct {
	// Client overrides the protocol client picked from the URL
	Client        transport.Transport
	Storer        storage.Storer
	Authenticator domain.Authenticator
	MaxAuthRounds int
	Retrier       *Retrier
	Logger        *utils.Logger
}

// New creates a transport for url. No I/O happens until Connect.
func New(url string, opts Options) (*GoGit, error) {
	if opts.Storer == nil {
		return nil, errors.New("transport: storer is required")
	}
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", domain.ErrInvalidURL, url, err)
	}

	c := opts.Client
	if c == nil {
		c, err = client.NewClient(ep)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", domain.ErrInvalidURL, url, err)
		}
	}

	maxRounds := opts.MaxAuthRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxAuthRounds
	}
	retrier := opts.Retrier
	if retrier == nil {
		retrier = NewRetrier(DefaultRetrierOptions())
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	return &GoGit{
		url:           url,
		endpoint:      ep,
		client:        c,
		storer:        opts.Storer,
		auth:          opts.Authenticator,
		maxAuthRounds: maxRounds,
		retrier:       retrier,
		logger:        logger.WithComponent("transport").WithURL(url),
	}, nil
}

// Factory returns a domain.TransportFactory that builds GoGit transports
// from base, overriding the storer and authenticator per session
func Factory(base Options) domain.TransportFactory {
	return func(url string, opts domain.TransportOptions) (domain.Transport, error) {
		o := base
		o.Storer = opts.Storer
		o.Authenticator = opts.Authenticator
		return New(url, o)
	}
}

// Connect opens an upload-pack session and reads the advertised refs.
// Transient failures are retried; authentication failures start a new
// credential round until MaxAuthRounds is reached.
func (g *GoGit) Connect(ctx context.Context, dir domain.Direction) error {
	if dir != domain.DirectionFetch {
		return domain.NewTransportError("connect", g.url, ErrPushUnsupported)
	}
	if g.session != nil {
		return nil
	}

	var auth transport.AuthMethod
	round := 0
	if g.auth != nil && challengesUpfront(g.endpoint.Protocol) {
		round++
		var err error
		if auth, err = g.authenticate(ctx, round); err != nil {
			return err
		}
	}

	for {
		err := g.retrier.Retry(ctx, func() error {
			return g.open(ctx, auth)
		})
		if err == nil {
			break
		}
		if !isAuthFailure(err) || g.auth == nil || allowedKinds(g.endpoint.Protocol) == nil {
			return domain.NewTransportError("connect", g.url, err)
		}
		if round >= g.maxAuthRounds {
			return domain.NewTransportError("connect", g.url, fmt.Errorf("%w after %d credential round(s)", err, round))
		}

		round++
		g.logger.Debug().Err(err).Int("round", round).Msg("Remote asked for credentials")
		if auth, err = g.authenticate(ctx, round); err != nil {
			return err
		}
	}

	g.logger.Debug().Int("refs", len(g.advRefs.References)).Int("auth_rounds", round).Msg("Connected")
	return nil
}

func (g *GoGit) authenticate(ctx context.Context, round int) (transport.AuthMethod, error) {
	return g.auth.Authenticate(ctx, newChallenge(g.url, g.endpoint, round))
}

func (g *GoGit) open(ctx context.Context, auth transport.AuthMethod) error {
	session, err := g.client.NewUploadPackSession(g.endpoint, auth)
	if err != nil {
		return err
	}
	adv, err := session.AdvertisedReferencesContext(ctx)
	if err != nil {
		_ = session.Close()
		return err
	}
	g.session = session
	g.advRefs = adv
	g.heads = nil
	return nil
}

// ListHeads returns the advertised refs. HEAD comes first, the rest sorted
// by name, with the peeled value of an annotated tag right after the tag.
func (g *GoGit) ListHeads(ctx context.Context) ([]domain.RemoteHead, error) {
	if g.session == nil {
		return nil, domain.NewTransportError("ls", g.url, ErrNotConnected)
	}
	if g.heads != nil {
		return g.heads, nil
	}

	refs, err := g.advRefs.AllReferences()
	if err != nil {
		return nil, domain.NewTransportError("ls", g.url, err)
	}

	names := make([]plumbing.ReferenceName, 0, len(refs))
	for name := range refs {
		if name != plumbing.HEAD {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	if _, ok := refs[plumbing.HEAD]; ok {
		names = append([]plumbing.ReferenceName{plumbing.HEAD}, names...)
	}

	heads := make([]domain.RemoteHead, 0, len(names))
	for _, name := range names {
		ref := refs[name]
		head := domain.RemoteHead{Name: name, OID: ref.Hash()}
		if ref.Type() == plumbing.SymbolicReference {
			head.SymrefTarget = ref.Target()
			if target, ok := refs[ref.Target()]; ok {
				head.OID = target.Hash()
			} else if g.advRefs.Head != nil {
				head.OID = *g.advRefs.Head
			}
		}
		heads = append(heads, g.describe(head))

		if peeled, ok := g.advRefs.Peeled[name.String()]; ok {
			heads = append(heads, g.describe(domain.RemoteHead{Name: refspec.PeeledName(name), OID: peeled}))
		}
	}

	g.heads = heads
	return heads, nil
}

// describe fills in what the local repository knows about head
func (g *GoGit) describe(head domain.RemoteHead) domain.RemoteHead {
	head.IsLocal = g.hasObject(head.OID)
	if ref, err := g.storer.Reference(head.Name); err == nil && ref.Type() == plumbing.HashReference {
		head.LocalOID = ref.Hash()
	}
	return head
}

func (g *GoGit) hasObject(h plumbing.Hash) bool {
	return !h.IsZero() && g.storer.HasEncodedObject(h) == nil
}

// Disconnect closes the session. It is safe to call more than once.
func (g *GoGit) Disconnect() error {
	if g.session == nil {
		return nil
	}
	err := g.session.Close()
	g.session = nil
	g.advRefs = nil
	g.heads = nil
	if err != nil {
		return domain.NewTransportError("disconnect", g.url, err)
	}
	g.logger.Debug().Msg("Disconnected")
	return nil
}
