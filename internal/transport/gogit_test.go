package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind-br/remotefetch/internal/domain"
	"github.com/quantmind-br/remotefetch/internal/refspec"
	"github.com/quantmind-br/remotefetch/tests/testutil"
)

const upstreamURL = "git://example.com/upstream.git"

var originSpec = config.RefSpec("refs/heads/*:refs/remotes/origin/*")

type recordingSink struct {
	lines   []string
	stats   []domain.TransferStats
	failAt  int
	failErr error
}

func (s *recordingSink) Write(p []byte) (int, error) {
	s.lines = append(s.lines, string(p))
	return len(p), nil
}

func (s *recordingSink) Transfer(stats domain.TransferStats) error {
	s.stats = append(s.stats, stats)
	if s.failAt > 0 && len(s.stats) >= s.failAt {
		return s.failErr
	}
	return nil
}

type authFunc func(ctx context.Context, ch domain.Challenge) (transport.AuthMethod, error)

func (f authFunc) Authenticate(ctx context.Context, ch domain.Challenge) (transport.AuthMethod, error) {
	return f(ctx, ch)
}

// gatedClient wraps a transport and fails session creation through fail
type gatedClient struct {
	transport.Transport
	attempts []transport.AuthMethod
	fail     func(attempt int, auth transport.AuthMethod) error
}

func (c *gatedClient) NewUploadPackSession(ep *transport.Endpoint, auth transport.AuthMethod) (transport.UploadPackSession, error) {
	c.attempts = append(c.attempts, auth)
	if err := c.fail(len(c.attempts), auth); err != nil {
		return nil, err
	}
	return c.Transport.NewUploadPackSession(ep, auth)
}

func fastRetrier() *Retrier {
	return NewRetrier(RetrierOptions{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond})
}

func serverClient(t *testing.T, url string, up *testutil.Upstream) transport.Transport {
	t.Helper()
	ep, err := transport.NewEndpoint(url)
	require.NoError(t, err)
	return server.NewClient(server.MapLoader{ep.String(): up.Storer})
}

func newTransport(t *testing.T, url string, c transport.Transport, local *memory.Storage, auth domain.Authenticator) *GoGit {
	t.Helper()
	g, err := New(url, Options{
		Client:        c,
		Storer:        local,
		Authenticator: auth,
		Retrier:       fastRetrier(),
		Logger:        testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return g
}

func TestNew_Validation(t *testing.T) {
	_, err := New(upstreamURL, Options{})
	assert.Error(t, err)

	_, err = New("ftp://example.com/x", Options{Storer: memory.NewStorage()})
	assert.ErrorIs(t, err, domain.ErrInvalidURL)
}

func TestGoGit_ListHeads(t *testing.T) {
	up := testutil.NewUpstream(t, memory.NewStorage())
	local := memory.NewStorage()
	testutil.Commit(t, local, "root\n")
	testutil.SetRef(t, local, "refs/heads/master", up.Master)

	g := newTransport(t, upstreamURL, serverClient(t, upstreamURL, up), local, nil)
	ctx := context.Background()

	_, err := g.ListHeads(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, g.Connect(ctx, domain.DirectionFetch))
	defer g.Disconnect()

	heads, err := g.ListHeads(ctx)
	require.NoError(t, err)
	require.Len(t, heads, 3)

	assert.Equal(t, plumbing.HEAD, heads[0].Name)
	assert.Equal(t, plumbing.ReferenceName("refs/heads/master"), heads[0].SymrefTarget)
	assert.Equal(t, up.Master, heads[0].OID)

	assert.Equal(t, plumbing.ReferenceName("refs/heads/dev"), heads[1].Name)
	assert.Equal(t, up.Dev, heads[1].OID)
	assert.False(t, heads[1].IsLocal)
	assert.False(t, heads[1].HasLocalOID())

	assert.Equal(t, plumbing.ReferenceName("refs/heads/master"), heads[2].Name)
	assert.True(t, heads[2].IsLocal)
	assert.Equal(t, up.Master, heads[2].LocalOID)
}

func TestGoGit_ListHeadsReportsPeeledTags(t *testing.T) {
	commit := plumbing.NewHash("1111111111111111111111111111111111111111")
	tag := plumbing.NewHash("2222222222222222222222222222222222222222")

	adv := packp.NewAdvRefs()
	adv.References["refs/heads/master"] = commit
	adv.References["refs/tags/v1"] = tag
	adv.Peeled["refs/tags/v1"] = commit

	g := newTransport(t, upstreamURL, &stubClient{adv: adv}, memory.NewStorage(), nil)
	require.NoError(t, g.Connect(context.Background(), domain.DirectionFetch))

	heads, err := g.ListHeads(context.Background())
	require.NoError(t, err)

	var names []plumbing.ReferenceName
	for _, h := range heads {
		names = append(names, h.Name)
	}
	assert.Equal(t, []plumbing.ReferenceName{"refs/heads/master", "refs/tags/v1", "refs/tags/v1^{}"}, names)
	assert.Equal(t, commit, heads[2].OID)
}

func TestGoGit_FetchPack(t *testing.T) {
	up := testutil.NewUpstream(t, memory.NewStorage())
	local := memory.NewStorage()
	c := serverClient(t, upstreamURL, up)
	ctx := context.Background()

	g := newTransport(t, upstreamURL, c, local, nil)
	require.NoError(t, g.Connect(ctx, domain.DirectionFetch))

	sink := &recordingSink{}
	updates, err := g.FetchPack(ctx, domain.FetchRequest{
		Refspecs: []config.RefSpec{originSpec},
		Autotag:  domain.AutotagNone,
	}, sink)
	require.NoError(t, err)
	require.NoError(t, g.Disconnect())

	assert.ElementsMatch(t, []domain.TipUpdate{
		{RefName: "refs/remotes/origin/master", New: up.Master},
		{RefName: "refs/remotes/origin/dev", New: up.Dev},
	}, updates)
	assert.NoError(t, local.HasEncodedObject(up.Master))
	assert.NoError(t, local.HasEncodedObject(up.Dev))

	require.NotEmpty(t, sink.stats)
	for i := 1; i < len(sink.stats); i++ {
		assert.True(t, sink.stats[i].Covers(sink.stats[i-1]), "snapshot %d regressed", i)
	}
	final := sink.stats[len(sink.stats)-1]
	assert.Equal(t, final.TotalObjects, final.ReceivedObjects)
	assert.Equal(t, final.TotalObjects, final.IndexedObjects)
	assert.Greater(t, final.ReceivedBytes, uint64(0))

	for _, u := range updates {
		testutil.SetRef(t, local, u.RefName.String(), u.New)
	}
	oldDev := up.Dev
	z := up.Advance(t, "dev", "more dev work\n")

	g = newTransport(t, upstreamURL, c, local, nil)
	require.NoError(t, g.Connect(ctx, domain.DirectionFetch))
	defer g.Disconnect()

	updates, err = g.FetchPack(ctx, domain.FetchRequest{Refspecs: []config.RefSpec{originSpec}, Autotag: domain.AutotagNone}, nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.TipUpdate{{RefName: "refs/remotes/origin/dev", Old: oldDev, New: z}}, updates)
	assert.NoError(t, local.HasEncodedObject(z))
}

func TestGoGit_FetchPackSkipsDownloadWhenObjectsAreLocal(t *testing.T) {
	commit := plumbing.NewHash("1111111111111111111111111111111111111111")
	adv := packp.NewAdvRefs()
	adv.References["refs/heads/master"] = commit

	local := memory.NewStorage()
	testutil.SetRef(t, local, "refs/remotes/origin/master", commit)
	testutil.SetRef(t, local, "refs/remotes/origin/gone", commit)

	stub := &stubClient{adv: adv}
	g := newTransport(t, upstreamURL, stub, local, nil)
	require.NoError(t, g.Connect(context.Background(), domain.DirectionFetch))

	updates, err := g.FetchPack(context.Background(), domain.FetchRequest{
		Refspecs: []config.RefSpec{originSpec},
		Autotag:  domain.AutotagNone,
		Prune:    true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.TipUpdate{{RefName: "refs/remotes/origin/gone", Old: commit, Force: true}}, updates)
	assert.Zero(t, stub.uploads)
}

func TestGoGit_FetchPackAutotag(t *testing.T) {
	up := testutil.NewUpstream(t, memory.NewStorage())
	testutil.SetRef(t, up.Storer, "refs/tags/v1", up.Dev)
	local := memory.NewStorage()

	g := newTransport(t, upstreamURL, serverClient(t, upstreamURL, up), local, nil)
	require.NoError(t, g.Connect(context.Background(), domain.DirectionFetch))
	defer g.Disconnect()

	updates, err := g.FetchPack(context.Background(), domain.FetchRequest{
		Refspecs: []config.RefSpec{"refs/heads/dev:refs/remotes/origin/dev"},
		Autotag:  domain.AutotagAuto,
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, updates, domain.TipUpdate{RefName: "refs/tags/v1", New: up.Dev})
}

func TestGoGit_FetchPackAnnotatedTag(t *testing.T) {
	up := testutil.NewUpstream(t, memory.NewStorage())
	tag := testutil.AnnotatedTag(t, up.Storer, "v2", up.Master)
	testutil.SetRef(t, up.Storer, "refs/tags/v2", tag)
	local := memory.NewStorage()

	g := newTransport(t, upstreamURL, serverClient(t, upstreamURL, up), local, nil)
	require.NoError(t, g.Connect(context.Background(), domain.DirectionFetch))
	defer g.Disconnect()

	updates, err := g.FetchPack(context.Background(), domain.FetchRequest{
		Refspecs: []config.RefSpec{"refs/heads/master:refs/remotes/origin/master"},
		Autotag:  domain.AutotagAll,
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, updates, domain.TipUpdate{RefName: "refs/tags/v2", New: tag})
	assert.NoError(t, local.HasEncodedObject(tag))
	assert.NoError(t, local.HasEncodedObject(up.Master))
}

func TestGoGit_FetchPackSourceOnly(t *testing.T) {
	up := testutil.NewUpstream(t, memory.NewStorage())
	local := memory.NewStorage()

	g := newTransport(t, upstreamURL, serverClient(t, upstreamURL, up), local, nil)
	require.NoError(t, g.Connect(context.Background(), domain.DirectionFetch))
	defer g.Disconnect()

	updates, err := g.FetchPack(context.Background(), domain.FetchRequest{
		Refspecs: []config.RefSpec{refspec.MustParse("dev", domain.DirectionFetch).Native()},
		Autotag:  domain.AutotagNone,
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, updates)
	assert.NoError(t, local.HasEncodedObject(up.Dev))

	refs, err := local.IterReferences()
	require.NoError(t, err)
	count := 0
	require.NoError(t, refs.ForEach(func(*plumbing.Reference) error {
		count++
		return nil
	}))
	assert.Zero(t, count, "no local ref is written")
}

func TestGoGit_FetchPackCallbackAbort(t *testing.T) {
	up := testutil.NewUpstream(t, memory.NewStorage())
	g := newTransport(t, upstreamURL, serverClient(t, upstreamURL, up), memory.NewStorage(), nil)
	require.NoError(t, g.Connect(context.Background(), domain.DirectionFetch))
	defer g.Disconnect()

	stop := domain.NewCallbackError("transfer_progress", errors.New("stop"))
	sink := &recordingSink{failAt: 2, failErr: stop}
	_, err := g.FetchPack(context.Background(), domain.FetchRequest{Refspecs: []config.RefSpec{originSpec}}, sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCallbackAborted)
	assert.NotErrorIs(t, err, domain.ErrTransport)
}

func TestGoGit_FetchPackRequiresConnection(t *testing.T) {
	g := newTransport(t, upstreamURL, &stubClient{adv: packp.NewAdvRefs()}, memory.NewStorage(), nil)
	_, err := g.FetchPack(context.Background(), domain.FetchRequest{}, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestGoGit_ConnectPush(t *testing.T) {
	g := newTransport(t, upstreamURL, &stubClient{adv: packp.NewAdvRefs()}, memory.NewStorage(), nil)
	err := g.Connect(context.Background(), domain.DirectionPush)
	assert.ErrorIs(t, err, ErrPushUnsupported)
}

func TestGoGit_ConnectRepositoryNotFound(t *testing.T) {
	up := testutil.NewUpstream(t, memory.NewStorage())
	c := &gatedClient{
		Transport: serverClient(t, "git://example.com/other.git", up),
		fail:      func(int, transport.AuthMethod) error { return nil },
	}
	g := newTransport(t, upstreamURL, c, memory.NewStorage(), nil)

	err := g.Connect(context.Background(), domain.DirectionFetch)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.ErrorIs(t, err, transport.ErrRepositoryNotFound)
	assert.Len(t, c.attempts, 1)
}

func TestGoGit_ConnectRetriesTransientFailures(t *testing.T) {
	up := testutil.NewUpstream(t, memory.NewStorage())
	c := &gatedClient{
		Transport: serverClient(t, upstreamURL, up),
		fail: func(attempt int, _ transport.AuthMethod) error {
			if attempt < 3 {
				return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
			}
			return nil
		},
	}
	g := newTransport(t, upstreamURL, c, memory.NewStorage(), nil)

	require.NoError(t, g.Connect(context.Background(), domain.DirectionFetch))
	assert.Len(t, c.attempts, 3)
	require.NoError(t, g.Disconnect())
	require.NoError(t, g.Disconnect())
}

func TestGoGit_ConnectCredentialRounds(t *testing.T) {
	const url = "https://example.com/upstream.git"
	up := testutil.NewUpstream(t, memory.NewStorage())
	good := &githttp.BasicAuth{Username: "alice", Password: "right"}

	newGate := func() *gatedClient {
		return &gatedClient{
			Transport: serverClient(t, url, up),
			fail: func(_ int, auth transport.AuthMethod) error {
				if basic, ok := auth.(*githttp.BasicAuth); ok && *basic == *good {
					return nil
				}
				return transport.ErrAuthenticationRequired
			},
		}
	}

	t.Run("anonymous first then challenged until accepted", func(t *testing.T) {
		var challenges []domain.Challenge
		auth := authFunc(func(_ context.Context, ch domain.Challenge) (transport.AuthMethod, error) {
			challenges = append(challenges, ch)
			if ch.Round == 1 {
				return &githttp.BasicAuth{Username: "alice", Password: "wrong"}, nil
			}
			return good, nil
		})
		c := newGate()
		g := newTransport(t, url, c, memory.NewStorage(), auth)

		require.NoError(t, g.Connect(context.Background(), domain.DirectionFetch))
		defer g.Disconnect()

		assert.Len(t, c.attempts, 3)
		assert.Nil(t, c.attempts[0])
		require.Len(t, challenges, 2)
		assert.Equal(t, url, challenges[0].URL)
		assert.Equal(t, "https", challenges[0].Protocol)
		assert.ElementsMatch(t, []domain.CredentialKind{domain.CredentialPlaintext, domain.CredentialDefault}, challenges[0].Allowed)
		assert.Equal(t, 2, challenges[1].Round)
	})

	t.Run("rounds are bounded", func(t *testing.T) {
		auth := authFunc(func(context.Context, domain.Challenge) (transport.AuthMethod, error) {
			return &githttp.BasicAuth{Username: "alice", Password: "wrong"}, nil
		})
		c := newGate()
		g, err := New(url, Options{Client: c, Storer: memory.NewStorage(), Authenticator: auth, MaxAuthRounds: 2, Retrier: fastRetrier()})
		require.NoError(t, err)

		err = g.Connect(context.Background(), domain.DirectionFetch)
		assert.ErrorIs(t, err, transport.ErrAuthenticationRequired)
		assert.ErrorIs(t, err, domain.ErrTransport)
		assert.Len(t, c.attempts, 3)
	})

	t.Run("negotiation failure stops immediately", func(t *testing.T) {
		calls := 0
		auth := authFunc(func(context.Context, domain.Challenge) (transport.AuthMethod, error) {
			calls++
			return nil, domain.ErrCredentialNegotiationAborted
		})
		c := newGate()
		g := newTransport(t, url, c, memory.NewStorage(), auth)

		err := g.Connect(context.Background(), domain.DirectionFetch)
		assert.ErrorIs(t, err, domain.ErrCredentialNegotiationAborted)
		assert.Equal(t, 1, calls)
		assert.Len(t, c.attempts, 1)
	})

	t.Run("no authenticator fails on first challenge", func(t *testing.T) {
		c := newGate()
		g := newTransport(t, url, c, memory.NewStorage(), nil)

		err := g.Connect(context.Background(), domain.DirectionFetch)
		assert.ErrorIs(t, err, transport.ErrAuthenticationRequired)
		assert.Len(t, c.attempts, 1)
	})
}

func TestFactory(t *testing.T) {
	up := testutil.NewUpstream(t, memory.NewStorage())
	factory := Factory(Options{Client: serverClient(t, upstreamURL, up), Retrier: fastRetrier()})

	tr, err := factory(upstreamURL, domain.TransportOptions{Storer: memory.NewStorage()})
	require.NoError(t, err)
	require.NoError(t, tr.Connect(context.Background(), domain.DirectionFetch))
	heads, err := tr.ListHeads(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, heads)
	assert.NoError(t, tr.Disconnect())
}

// stubClient serves a fixed advertisement and counts pack requests
type stubClient struct {
	adv     *packp.AdvRefs
	uploads int
}

func (c *stubClient) NewUploadPackSession(*transport.Endpoint, transport.AuthMethod) (transport.UploadPackSession, error) {
	return &stubSession{client: c}, nil
}

func (c *stubClient) NewReceivePackSession(*transport.Endpoint, transport.AuthMethod) (transport.ReceivePackSession, error) {
	return nil, ErrPushUnsupported
}

type stubSession struct {
	client *stubClient
}

func (s *stubSession) AdvertisedReferences() (*packp.AdvRefs, error) {
	return s.client.adv, nil
}

func (s *stubSession) AdvertisedReferencesContext(context.Context) (*packp.AdvRefs, error) {
	return s.client.adv, nil
}

func (s *stubSession) UploadPack(context.Context, *packp.UploadPackRequest) (*packp.UploadPackResponse, error) {
	s.client.uploads++
	return nil, transport.ErrEmptyUploadPackRequest
}

func (s *stubSession) Close() error { return nil }
