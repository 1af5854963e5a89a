package fetch

import (
	"context"
	"fmt"
	"testing"
	"time"

	gogittransport "github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind-br/remotefetch/internal/domain"
	"github.com/quantmind-br/remotefetch/internal/remote"
	"github.com/quantmind-br/remotefetch/internal/transport"
	"github.com/quantmind-br/remotefetch/tests/testutil"
)

const upstreamURL = "git://example.com/upstream.git"

func serverOrchestrator(t *testing.T, up *testutil.Upstream, local *memory.Storage) *Orchestrator {
	t.Helper()
	ep, err := gogittransport.NewEndpoint(upstreamURL)
	require.NoError(t, err)

	factory := transport.Factory(transport.Options{
		Client: server.NewClient(server.MapLoader{ep.String(): up.Storer}),
		Retrier: transport.NewRetrier(transport.RetrierOptions{
			MaxRetries:      1,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
		}),
		Logger: testutil.NewTestLogger(t),
	})
	return NewOrchestrator(OrchestratorOptions{Storer: local, Factory: factory, Logger: testutil.NewTestLogger(t)})
}

func TestFetch_EndToEnd(t *testing.T) {
	up := testutil.NewUpstream(t, memory.NewStorage())
	local := memory.NewStorage()
	o := serverOrchestrator(t, up, local)

	r, err := remote.New(upstreamURL)
	require.NoError(t, err)
	require.NoError(t, r.AddFetchRefspec("refs/heads/*:refs/remotes/origin/*"))
	r.SetAutotag(domain.AutotagNone)

	var printed []string
	updateTips := func(u domain.TipUpdate) error {
		if u.IsCreate() {
			printed = append(printed, fmt.Sprintf("* [new branch] %s", u.RefName.Short()))
		}
		return nil
	}

	res, err := o.Fetch(context.Background(), r, Options{UpdateTips: updateTips})
	require.NoError(t, err)
	assert.Equal(t, StateDisconnected, res.States[len(res.States)-1])
	assert.Equal(t, up.Master, testutil.RefHash(t, local, "refs/remotes/origin/master"))
	assert.Equal(t, up.Dev, testutil.RefHash(t, local, "refs/remotes/origin/dev"))
	assert.ElementsMatch(t, []string{"* [new branch] origin/master", "* [new branch] origin/dev"}, printed)
	assert.Len(t, res.New, 2)
	assert.Positive(t, res.Stats.ReceivedObjects)

	oldDev := up.Dev
	z := up.Advance(t, "dev", "more dev work\n")
	printed = nil

	res, err = o.Fetch(context.Background(), r, Options{UpdateTips: updateTips})
	require.NoError(t, err)
	assert.Empty(t, printed)
	assert.Empty(t, res.New)
	require.Len(t, res.Updates, 1)
	assert.Equal(t, domain.TipUpdate{RefName: "refs/remotes/origin/dev", Old: oldDev, New: z}, res.Updates[0])
	assert.Equal(t, z, testutil.RefHash(t, local, "refs/remotes/origin/dev"))
	assert.Equal(t, up.Master, testutil.RefHash(t, local, "refs/remotes/origin/master"))
}

func TestLs_EndToEnd(t *testing.T) {
	up := testutil.NewUpstream(t, memory.NewStorage())
	o := serverOrchestrator(t, up, memory.NewStorage())

	r, err := remote.New(upstreamURL)
	require.NoError(t, err)

	var names []string
	for h, err := range o.Ls(context.Background(), r, nil) {
		require.NoError(t, err)
		names = append(names, h.Name.String())
	}
	assert.Equal(t, []string{"HEAD", "refs/heads/dev", "refs/heads/master"}, names)
}
