package transport

import (
	"context"
	"errors"
	"io"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/packfile"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp/capability"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp/sideband"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/quantmind-br/remotefetch/internal/domain"
	"github.com/quantmind-br/remotefetch/internal/refspec"
)

// FetchPack maps the advertised heads through req, downloads the objects the
// resulting updates need and returns the updates. Nothing is downloaded when
// every wanted object is already local.
func (g *GoGit) FetchPack(ctx context.Context, req domain.FetchRequest, sink domain.ProgressSink) ([]domain.TipUpdate, error) {
	if g.session == nil {
		return nil, domain.NewTransportError("fetch", g.url, ErrNotConnected)
	}

	specs, err := refspec.FromNative(req.Refspecs, domain.DirectionFetch)
	if err != nil {
		return nil, err
	}
	heads, err := g.ListHeads(ctx)
	if err != nil {
		return nil, err
	}
	local, err := g.localRefs()
	if err != nil {
		return nil, domain.NewTransportError("fetch", g.url, err)
	}

	updates := refspec.Plan(heads, specs, local, refspec.PlanOptions{
		Autotag:   req.Autotag,
		Prune:     req.Prune,
		HasObject: g.hasObject,
	})

	wants := g.wants(updates, refspec.Wants(heads, specs))
	if len(wants) == 0 {
		g.logger.Debug().Int("updates", len(updates)).Msg("Nothing to download")
		return updates, nil
	}

	upreq := packp.NewUploadPackRequestFromCapabilities(g.advRefs.Capabilities)
	upreq.Wants = wants
	upreq.Haves = haves(local)
	if sink == nil && g.advRefs.Capabilities.Supports(capability.NoProgress) {
		_ = upreq.Capabilities.Set(capability.NoProgress)
	}

	g.logger.Debug().Int("wants", len(wants)).Int("haves", len(upreq.Haves)).Msg("Requesting pack")
	resp, err := g.session.UploadPack(ctx, upreq)
	if errors.Is(err, transport.ErrEmptyUploadPackRequest) {
		return updates, nil
	}
	if err != nil {
		return nil, domain.NewTransportError("fetch", g.url, err)
	}
	defer resp.Close()

	if err := g.receive(packReader(upreq, resp, sink), sink); err != nil {
		if errors.Is(err, domain.ErrCallbackAborted) {
			return nil, err
		}
		return nil, domain.NewTransportError("fetch", g.url, err)
	}
	return updates, nil
}

// receive parses the pack into local storage while reporting statistics
func (g *GoGit) receive(r io.Reader, sink domain.ProgressSink) error {
	counter := &countingReader{r: r}
	obs := &statsObserver{bytes: counter, sink: sink}

	parser, err := packfile.NewParserWithStorage(packfile.NewScanner(counter), g.storer, obs)
	if err != nil {
		return err
	}
	if _, err := parser.Parse(); err != nil {
		if obs.err != nil {
			return obs.err
		}
		return err
	}
	g.logger.Debug().
		Uint32("objects", obs.stats.TotalObjects).
		Uint32("deltas", obs.stats.TotalDeltas).
		Uint64("bytes", obs.stats.ReceivedBytes).
		Msg("Pack received")
	return nil
}

// packReader demultiplexes side-band data when the request negotiated it
func packReader(req *packp.UploadPackRequest, r io.Reader, sink domain.ProgressSink) io.Reader {
	var t sideband.Type
	switch {
	case req.Capabilities.Supports(capability.Sideband64k):
		t = sideband.Sideband64k
	case req.Capabilities.Supports(capability.Sideband):
		t = sideband.Sideband
	default:
		return r
	}
	d := sideband.NewDemuxer(t, r)
	if sink != nil {
		d.Progress = sink
	}
	return d
}

// wants lists the new tips plus the objects of source-only specs that are
// not stored locally yet
func (g *GoGit) wants(updates []domain.TipUpdate, extra []plumbing.Hash) []plumbing.Hash {
	seen := map[plumbing.Hash]bool{}
	var wants []plumbing.Hash
	add := func(h plumbing.Hash) {
		if h.IsZero() || seen[h] || g.hasObject(h) {
			return
		}
		seen[h] = true
		wants = append(wants, h)
	}
	for _, u := range updates {
		add(u.New)
	}
	for _, h := range extra {
		add(h)
	}
	return wants
}

func (g *GoGit) localRefs() (refspec.LocalRefs, error) {
	refs, err := g.storer.IterReferences()
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

func haves(local refspec.LocalRefs) []plumbing.Hash {
	seen := map[plumbing.Hash]bool{}
	var out []plumbing.Hash
	for _, h := range local {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}
