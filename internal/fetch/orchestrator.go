package fetch

import (
	"context"
	"errors"
	"iter"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage"

	"github.com/quantmind-br/remotefetch/internal/credentials"
	"github.com/quantmind-br/remotefetch/internal/domain"
	"github.com/quantmind-br/remotefetch/internal/progress"
	"github.com/quantmind-br/remotefetch/internal/reconcile"
	"github.com/quantmind-br/remotefetch/internal/refspec"
	"github.com/quantmind-br/remotefetch/internal/remote"
	"github.com/quantmind-br/remotefetch/internal/utils"
)

// Options are the per-call settings of one fetch
type Options struct {
	// Credentials answers authentication challenges; nil means anonymous
	Credentials credentials.Strategy
	// Progress receives side-band lines
	Progress progress.LineFunc
	// TransferProgress receives transfer statistics snapshots
	TransferProgress progress.TransferFunc
	// UpdateTips is called after each local ref is changed
	UpdateTips reconcile.TipsFunc
	// Prune deletes tracking refs whose remote branch is gone
	Prune bool
	// Refspecs replaces the remote's configured fetch refspecs when non-empty
	Refspecs []string
	// Autotag overrides the remote's tag policy when set
	Autotag domain.AutotagPolicy
}

// Result describes a completed or aborted fetch
type Result struct {
	// States lists every state the fetch went through, in order
	States []State
	// Updates lists the tip updates applied locally
	Updates []domain.TipUpdate
	// New lists refs created by this fetch
	New []plumbing.ReferenceName
	// Stats is the last transfer snapshot, zero when nothing was downloaded
	Stats domain.TransferStats
	// Partial is set when some refs could not be updated
	Partial *domain.PartialReconciliationError
}

// Orchestrator drives fetches from a remote into local storage
type Orchestrator struct {
	storer  storage.Storer
	factory domain.TransportFactory
	logger  *utils.Logger
}

// OrchestratorOptions contains options for creating an Orchestrator
type OrchestratorOptions struct {
	Storer  storage.Storer
	Factory domain.TransportFactory
	Logger  *utils.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Orchestrator{
		storer:  opts.Storer,
		factory: opts.Factory,
		logger:  logger.WithComponent("fetch"),
	}
}

// Fetch connects to r, downloads what its refspecs select and updates local
// refs. r is never modified. Refspecs are validated before any I/O and the
// connection is closed on every exit path. Refs that could not be updated
// are reported in Result.Partial; they do not make Fetch fail.
func (o *Orchestrator) Fetch(ctx context.Context, r *remote.Remote, opts Options) (*Result, error) {
	s := o.newSession(r, opts)
	res := &Result{}
	err := s.run(ctx, res)
	res.States = s.states
	if last, ok := s.reporter.Last(); ok {
		res.Stats = last
	}
	return res, err
}

// Ls connects to r and lazily yields its advertised heads. The connection
// is closed when the sequence ends, including when the consumer stops early.
func (o *Orchestrator) Ls(ctx context.Context, r *remote.Remote, creds credentials.Strategy) iter.Seq2[domain.RemoteHead, error] {
	return func(yield func(domain.RemoteHead, error) bool) {
		logger := o.logger.WithURL(r.URL())
		tr, err := o.factory(r.URL(), domain.TransportOptions{
			Storer:        o.storer,
			Authenticator: authenticator(creds, logger),
		})
		if err != nil {
			yield(domain.RemoteHead{}, err)
			return
		}
		defer func() {
			if err := tr.Disconnect(); err != nil {
				logger.Warn().Err(err).Msg("Disconnect failed")
			}
		}()

		if err := tr.Connect(ctx, domain.DirectionFetch); err != nil {
			yield(domain.RemoteHead{}, err)
			return
		}
		heads, err := tr.ListHeads(ctx)
		if err != nil {
			yield(domain.RemoteHead{}, err)
			return
		}
		for _, h := range heads {
			if !yield(h, nil) {
				return
			}
		}
	}
}

func authenticator(creds credentials.Strategy, logger *utils.Logger) domain.Authenticator {
	if creds == nil {
		return nil
	}
	return credentials.NewNegotiator(creds, logger)
}

// session is the transient state of one fetch: the working remote, the
// callbacks and the abort flag the progress reporter latches
type session struct {
	o        *Orchestrator
	source   *remote.Remote
	opts     Options
	working  *remote.Remote
	reporter *progress.Reporter
	states   []State
	logger   *utils.Logger
}

func (o *Orchestrator) newSession(r *remote.Remote, opts Options) *session {
	s := &session{
		o:      o,
		source: r,
		opts:   opts,
		reporter: progress.NewReporter(progress.ReporterOptions{
			Progress:         opts.Progress,
			TransferProgress: opts.TransferProgress,
		}),
		logger: o.logger.WithURL(r.URL()),
	}
	if r.Name() != "" {
		s.logger = s.logger.WithRemote(r.Name())
	}
	return s
}

func (s *session) enter(st State) {
	s.states = append(s.states, st)
	s.logger.Debug().Str("state", st.String()).Msg("Fetch state")
}

func (s *session) run(ctx context.Context, res *Result) (err error) {
	s.enter(StateIdle)
	defer func() {
		if err != nil {
			s.enter(StateAborted)
			s.logger.Debug().Err(err).Msg("Fetch aborted")
		}
	}()

	specs, err := s.prepare()
	if err != nil {
		return err
	}

	tr, err := s.o.factory(s.working.URL(), domain.TransportOptions{
		Storer:        s.o.storer,
		Authenticator: authenticator(s.opts.Credentials, s.logger),
	})
	if err != nil {
		return err
	}
	disconnected := false
	defer func() {
		if disconnected {
			return
		}
		if derr := tr.Disconnect(); derr != nil {
			s.logger.Warn().Err(derr).Msg("Disconnect failed")
		}
	}()

	s.enter(StateConnecting)
	if err := tr.Connect(ctx, domain.DirectionFetch); err != nil {
		return err
	}
	s.enter(StateConnected)

	s.enter(StateNegotiating)
	req := domain.FetchRequest{
		Refspecs: refspec.NativeAll(specs),
		Autotag:  s.working.Autotag(),
		Prune:    s.opts.Prune,
	}

	s.enter(StateTransferring)
	updates, err := tr.FetchPack(ctx, req, s.reporter)
	if aborted := s.reporter.Err(); aborted != nil {
		return aborted
	}
	if err != nil {
		return err
	}
	if err := s.reporter.Flush(); err != nil {
		return err
	}

	s.enter(StateReconciling)
	rc := reconcile.NewReconciler(reconcile.ReconcilerOptions{
		Storer:     s.o.storer,
		UpdateTips: s.opts.UpdateTips,
		Logger:     s.logger,
	})
	report, err := rc.Apply(updates)
	if report != nil {
		res.Updates = report.Applied
		res.New = report.New
		var partial *domain.PartialReconciliationError
		if errors.As(report.Err(), &partial) {
			res.Partial = partial
		}
	}
	if err != nil {
		return err
	}

	disconnected = true
	if derr := tr.Disconnect(); derr != nil {
		s.logger.Warn().Err(derr).Msg("Disconnect failed")
	}
	s.enter(StateDisconnected)

	s.logger.Info().
		Int("updated", len(res.Updates)).
		Int("new", len(res.New)).
		Bool("partial", res.Partial != nil).
		Msg("Fetch complete")
	return nil
}

// prepare builds the ephemeral working remote from the caller's handle and
// resolves the refspecs it will fetch with
func (s *session) prepare() ([]refspec.Refspec, error) {
	specs, err := refspec.Resolve(s.opts.Refspecs, s.source.FetchRefspecs())
	if err != nil {
		return nil, err
	}

	working, err := remote.New(s.source.URL())
	if err != nil {
		return nil, err
	}
	working.SetAutotag(s.source.Autotag())
	if s.opts.Autotag != "" {
		working.SetAutotag(s.opts.Autotag)
	}
	for _, spec := range specs {
		if err := working.AddFetchRefspec(spec.String()); err != nil {
			return nil, err
		}
	}
	s.working = working
	return specs, nil
}
