package reconcile

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"

	"github.com/quantmind-br/remotefetch/internal/domain"
	"github.com/quantmind-br/remotefetch/internal/utils"
)

// TipsFunc is called after each tip update has been applied
type TipsFunc func(update domain.TipUpdate) error

// Reconciler applies tip updates to local references
type Reconciler struct {
	storer     storage.Storer
	updateTips TipsFunc
	logger     *utils.Logger
}

// ReconcilerOptions contains options for creating a Reconciler
type ReconcilerOptions struct {
	Storer     storage.Storer
	UpdateTips TipsFunc
	Logger     *utils.Logger
}

// Report is the outcome of one Apply call
type Report struct {
	// Applied lists updates written to the ref store, in order
	Applied []domain.TipUpdate
	// New lists refs created by this reconciliation
	New []plumbing.ReferenceName
	// Failed lists refs that could not be updated
	Failed []*domain.RefUpdateError
}

// Err returns a *domain.PartialReconciliationError when any ref failed
func (r *Report) Err() error {
	if r == nil || len(r.Failed) == 0 {
		return nil
	}
	return &domain.PartialReconciliationError{Failures: r.Failed}
}

// NewReconciler creates a new Reconciler
func NewReconciler(opts ReconcilerOptions) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Reconciler{
		storer:     opts.Storer,
		updateTips: opts.UpdateTips,
		logger:     logger.WithComponent("reconciler"),
	}
}

// Apply applies every update independently. A failing ref is recorded in the
// report and the remaining refs are still processed. The returned error is
// only set when the update_tips callback fails, which stops reconciliation.
func (rc *Reconciler) Apply(updates []domain.TipUpdate) (*Report, error) {
	report := &Report{}

	for _, u := range updates {
		if u.IsNoop() {
			continue
		}
		if err := rc.apply(u); err != nil {
			rc.logger.Warn().Err(err).Str("ref", u.RefName.String()).Msg("Reference not updated")
			report.Failed = append(report.Failed, &domain.RefUpdateError{RefName: u.RefName, Err: err})
			continue
		}

		report.Applied = append(report.Applied, u)
		if u.IsCreate() {
			report.New = append(report.New, u.RefName)
		}
		rc.logger.Debug().Str("update", u.String()).Bool("force", u.Force).Msg("Reference updated")

		if rc.updateTips != nil {
			if err := rc.updateTips(u); err != nil {
				return report, domain.NewCallbackError("update_tips", err)
			}
		}
	}

	return report, nil
}

func (rc *Reconciler) apply(u domain.TipUpdate) error {
	current, err := rc.storer.Reference(u.RefName)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		current = nil
	case err != nil:
		return err
	}

	if currentHash(current) != u.Old {
		return fmt.Errorf("%w: expected %s, found %s", domain.ErrStaleReference, u.Old, currentHash(current))
	}

	if u.IsDelete() {
		return rc.storer.RemoveReference(u.RefName)
	}

	if !u.IsCreate() && !u.Force {
		if err := rc.checkFastForward(u.Old, u.New); err != nil {
			return err
		}
	}

	ref := plumbing.NewHashReference(u.RefName, u.New)
	if err := rc.storer.CheckAndSetReference(ref, current); err != nil {
		if errors.Is(err, storage.ErrReferenceHasChanged) {
			return fmt.Errorf("%w: %v", domain.ErrStaleReference, err)
		}
		return err
	}
	return nil
}

// checkFastForward requires both sides to be commits with from reachable from to
func (rc *Reconciler) checkFastForward(from, to plumbing.Hash) error {
	fromCommit, err := object.GetCommit(rc.storer, from)
	if err != nil {
		return fmt.Errorf("%w: %s is not a commit: %v", domain.ErrNonFastForward, from, err)
	}
	toCommit, err := object.GetCommit(rc.storer, to)
	if err != nil {
		return fmt.Errorf("%w: %s is not a commit: %v", domain.ErrNonFastForward, to, err)
	}
	ok, err := fromCommit.IsAncestor(toCommit)
	if err != nil {
		return fmt.Errorf("ancestry %s..%s: %w", from, to, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is not an ancestor of %s", domain.ErrNonFastForward, from, to)
	}
	return nil
}

func currentHash(ref *plumbing.Reference) plumbing.Hash {
	if ref == nil || ref.Type() != plumbing.HashReference {
		return plumbing.ZeroHash
	}
	return ref.Hash()
}
