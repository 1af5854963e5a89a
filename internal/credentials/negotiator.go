package credentials

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/quantmind-br/remotefetch/internal/domain"
	"github.com/quantmind-br/remotefetch/internal/utils"
)

// Negotiator answers authentication challenges using a Strategy.
// It keeps no state between rounds.
type Negotiator struct {
	strategy Strategy
	logger   *utils.Logger
}

// NewNegotiator creates a Negotiator for strategy
func NewNegotiator(strategy Strategy, logger *utils.Logger) *Negotiator {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Negotiator{
		strategy: strategy,
		logger:   logger.WithComponent("credentials"),
	}
}

// Negotiate obtains a credential for ch and checks it against the allowed kinds
func (n *Negotiator) Negotiate(ctx context.Context, ch domain.Challenge) (Credential, error) {
	n.logger.Debug().
		Str("url", ch.URL).
		Int("round", ch.Round).
		Interface("allowed", ch.Allowed).
		Msg("Credential challenge")

	cred, err := n.strategy.Credential(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCredentialNegotiationAborted, err)
	}
	if cred == nil {
		return nil, fmt.Errorf("%w: no credential supplied", domain.ErrCredentialNegotiationAborted)
	}
	if !ch.Allows(cred.Kind()) {
		return nil, fmt.Errorf("%w: %s not in %v", domain.ErrCredentialTypeRejected, cred.Kind(), ch.Allowed)
	}
	return cred, nil
}

// Authenticate implements domain.Authenticator
func (n *Negotiator) Authenticate(ctx context.Context, ch domain.Challenge) (transport.AuthMethod, error) {
	cred, err := n.Negotiate(ctx, ch)
	if err != nil {
		return nil, err
	}
	return AuthMethod(cred, ch)
}
