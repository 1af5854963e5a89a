package credentials

import (
	"context"

	"github.com/quantmind-br/remotefetch/internal/domain"
)

// Strategy supplies a credential for one challenge
type Strategy interface {
	Credential(ctx context.Context, ch domain.Challenge) (Credential, error)
}

type static struct {
	cred Credential
}

// Static returns a Strategy that answers every challenge with cred
func Static(cred Credential) Strategy {
	return static{cred: cred}
}

func (s static) Credential(context.Context, domain.Challenge) (Credential, error) {
	return s.cred, nil
}

// CallbackFunc is a Strategy invoked once per challenge
type CallbackFunc func(ctx context.Context, ch domain.Challenge) (Credential, error)

// Credential calls f
func (f CallbackFunc) Credential(ctx context.Context, ch domain.Challenge) (Credential, error) {
	return f(ctx, ch)
}
