package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/quantmind-br/remotefetch/internal/credentials"
	"github.com/quantmind-br/remotefetch/internal/domain"
	"github.com/quantmind-br/remotefetch/internal/utils"
)

// ErrNotInteractive is returned when a prompt is needed but stdin is not a terminal
var ErrNotInteractive = errors.New("credentials required but stdin is not a terminal")

// IsInteractive reports whether f is attached to a terminal
func IsInteractive(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Prompter asks the user for credentials each time a remote challenges.
// It implements credentials.Strategy.
type Prompter struct {
	input      io.Reader
	output     io.Writer
	accessible bool
	run        func(ctx context.Context, form *huh.Form) error
}

// PrompterOptions contains options for creating a Prompter
type PrompterOptions struct {
	Input      io.Reader
	Output     io.Writer
	Accessible bool
}

// NewPrompter creates a new Prompter
func NewPrompter(opts PrompterOptions) *Prompter {
	return &Prompter{
		input:      opts.Input,
		output:     opts.Output,
		accessible: opts.Accessible,
		run: func(ctx context.Context, form *huh.Form) error {
			return form.RunWithContext(ctx)
		},
	}
}

// Credential prompts for one credential the challenge allows
func (p *Prompter) Credential(ctx context.Context, ch domain.Challenge) (credentials.Credential, error) {
	kind, err := p.chooseKind(ctx, ch)
	if err != nil {
		return nil, err
	}

	values := &CredentialValues{Username: ch.UsernameFromURL}
	switch kind {
	case domain.CredentialDefault:
		return credentials.Default{}, nil
	case domain.CredentialPlaintext:
		if err := p.ask(ctx, CreatePlaintextForm(ch, values)); err != nil {
			return nil, err
		}
		return credentials.Plaintext{Username: values.Username, Password: values.Password}, nil
	case domain.CredentialSSHKey:
		if err := p.ask(ctx, CreateSSHKeyForm(ch, values)); err != nil {
			return nil, err
		}
		key := utils.ExpandPath(values.PrivateKeyPath)
		return credentials.SSHKey{
			Username:       values.Username,
			PublicKeyPath:  key + ".pub",
			PrivateKeyPath: key,
			Passphrase:     values.Passphrase,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrCredentialTypeRejected, kind)
	}
}

// chooseKind asks only when more than one prompt-able kind is allowed.
// Default credentials are offered only after the first round.
func (p *Prompter) chooseKind(ctx context.Context, ch domain.Challenge) (domain.CredentialKind, error) {
	kinds := promptableKinds(ch)
	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("%w: nothing to prompt for %s", domain.ErrCredentialTypeRejected, ch.URL)
	case 1:
		return kinds[0], nil
	}

	kind := kinds[0]
	if err := p.ask(ctx, CreateKindForm(ch, kinds, &kind)); err != nil {
		return "", err
	}
	return kind, nil
}

func promptableKinds(ch domain.Challenge) []domain.CredentialKind {
	var kinds []domain.CredentialKind
	for _, k := range []domain.CredentialKind{domain.CredentialSSHKey, domain.CredentialPlaintext} {
		if ch.Allows(k) {
			kinds = append(kinds, k)
		}
	}
	if ch.Allows(domain.CredentialDefault) && (ch.Round > 1 || len(kinds) == 0) {
		kinds = append(kinds, domain.CredentialDefault)
	}
	return kinds
}

func (p *Prompter) ask(ctx context.Context, form *huh.Form) error {
	if p.input != nil {
		form = form.WithInput(p.input)
	}
	if p.output != nil {
		form = form.WithOutput(p.output)
	}
	if p.accessible {
		form = form.WithAccessible(true)
	}
	if err := p.run(ctx, form); err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	return nil
}
