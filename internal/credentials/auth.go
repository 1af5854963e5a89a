package credentials

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/quantmind-br/remotefetch/internal/domain"
)

const defaultSSHUser = "git"

// ErrUnsupportedProtocol is returned when a credential cannot be expressed
// for the challenge protocol
var ErrUnsupportedProtocol = errors.New("credential not supported for protocol")

// AuthMethod converts cred into the go-git auth method for ch.Protocol.
// Default over http yields a nil method, which means anonymous access.
func AuthMethod(cred Credential, ch domain.Challenge) (transport.AuthMethod, error) {
	switch c := cred.(type) {
	case *Plaintext:
		cred = *c
	case *SSHKey:
		cred = *c
	case *Default:
		cred = *c
	}

	switch c := cred.(type) {
	case Plaintext:
		switch ch.Protocol {
		case "http", "https":
			return &githttp.BasicAuth{Username: c.Username, Password: c.Password}, nil
		case "ssh":
			return &gitssh.Password{User: sshUser(c.Username, ch), Password: c.Password}, nil
		}
	case SSHKey:
		if ch.Protocol == "ssh" {
			auth, err := gitssh.NewPublicKeysFromFile(sshUser(c.Username, ch), c.PrivateKeyPath, c.Passphrase)
			if err != nil {
				return nil, fmt.Errorf("load ssh key %s: %w", c.PrivateKeyPath, err)
			}
			return auth, nil
		}
	case Default:
		switch ch.Protocol {
		case "http", "https":
			return nil, nil
		case "ssh":
			auth, err := gitssh.NewSSHAgentAuth(sshUser("", ch))
			if err != nil {
				return nil, fmt.Errorf("ssh agent: %w", err)
			}
			return auth, nil
		}
	}
	return nil, fmt.Errorf("%w: %s over %q", ErrUnsupportedProtocol, kindOf(cred), ch.Protocol)
}

func sshUser(user string, ch domain.Challenge) string {
	if user != "" {
		return user
	}
	if ch.UsernameFromURL != "" {
		return ch.UsernameFromURL
	}
	return defaultSSHUser
}

func kindOf(cred Credential) domain.CredentialKind {
	if cred == nil {
		return ""
	}
	return cred.Kind()
}
