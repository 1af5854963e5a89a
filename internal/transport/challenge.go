package transport

import (
	"errors"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/quantmind-br/remotefetch/internal/domain"
)

// allowedKinds returns the credential kinds a protocol can carry
func allowedKinds(protocol string) []domain.CredentialKind {
	switch protocol {
	case "http", "https":
		return []domain.CredentialKind{domain.CredentialPlaintext, domain.CredentialDefault}
	case "ssh":
		return []domain.CredentialKind{domain.CredentialSSHKey, domain.CredentialPlaintext, domain.CredentialDefault}
	default:
		return nil
	}
}

// challengesUpfront reports whether a credential is needed before the first
// attempt. HTTP is tried anonymously and challenged on 401.
func challengesUpfront(protocol string) bool {
	return protocol == "ssh"
}

func newChallenge(url string, ep *transport.Endpoint, round int) domain.Challenge {
	return domain.Challenge{
		URL:             url,
		UsernameFromURL: ep.User,
		Allowed:         allowedKinds(ep.Protocol),
		Protocol:        ep.Protocol,
		Round:           round,
	}
}

// isAuthFailure reports whether the remote rejected or asked for credentials
func isAuthFailure(err error) bool {
	if errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "unable to authenticate")
}
