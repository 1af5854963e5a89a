package credentials

import (
	"github.com/quantmind-br/remotefetch/internal/domain"
)

// Credential is one of Plaintext, SSHKey or Default
type Credential interface {
	Kind() domain.CredentialKind
}

// Plaintext is a username and password pair
type Plaintext struct {
	Username string
	Password string
}

// Kind returns domain.CredentialPlaintext
func (Plaintext) Kind() domain.CredentialKind { return domain.CredentialPlaintext }

// SSHKey points at a key pair on disk. PublicKeyPath is informational;
// the public half is derived from the private key.
type SSHKey struct {
	Username       string
	PublicKeyPath  string
	PrivateKeyPath string
	Passphrase     string
}

// Kind returns domain.CredentialSSHKey
func (SSHKey) Kind() domain.CredentialKind { return domain.CredentialSSHKey }

// Default asks the transport to use ambient credentials, such as a running
// ssh-agent
type Default struct{}

// Kind returns domain.CredentialDefault
func (Default) Kind() domain.CredentialKind { return domain.CredentialDefault }
