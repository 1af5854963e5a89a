package domain

import (
	"context"

	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage"
)

// Transport is the network capability a fetch is driven through
type Transport interface {
	// Connect opens the connection, answering authentication challenges
	// through the Authenticator the transport was built with
	Connect(ctx context.Context, dir Direction) error
	// ListHeads returns the references advertised by the remote
	ListHeads(ctx context.Context) ([]RemoteHead, error)
	// FetchPack transfers the objects selected by req into local storage and
	// returns the tip updates the caller has to apply
	FetchPack(ctx context.Context, req FetchRequest, sink ProgressSink) ([]TipUpdate, error)
	// Disconnect releases the connection. It is safe to call more than once.
	Disconnect() error
}

// TransportOptions are the per-session collaborators handed to a TransportFactory
type TransportOptions struct {
	// Storer receives fetched objects and is read for local refs
	Storer storage.Storer
	// Authenticator answers challenges; nil means anonymous
	Authenticator Authenticator
}

// TransportFactory builds a fresh Transport for one working session
type TransportFactory func(url string, opts TransportOptions) (Transport, error)

// FetchRequest carries the resolved refspecs and fetch policy to the transport
type FetchRequest struct {
	Refspecs []config.RefSpec
	Autotag  AutotagPolicy
	Prune    bool
}

// ProgressSink receives progress while a pack is transferred.
// Write receives raw side-band text in arbitrary chunks.
type ProgressSink interface {
	Write(p []byte) (int, error)
	Transfer(stats TransferStats) error
}

// Authenticator turns a challenge into a transport-native credential
type Authenticator interface {
	Authenticate(ctx context.Context, ch Challenge) (transport.AuthMethod, error)
}
