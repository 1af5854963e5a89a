package domain

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

// Direction selects which side of a remote a connection talks to
type Direction int

const (
	DirectionFetch Direction = iota
	DirectionPush
)

func (d Direction) String() string {
	switch d {
	case DirectionFetch:
		return "fetch"
	case DirectionPush:
		return "push"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// AutotagPolicy controls whether annotated tags are followed during fetch
type AutotagPolicy string

const (
	// AutotagAuto follows tags pointing at objects that are fetched anyway
	AutotagAuto AutotagPolicy = "auto"
	// AutotagAll fetches every tag advertised by the remote
	AutotagAll AutotagPolicy = "all"
	// AutotagNone never fetches tags implicitly
	AutotagNone AutotagPolicy = "none"
)

// ParseAutotag parses an autotag policy name. An empty string is AutotagAuto.
func ParseAutotag(s string) (AutotagPolicy, error) {
	switch AutotagPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", AutotagAuto:
		return AutotagAuto, nil
	case AutotagAll:
		return AutotagAll, nil
	case AutotagNone:
		return AutotagNone, nil
	default:
		return "", fmt.Errorf("unknown autotag policy %q", s)
	}
}

// RemoteHead is a reference advertised by the remote side
type RemoteHead struct {
	Name plumbing.ReferenceName
	OID  plumbing.Hash
	// LocalOID is the value of the local reference with the same name, zero if unknown
	LocalOID plumbing.Hash
	// IsLocal reports whether the object OID already exists in the local object database
	IsLocal bool
	// SymrefTarget is set for symbolic refs such as HEAD
	SymrefTarget plumbing.ReferenceName
}

// HasLocalOID reports whether the local equivalent of the head is known
func (h RemoteHead) HasLocalOID() bool {
	return !h.LocalOID.IsZero()
}

// TransferStats are the counters reported while a pack is received.
// Every field is non-decreasing over the lifetime of one fetch.
type TransferStats struct {
	TotalObjects    uint32
	IndexedObjects  uint32
	ReceivedObjects uint32
	ReceivedBytes   uint64
	TotalDeltas     uint32
	IndexedDeltas   uint32
}

// Covers reports whether every counter of s is at least the matching counter of prev
func (s TransferStats) Covers(prev TransferStats) bool {
	return s.TotalObjects >= prev.TotalObjects &&
		s.IndexedObjects >= prev.IndexedObjects &&
		s.ReceivedObjects >= prev.ReceivedObjects &&
		s.ReceivedBytes >= prev.ReceivedBytes &&
		s.TotalDeltas >= prev.TotalDeltas &&
		s.IndexedDeltas >= prev.IndexedDeltas
}

// TipUpdate describes one local reference change produced by a fetch.
// A zero Old means the ref is created, a zero New means it is deleted.
type TipUpdate struct {
	RefName plumbing.ReferenceName
	Old     plumbing.Hash
	New     plumbing.Hash
	// Force is set when the refspec that produced the update allows non-fast-forward updates
	Force bool
}

// IsCreate reports whether the update creates a new local ref
func (u TipUpdate) IsCreate() bool {
	return u.Old.IsZero() && !u.New.IsZero()
}

// IsDelete reports whether the update removes a local ref
func (u TipUpdate) IsDelete() bool {
	return u.New.IsZero() && !u.Old.IsZero()
}

// IsNoop reports whether applying the update changes nothing
func (u TipUpdate) IsNoop() bool {
	return u.Old == u.New
}

func (u TipUpdate) String() string {
	switch {
	case u.IsCreate():
		return fmt.Sprintf("%s: (new) -> %s", u.RefName, u.New)
	case u.IsDelete():
		return fmt.Sprintf("%s: %s -> (deleted)", u.RefName, u.Old)
	default:
		return fmt.Sprintf("%s: %s -> %s", u.RefName, u.Old, u.New)
	}
}

// CredentialKind names one credential variant a transport may accept
type CredentialKind string

const (
	CredentialPlaintext CredentialKind = "plaintext"
	CredentialSSHKey    CredentialKind = "ssh_key"
	CredentialDefault   CredentialKind = "default"
)

// Challenge is one authentication request raised by the transport
type Challenge struct {
	URL             string
	UsernameFromURL string
	Allowed         []CredentialKind
	// Protocol is the endpoint scheme (http, https, ssh, ...)
	Protocol string
	// Round counts challenges within one connect, starting at 1
	Round int
}

// Allows reports whether kind is part of the allowed set
func (c Challenge) Allows(kind CredentialKind) bool {
	for _, k := range c.Allowed {
		if k == kind {
			return true
		}
	}
	return false
}
