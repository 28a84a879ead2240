// Package store defines the persistent key-value store repo2obj reads
// from: a digest-keyed fragment index, a UUID-keyed ticket index, and a
// name-interning set. The store's own storage-engine internals
// (indexing, write path, compaction) are an external collaborator's
// concern and out of scope here; this package only defines the
// read-only interface the assembler needs and one concrete
// implementation on top of SQLite.
package store

import (
	"github.com/google/uuid"

	"github.com/rgal/llvm-project-prepo/hash"
)

// Ref is an opaque address into the store's backing space: the
// location of a ticket's member list, or of a name's interned record.
// It carries no meaning outside the Store that issued it.
type Ref uint64

// RawMember is a ticket member exactly as the store records it, before
// linkage.Linkage validation (done by the ticket package).
type RawMember struct {
	NameRef Ref
	Digest  hash.Digest
	Linkage uint8
}

// Store is the read-only interface repo2obj needs from the persistent
// store: fragment lookup by digest, ticket lookup by UUID, name
// interning, and the two load operations that turn a ticket or fragment
// reference into its bytes. No mutation paths are required by the core.
type Store interface {
	// FragmentByDigest returns the store address of the fragment with
	// digest, or ok=false if the store has no fragment under that
	// digest. Symmetric with TicketByUUID: the address is resolved to
	// bytes with a follow-up LoadFragmentBytes.
	FragmentByDigest(digest hash.Digest) (ref Ref, ok bool, err error)

	// TicketByUUID returns the store address of the ticket with id, or
	// ok=false if absent.
	TicketByUUID(id uuid.UUID) (ref Ref, ok bool, err error)

	// NameAddress returns the store address at which name is interned,
	// or ok=false if the name was never interned.
	NameAddress(name string) (ref Ref, ok bool, err error)

	// NameAt returns the interned string at ref, the inverse of
	// NameAddress. External fixups carry a NameRef rather than a raw
	// string; resolving one back to a symbol name for emission requires
	// this reverse direction.
	NameAt(ref Ref) (name string, ok bool, err error)

	// LoadTicketMembers decodes the ordered member list stored at ref.
	LoadTicketMembers(ref Ref) ([]RawMember, error)

	// LoadFragmentBytes returns the raw fragment blob stored at ref.
	LoadFragmentBytes(ref Ref) ([]byte, error)

	// Close releases any resources the store holds open.
	Close() error
}
