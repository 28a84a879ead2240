// Package ticket implements the ordered list of (name, digest, linkage)
// references a ticket file names. A ticket is itself an external
// collaborator's record: this package reads the small fixed-layout
// file that names one by UUID, and decodes its member list out of the
// store.
package ticket

import (
	"os"

	"github.com/google/uuid"

	"github.com/rgal/llvm-project-prepo/hash"
	"github.com/rgal/llvm-project-prepo/internal/perr"
	"github.com/rgal/llvm-project-prepo/store"
	"github.com/rgal/llvm-project-prepo/ticket/linkage"
)

// UUID re-exports google/uuid's type: a ticket's identity in the
// store's ticket index.
type UUID = uuid.UUID

// Member is one entry of a ticket: a named fragment plus the linkage
// its symbol should carry once assembled.
type Member struct {
	Name    store.Ref
	Digest  hash.Digest
	Linkage linkage.Linkage
}

// Ticket is a ticket's ordered member list.
type Ticket []Member

// signature is the fixed 8-byte ASCII tag every ticket file begins
// with.
const signature = "RepoUuid"

// fileSize is the ticket file's fixed total size: an 8-byte signature
// followed by a 16-byte UUID.
const fileSize = len(signature) + 16

// ReadFile reads the fixed 24-byte ticket file at path and returns the
// UUID it names. Size is checked before the signature: a mis-sized
// file is rejected without even looking at what bytes it contains.
func ReadFile(path string) (uuid.UUID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return uuid.UUID{}, perr.Wrap(perr.IO, err, "reading ticket file "+path)
	}
	if len(data) != fileSize {
		return uuid.UUID{}, perr.New(perr.Format, "ticket file has unexpected size")
	}
	if string(data[:len(signature)]) != signature {
		return uuid.UUID{}, perr.New(perr.Format, "ticket file has unexpected signature")
	}
	id, err := uuid.FromBytes(data[len(signature):])
	if err != nil {
		return uuid.UUID{}, perr.Wrap(perr.Format, err, "decoding ticket uuid")
	}
	return id, nil
}

// Load looks up the ticket named by id in st and decodes its member
// list.
func Load(st store.Store, id uuid.UUID) (Ticket, error) {
	ref, ok, err := st.TicketByUUID(id)
	if err != nil {
		return nil, perr.Wrap(perr.IO, err, "looking up ticket")
	}
	if !ok {
		return nil, perr.New(perr.Missing, "ticket not found in store: "+id.String())
	}
	raw, err := st.LoadTicketMembers(ref)
	if err != nil {
		return nil, err
	}
	members := make(Ticket, 0, len(raw))
	for _, r := range raw {
		l := linkage.Linkage(r.Linkage)
		if !l.Valid() {
			return nil, perr.New(perr.InvariantViolation, "ticket member has unrecognized linkage")
		}
		members = append(members, Member{Name: r.NameRef, Digest: r.Digest, Linkage: l})
	}
	return members, nil
}
