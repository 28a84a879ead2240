package store

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/rgal/llvm-project-prepo/hash"
	"github.com/rgal/llvm-project-prepo/internal/perr"
)

// SQLiteStore is the one concrete Store implementation this repository
// owns: a read-only view over a SQLite file with three tables.
// SQLite's own storage engine (its B-tree, page cache, WAL) is an
// existing, battle-tested piece of infrastructure this package merely
// opens — no index or compaction code is written here.
type SQLiteStore struct {
	conn *sqlite.Conn
}

// schema is applied only when opening a store for tests; production
// stores are built by the (out-of-scope) compiler front end and opened
// read-only here.
const schema = `
CREATE TABLE IF NOT EXISTS fragments (digest BLOB PRIMARY KEY, body BLOB NOT NULL);
CREATE TABLE IF NOT EXISTS tickets (uuid BLOB PRIMARY KEY, members BLOB NOT NULL);
CREATE TABLE IF NOT EXISTS names (name TEXT PRIMARY KEY, addr INTEGER NOT NULL);
`

// OpenReadOnly opens the SQLite file at path for reading. The caller
// must call Close when done.
func OpenReadOnly(path string) (*SQLiteStore, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	if err != nil {
		return nil, perr.Wrap(perr.IO, err, "opening store "+path)
	}
	return &SQLiteStore{conn: conn}, nil
}

// createForTest opens (creating if absent) a read-write store and
// applies the schema; used only by tests that need to populate a store
// before exercising the read-only paths.
func createForTest(path string) (*SQLiteStore, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, errors.Wrap(err, "store: opening for test setup")
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "store: applying schema")
	}
	return &SQLiteStore{conn: conn}, nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) FragmentByDigest(digest hash.Digest) (Ref, bool, error) {
	var ref Ref
	found := false
	err := sqlitex.Execute(s.conn, "SELECT rowid FROM fragments WHERE digest = ?",
		&sqlitex.ExecOptions{
			Args: []any{digest.Bytes()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				ref = Ref(stmt.ColumnInt64(0))
				return nil
			},
		})
	if err != nil {
		return 0, false, perr.Wrap(perr.IO, err, "querying fragment by digest")
	}
	return ref, found, nil
}

func (s *SQLiteStore) TicketByUUID(id uuid.UUID) (Ref, bool, error) {
	var ref Ref
	found := false
	idBytes, err := id.MarshalBinary()
	if err != nil {
		return 0, false, perr.Wrap(perr.Format, err, "marshalling ticket uuid")
	}
	err = sqlitex.Execute(s.conn, "SELECT rowid FROM tickets WHERE uuid = ?",
		&sqlitex.ExecOptions{
			Args: []any{idBytes},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				ref = Ref(stmt.ColumnInt64(0))
				return nil
			},
		})
	if err != nil {
		return 0, false, perr.Wrap(perr.IO, err, "querying ticket by uuid")
	}
	return ref, found, nil
}

func (s *SQLiteStore) NameAddress(name string) (Ref, bool, error) {
	var ref Ref
	found := false
	err := sqlitex.Execute(s.conn, "SELECT addr FROM names WHERE name = ?",
		&sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				ref = Ref(stmt.ColumnInt64(0))
				return nil
			},
		})
	if err != nil {
		return 0, false, perr.Wrap(perr.IO, err, "querying name address")
	}
	return ref, found, nil
}

func (s *SQLiteStore) NameAt(ref Ref) (string, bool, error) {
	var name string
	found := false
	err := sqlitex.Execute(s.conn, "SELECT name FROM names WHERE addr = ?",
		&sqlitex.ExecOptions{
			Args: []any{int64(ref)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				name = stmt.ColumnText(0)
				return nil
			},
		})
	if err != nil {
		return "", false, perr.Wrap(perr.IO, err, "querying name by ref")
	}
	return name, found, nil
}

// LoadTicketMembers decodes a ticket's member list: a flat sequence of
// (name_addr u64, digest [16]byte, linkage u8) records.
func (s *SQLiteStore) LoadTicketMembers(ref Ref) ([]RawMember, error) {
	var blob []byte
	err := sqlitex.Execute(s.conn, "SELECT members FROM tickets WHERE rowid = ?",
		&sqlitex.ExecOptions{
			Args: []any{int64(ref)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				blob = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, blob)
				return nil
			},
		})
	if err != nil {
		return nil, perr.Wrap(perr.IO, err, "loading ticket members")
	}
	if blob == nil {
		return nil, perr.New(perr.Missing, "ticket not found at ref")
	}
	const recordSize = 8 + 16 + 1
	if len(blob)%recordSize != 0 {
		return nil, perr.New(perr.Format, "ticket member blob has unexpected size")
	}
	members := make([]RawMember, 0, len(blob)/recordSize)
	for off := 0; off < len(blob); off += recordSize {
		rec := blob[off : off+recordSize]
		var m RawMember
		m.NameRef = Ref(binary.LittleEndian.Uint64(rec[0:8]))
		copy(m.Digest[:], rec[8:24])
		m.Linkage = rec[24]
		members = append(members, m)
	}
	return members, nil
}

func (s *SQLiteStore) LoadFragmentBytes(ref Ref) ([]byte, error) {
	var body []byte
	err := sqlitex.Execute(s.conn, "SELECT body FROM fragments WHERE rowid = ?",
		&sqlitex.ExecOptions{
			Args: []any{int64(ref)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				body = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, body)
				return nil
			},
		})
	if err != nil {
		return nil, perr.Wrap(perr.IO, err, "loading fragment bytes")
	}
	if body == nil {
		return nil, perr.New(perr.Missing, fmt.Sprintf("no fragment at ref %d", ref))
	}
	return body, nil
}

var _ Store = (*SQLiteStore)(nil)
