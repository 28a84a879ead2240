package ticket

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/rgal/llvm-project-prepo/hash"
	"github.com/rgal/llvm-project-prepo/store"
	"github.com/rgal/llvm-project-prepo/ticket/linkage"
)

func writeTicketFile(t *testing.T, id uuid.UUID) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "t.db.ticket")
	data := append([]byte(signature), id[:]...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadFileRoundTrip(t *testing.T) {
	id := uuid.New()
	path := writeTicketFile(t, id)
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != id {
		t.Fatalf("ReadFile returned %v, want %v", got, id)
	}
}

func TestReadFileRejectsWrongSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.ticket")
	if err := os.WriteFile(path, []byte("RepoUuid"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Fatal("expected error reading a mis-sized ticket file")
	}
}

func TestReadFileRejectsWrongSignature(t *testing.T) {
	id := uuid.New()
	dir := t.TempDir()
	path := filepath.Join(dir, "bad-sig.ticket")
	data := append([]byte("WrongSig"), id[:]...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Fatal("expected error reading a ticket file with the wrong signature")
	}
}

// fakeStore is a minimal in-memory store.Store for exercising Load
// without opening a real SQLite file.
type fakeStore struct {
	tickets map[uuid.UUID]store.Ref
	members map[store.Ref][]store.RawMember
}

func (f *fakeStore) FragmentByDigest(hash.Digest) (store.Ref, bool, error) { return 0, false, nil }

func (f *fakeStore) TicketByUUID(id uuid.UUID) (store.Ref, bool, error) {
	ref, ok := f.tickets[id]
	return ref, ok, nil
}

func (f *fakeStore) NameAddress(string) (store.Ref, bool, error) { return 0, false, nil }

func (f *fakeStore) NameAt(store.Ref) (string, bool, error) { return "", false, nil }

func (f *fakeStore) LoadTicketMembers(ref store.Ref) ([]store.RawMember, error) {
	return f.members[ref], nil
}

func (f *fakeStore) LoadFragmentBytes(store.Ref) ([]byte, error) { return nil, nil }

func (f *fakeStore) Close() error { return nil }

func TestLoadDecodesMembers(t *testing.T) {
	id := uuid.New()
	digest := hash.Digest{1, 2, 3}
	fs := &fakeStore{
		tickets: map[uuid.UUID]store.Ref{id: 7},
		members: map[store.Ref][]store.RawMember{
			7: {{NameRef: 100, Digest: digest, Linkage: uint8(linkage.External)}},
		},
	}
	tk, err := Load(fs, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tk) != 1 || tk[0].Name != 100 || tk[0].Digest != digest || tk[0].Linkage != linkage.External {
		t.Fatalf("Load() = %+v", tk)
	}
}

func TestLoadRejectsUnknownUUID(t *testing.T) {
	fs := &fakeStore{tickets: map[uuid.UUID]store.Ref{}, members: map[store.Ref][]store.RawMember{}}
	if _, err := Load(fs, uuid.New()); err == nil {
		t.Fatal("expected error looking up an absent ticket")
	}
}

func TestLoadRejectsUnknownLinkage(t *testing.T) {
	id := uuid.New()
	fs := &fakeStore{
		tickets: map[uuid.UUID]store.Ref{id: 1},
		members: map[store.Ref][]store.RawMember{
			1: {{NameRef: 1, Digest: hash.Digest{}, Linkage: 0xff}},
		},
	}
	if _, err := Load(fs, id); err == nil {
		t.Fatal("expected error decoding a member with unrecognized linkage")
	}
}
