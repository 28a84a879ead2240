package elfasm

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/google/uuid"

	"github.com/rgal/llvm-project-prepo/fragment"
	"github.com/rgal/llvm-project-prepo/fragment/sectionkind"
	"github.com/rgal/llvm-project-prepo/hash"
	"github.com/rgal/llvm-project-prepo/store"
	"github.com/rgal/llvm-project-prepo/ticket"
	"github.com/rgal/llvm-project-prepo/ticket/linkage"
)

// fakeStore is an in-memory store.Store for exercising Assemble without a
// real SQLite file. Names and fragments are addressed by their insertion
// index; tickets are never looked up through it since these tests hand
// Assemble a ticket.Ticket directly.
type fakeStore struct {
	names     []string
	fragments map[store.Ref][]byte
	byDigest  map[hash.Digest]store.Ref
	nextFrag  store.Ref
}

func newFakeStore() *fakeStore {
	return &fakeStore{fragments: make(map[store.Ref][]byte), byDigest: make(map[hash.Digest]store.Ref)}
}

func (f *fakeStore) internName(name string) store.Ref {
	f.names = append(f.names, name)
	return store.Ref(len(f.names) - 1)
}

func (f *fakeStore) addFragment(digest hash.Digest, frag *fragment.Fragment) store.Ref {
	ref := f.nextFrag
	f.nextFrag++
	f.fragments[ref] = frag.Bytes()
	f.byDigest[digest] = ref
	return ref
}

func (f *fakeStore) FragmentByDigest(digest hash.Digest) (store.Ref, bool, error) {
	ref, ok := f.byDigest[digest]
	return ref, ok, nil
}

func (f *fakeStore) TicketByUUID(uuid.UUID) (store.Ref, bool, error) { return 0, false, nil }

func (f *fakeStore) NameAddress(name string) (store.Ref, bool, error) {
	for i, n := range f.names {
		if n == name {
			return store.Ref(i), true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeStore) NameAt(ref store.Ref) (string, bool, error) {
	i := int(ref)
	if i < 0 || i >= len(f.names) {
		return "", false, nil
	}
	return f.names[i], true, nil
}

func (f *fakeStore) LoadTicketMembers(store.Ref) ([]store.RawMember, error) { return nil, nil }

func (f *fakeStore) LoadFragmentBytes(ref store.Ref) ([]byte, error) {
	blob, ok := f.fragments[ref]
	if !ok {
		return nil, nil
	}
	return blob, nil
}

func (f *fakeStore) Close() error { return nil }

func buildFragment(t *testing.T, entries ...fragment.SectionEntry) *fragment.Fragment {
	t.Helper()
	frag, err := fragment.Build(entries)
	if err != nil {
		t.Fatalf("fragment.Build: %v", err)
	}
	return frag
}

func parseObject(t *testing.T, body []byte) *elf.File {
	t.Helper()
	f, err := elf.NewFile(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("elf.NewFile: %v", err)
	}
	return f
}

// TestAssembleSingleTextMember verifies that one external-linkage member
// with a single fixup-free Text section assembles to exactly null,
// .strtab, .symtab, .text, .rela.text, with one STB_GLOBAL/STT_FUNC
// symbol.
func TestAssembleSingleTextMember(t *testing.T) {
	st := newFakeStore()
	nameRef := st.internName("f")
	code := []byte{0x90, 0x90, 0x90, 0x90}
	frag := buildFragment(t, fragment.SectionEntry{Kind: sectionkind.Text, Data: code})
	digest := hash.Digest{1, 2, 3}
	st.addFragment(digest, frag)

	tk := ticket.Ticket{{Name: nameRef, Digest: digest, Linkage: linkage.External}}

	var out bytes.Buffer
	if err := Assemble(st, tk, &out, nil); err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	f := parseObject(t, out.Bytes())
	if len(f.Sections) != 5 {
		names := make([]string, len(f.Sections))
		for i, s := range f.Sections {
			names[i] = s.Name
		}
		t.Fatalf("got %d sections %v, want 5 (null, .strtab, .symtab, .text, .rela.text)", len(f.Sections), names)
	}

	text := f.Section(".text")
	if text == nil {
		t.Fatal("missing .text section")
	}
	data, err := text.Data()
	if err != nil {
		t.Fatalf("text.Data: %v", err)
	}
	if !bytes.Equal(data, code) {
		t.Errorf(".text data = %x, want %x", data, code)
	}

	if f.Section(".rela.text") == nil {
		t.Error("missing .rela.text section even though the fragment has no fixups")
	}

	syms, err := f.Symbols()
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	if len(syms) != 1 {
		t.Fatalf("got %d symbols, want 1", len(syms))
	}
	sym := syms[0]
	if sym.Name != "f" {
		t.Errorf("symbol name = %q, want %q", sym.Name, "f")
	}
	if elf.ST_BIND(sym.Info) != elf.STB_GLOBAL {
		t.Errorf("symbol bind = %v, want STB_GLOBAL", elf.ST_BIND(sym.Info))
	}
	if elf.ST_TYPE(sym.Info) != elf.STT_FUNC {
		t.Errorf("symbol type = %v, want STT_FUNC", elf.ST_TYPE(sym.Info))
	}
	if sym.Size != uint64(len(code)) {
		t.Errorf("symbol size = %d, want %d", sym.Size, len(code))
	}
}

// TestAssembleLinkOnceMembersFormGroup verifies that two distinct ticket
// members sharing one linkonce name land in two separate .text output
// sections, united under a single COMDAT group, rather than being
// merged into one section.
func TestAssembleLinkOnceMembersFormGroup(t *testing.T) {
	st := newFakeStore()
	nameRef := st.internName("tpl<int>::f")

	fragA := buildFragment(t, fragment.SectionEntry{Kind: sectionkind.Text, Data: []byte{0x01, 0x02}})
	fragB := buildFragment(t, fragment.SectionEntry{Kind: sectionkind.Text, Data: []byte{0x03, 0x04, 0x05}})
	digestA := hash.Digest{0xA}
	digestB := hash.Digest{0xB}
	st.addFragment(digestA, fragA)
	st.addFragment(digestB, fragB)

	tk := ticket.Ticket{
		{Name: nameRef, Digest: digestA, Linkage: linkage.LinkOnce},
		{Name: nameRef, Digest: digestB, Linkage: linkage.LinkOnce},
	}

	var out bytes.Buffer
	if err := Assemble(st, tk, &out, nil); err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	f := parseObject(t, out.Bytes())

	var textSections []*elf.Section
	var groupSections []*elf.Section
	for _, s := range f.Sections {
		if s.Name == ".text" {
			textSections = append(textSections, s)
		}
		if s.Type == elf.SHT_GROUP {
			groupSections = append(groupSections, s)
		}
	}
	if len(textSections) != 2 {
		t.Fatalf("got %d .text sections, want 2 (one per linkonce member)", len(textSections))
	}
	if len(groupSections) != 1 {
		t.Fatalf("got %d SHT_GROUP sections, want 1", len(groupSections))
	}

	groupData, err := groupSections[0].Data()
	if err != nil {
		t.Fatalf("group.Data: %v", err)
	}
	if len(groupData) != 4*(1+2*2) {
		t.Fatalf("group body size = %d, want %d", len(groupData), 4*(1+2*2))
	}

	syms, err := f.Symbols()
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	var weakCount int
	for _, s := range syms {
		if s.Name == "tpl<int>::f" {
			weakCount++
			if elf.ST_BIND(s.Info) != elf.STB_WEAK {
				t.Errorf("linkonce symbol bind = %v, want STB_WEAK", elf.ST_BIND(s.Info))
			}
		}
	}
	if weakCount != 2 {
		t.Fatalf("got %d symbols named %q, want 2", weakCount, "tpl<int>::f")
	}
}

// TestAssembleCommonMember verifies that a common-linkage member
// carrying one 16-byte BSS section produces a single STB_GLOBAL common
// symbol (SHN_COMMON, st_size=16) and no output section of its own.
func TestAssembleCommonMember(t *testing.T) {
	st := newFakeStore()
	nameRef := st.internName("g_counter")

	frag := buildFragment(t, fragment.SectionEntry{Kind: sectionkind.BSS, Data: make([]byte, 16)})
	digest := hash.Digest{0xC}
	st.addFragment(digest, frag)

	tk := ticket.Ticket{{Name: nameRef, Digest: digest, Linkage: linkage.Common}}

	var out bytes.Buffer
	if err := Assemble(st, tk, &out, nil); err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	f := parseObject(t, out.Bytes())
	if len(f.Sections) != 3 {
		t.Fatalf("got %d sections, want 3 (null, .strtab, .symtab only)", len(f.Sections))
	}

	syms, err := f.Symbols()
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	if len(syms) != 1 {
		t.Fatalf("got %d symbols, want 1", len(syms))
	}
	sym := syms[0]
	if sym.Name != "g_counter" {
		t.Errorf("symbol name = %q, want %q", sym.Name, "g_counter")
	}
	if sym.Section != elf.SHN_COMMON {
		t.Errorf("symbol section = %v, want SHN_COMMON", sym.Section)
	}
	if sym.Size != 16 {
		t.Errorf("symbol size = %d, want 16", sym.Size)
	}
	if elf.ST_BIND(sym.Info) != elf.STB_GLOBAL {
		t.Errorf("symbol bind = %v, want STB_GLOBAL", elf.ST_BIND(sym.Info))
	}
}

// TestAssembleRejectsUnknownFragmentName covers the error path when a
// ticket member names a fragment absent from the store.
func TestAssembleRejectsUnknownFragmentName(t *testing.T) {
	st := newFakeStore()
	nameRef := st.internName("f")
	tk := ticket.Ticket{{Name: nameRef, Digest: hash.Digest{0xFF}, Linkage: linkage.External}}

	var out bytes.Buffer
	if err := Assemble(st, tk, &out, nil); err == nil {
		t.Fatal("expected error assembling a ticket whose fragment is absent from the store")
	}
}

// TestAssembleWarnsOnMissingSentinelNames exercises the warn callback
// path: a store with no llvm.global_ctors/llvm.global_dtors names still
// assembles successfully, just without the .init_array/.fini_array
// remap, and reports both as missing.
func TestAssembleWarnsOnMissingSentinelNames(t *testing.T) {
	st := newFakeStore()
	nameRef := st.internName("f")
	frag := buildFragment(t, fragment.SectionEntry{Kind: sectionkind.Text, Data: []byte{0x90}})
	digest := hash.Digest{1}
	st.addFragment(digest, frag)
	tk := ticket.Ticket{{Name: nameRef, Digest: digest, Linkage: linkage.External}}

	var warnings []string
	var out bytes.Buffer
	if err := Assemble(st, tk, &out, func(msg string) { warnings = append(warnings, msg) }); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("got %d warnings, want 2 (both sentinel names missing)", len(warnings))
	}
}
