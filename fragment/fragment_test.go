package fragment

import (
	"bytes"
	"testing"

	"github.com/rgal/llvm-project-prepo/fragment/sectionkind"
)

// S1: a single 4-byte Text section, four x86 NOPs, no fixups.
func TestS1SingleTextSection(t *testing.T) {
	entries := []SectionEntry{
		{Kind: sectionkind.Text, Data: []byte{0x90, 0x90, 0x90, 0x90}},
	}
	f, err := Build(entries)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sec, ok := f.Get(sectionkind.Text)
	if !ok {
		t.Fatal("Text section missing")
	}
	if !bytes.Equal(sec.Data(), []byte{0x90, 0x90, 0x90, 0x90}) {
		t.Fatalf("Data() = %v, want 4 NOPs", sec.Data())
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

// S2: Text plus an internal fixup targeting an 8-byte Data section.
func TestS2InternalFixupValid(t *testing.T) {
	entries := []SectionEntry{
		{Kind: sectionkind.Text, Data: []byte{0x90, 0x90, 0x90, 0x90},
			IFixups: []InternalFixup{{Section: sectionkind.Data, Type: 1, Offset: 2, Addend: 0}}},
		{Kind: sectionkind.Data, Data: make([]byte, 8)},
	}
	f, err := Build(entries)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	sec, _ := f.Get(sectionkind.Text)
	fx := sec.IFixups()
	if len(fx) != 1 || fx[0].Section != sectionkind.Data || fx[0].Offset != 2 {
		t.Fatalf("IFixups() = %+v, want one fixup targeting Data at offset 2", fx)
	}
}

func TestInternalFixupToAbsentSectionFails(t *testing.T) {
	entries := []SectionEntry{
		{Kind: sectionkind.Text, Data: []byte{0x90},
			IFixups: []InternalFixup{{Section: sectionkind.Data, Type: 1, Offset: 0, Addend: 0}}},
	}
	if _, err := Build(entries); err == nil {
		t.Fatal("expected error for fixup targeting absent section")
	}
}

func TestDuplicateKindFails(t *testing.T) {
	entries := []SectionEntry{
		{Kind: sectionkind.Text, Data: []byte{0x90}},
		{Kind: sectionkind.Text, Data: []byte{0x91}},
	}
	if _, err := Build(entries); err == nil {
		t.Fatal("expected error for duplicate section kind")
	}
}

// Invariant 1: round-trip of data and fixups through Build then Get.
func TestRoundTrip(t *testing.T) {
	entries := []SectionEntry{
		{Kind: sectionkind.ReadOnly, Data: []byte("hello, fragment")},
		{Kind: sectionkind.Text, Data: []byte{0xc3},
			XFixups: []ExternalFixup{{Name: 42, Type: 1, Offset: 0, Addend: -8}}},
	}
	f, err := Build(entries)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ro, ok := f.Get(sectionkind.ReadOnly)
	if !ok || string(ro.Data()) != "hello, fragment" {
		t.Fatalf("ReadOnly data mismatch: %q", ro.Data())
	}
	tx, ok := f.Get(sectionkind.Text)
	if !ok || !bytes.Equal(tx.Data(), []byte{0xc3}) {
		t.Fatalf("Text data mismatch")
	}
	xf := tx.XFixups()
	if len(xf) != 1 || xf[0].Name != 42 || xf[0].Addend != -8 {
		t.Fatalf("XFixups() = %+v", xf)
	}
}

// Invariant 2 & 3: alignment and precomputed-vs-actual size.
func TestAlignmentAndSize(t *testing.T) {
	entries := []SectionEntry{
		{Kind: sectionkind.BSS, Data: make([]byte, 3)},
		{Kind: sectionkind.Data, Data: make([]byte, 5),
			IFixups: []InternalFixup{{Section: sectionkind.BSS, Type: 0, Offset: 0, Addend: 0}}},
		{Kind: sectionkind.Text, Data: make([]byte, 1),
			XFixups: []ExternalFixup{{Name: 1, Type: 1, Offset: 0, Addend: 0}}},
	}

	want := sparseArrayHeaderPlusSections(entries)

	f, err := Build(entries)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := uint64(len(f.Bytes())); got != want {
		t.Fatalf("fragment size = %d, want %d", got, want)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	for _, e := range entries {
		sec, ok := f.Get(e.Kind)
		if !ok {
			t.Fatalf("section %v missing", e.Kind)
		}
		off, _ := f.arr.Lookup(uint8(e.Kind))
		if off%SectionAlign != 0 {
			t.Errorf("section %v header offset %d not aligned to %d", e.Kind, off, SectionAlign)
		}
		_ = sec
	}
}

// Invariant 4: sparse array bijection with the fragment's present kinds.
func TestSparseArrayBijection(t *testing.T) {
	entries := []SectionEntry{
		{Kind: sectionkind.Text, Data: []byte{0x90}},
		{Kind: sectionkind.BSS, Data: make([]byte, 4)},
		{Kind: sectionkind.Metadata, Data: []byte{1, 2}},
	}
	f, err := Build(entries)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got := f.Sections().Indices()
	want := []uint8{uint8(sectionkind.BSS), uint8(sectionkind.Text), uint8(sectionkind.Metadata)}
	// Indices() is ascending by key, so sort want the same way for comparison.
	sortUint8(want)
	if len(got) != len(want) {
		t.Fatalf("Indices() = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("Indices() = %v, want %v", got, want)
		}
	}
}

func sortUint8(s []uint8) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func sparseArrayHeaderPlusSections(entries []SectionEntry) uint64 {
	headerSize := uint64(8 + len(entries)*8)
	total := headerSize
	for _, e := range entries {
		total = alignUp(total, SectionAlign)
		total += e.sizeBytes()
	}
	return total
}

func alignUp(off, alignment uint64) uint64 {
	return (off + alignment - 1) &^ (alignment - 1)
}

func TestLoadRejectsTruncatedBlob(t *testing.T) {
	f, err := Build([]SectionEntry{{Kind: sectionkind.Text, Data: []byte{0x90, 0x90}}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	truncated := f.Bytes()[:len(f.Bytes())-1]
	if _, err := Load(truncated); err == nil {
		t.Fatal("expected error loading truncated fragment")
	}
}
