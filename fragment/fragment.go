// Package fragment implements the content-addressed, alignment-sensitive
// binary container: an immutable blob whose head is a sparse-array index
// from section kind to an offset, locating each section's
// header+data+fixups within the same blob.
package fragment

import (
	"sort"

	"github.com/rgal/llvm-project-prepo/fragment/align"
	"github.com/rgal/llvm-project-prepo/fragment/sectionkind"
	"github.com/rgal/llvm-project-prepo/fragment/sparsearray"
	"github.com/rgal/llvm-project-prepo/internal/perr"
)

// Fragment is an immutable, position-independent, contiguous binary
// record. It is safe to share a *Fragment across readers without copying
// its buffer: nothing inside it is ever mutated after Build/Load returns.
type Fragment struct {
	buf []byte
	arr *sparsearray.SparseArray
}

// Bytes returns the fragment's raw on-disk image, suitable for writing
// into the store keyed by its content digest.
func (f *Fragment) Bytes() []byte { return f.buf }

// NumSections returns the number of sections present in the fragment.
func (f *Fragment) NumSections() int { return f.arr.Len() }

// Sections exposes the fragment's section-kind index.
func (f *Fragment) Sections() *sparsearray.SparseArray { return f.arr }

// Get returns a view of the section for kind, if present.
func (f *Fragment) Get(kind sectionkind.Kind) (Section, bool) {
	off, ok := f.arr.Lookup(uint8(kind))
	if !ok {
		return Section{}, false
	}
	return Section{buf: f.buf[off:], baseOff: off}, true
}

// Build constructs a new Fragment from entries, which must name distinct
// section kinds. Construction either produces a fully valid blob or
// fails outright; there is no partial result.
func Build(entries []SectionEntry) (*Fragment, error) {
	seen := make(map[sectionkind.Kind]bool, len(entries))
	kinds := make([]uint8, 0, len(entries))
	for _, e := range entries {
		if !e.Kind.Valid() {
			return nil, perr.New(perr.InvariantViolation, "unknown section kind")
		}
		if seen[e.Kind] {
			return nil, perr.New(perr.InvariantViolation, "duplicate section kind in fragment entries")
		}
		seen[e.Kind] = true
		kinds = append(kinds, uint8(e.Kind))
	}
	for _, e := range entries {
		for _, fx := range e.IFixups {
			if !seen[fx.Section] {
				return nil, perr.New(perr.InvariantViolation,
					"internal fixup references a section not present in this fragment")
			}
		}
	}

	sorted := append([]SectionEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Kind < sorted[j].Kind })

	headerSize := sparsearray.SizeBytes(len(sorted))
	total := headerSize
	for _, e := range sorted {
		total = align.Offset(total, SectionAlign)
		total += e.sizeBytes()
	}

	buf := make([]byte, total)
	copy(buf[:headerSize], sparsearray.New(kinds).Bytes())
	arr, err := sparsearray.Wrap(buf[:headerSize])
	if err != nil {
		return nil, perr.Wrap(perr.Allocation, err, "failed to build fragment header")
	}

	pos := headerSize
	for _, e := range sorted {
		pos = align.Offset(pos, SectionAlign)
		size := e.sizeBytes()
		writeSection(buf[pos:pos+size], pos, e)
		arr.Set(uint8(e.Kind), pos)
		pos += size
	}
	if pos != total {
		return nil, perr.New(perr.Allocation, "fragment construction size mismatch")
	}

	return &Fragment{buf: buf, arr: arr}, nil
}

// Load wraps an existing serialized fragment blob (as read back from the
// store) without copying it.
func Load(blob []byte) (*Fragment, error) {
	arr, err := sparsearray.Wrap(blob)
	if err != nil {
		return nil, perr.Wrap(perr.Format, err, "failed to read fragment header")
	}
	f := &Fragment{buf: blob, arr: arr}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks, for every kind whose bit is set, that its offset slot
// is filled in (it points past the sparse-array header), that the offset
// is aligned for a section header, and that the section's header and body
// lie within the blob. Sub-array positions are not stored in the blob:
// Section's accessors derive them by alignment, so they need no check.
func (f *Fragment) Validate() error {
	for _, k := range f.arr.Indices() {
		off, ok := f.arr.Lookup(k)
		if !ok || off < f.arr.SizeBytes() {
			return perr.New(perr.InvariantViolation, "sparse array bitmap/slot mismatch")
		}
		if off%SectionAlign != 0 {
			return perr.New(perr.InvariantViolation, "section header is not correctly aligned")
		}
		if off+SectionHeaderBytes > uint64(len(f.buf)) {
			return perr.New(perr.InvariantViolation, "section header overruns fragment blob")
		}
		s := Section{buf: f.buf[off:], baseOff: off}
		if off+s.SizeBytes() > uint64(len(f.buf)) {
			return perr.New(perr.InvariantViolation, "section body overruns fragment blob")
		}
	}
	return nil
}
