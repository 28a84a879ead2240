package elfasm

import (
	"debug/elf"
	"encoding/binary"
	"io"
	"sort"
)

// Symbol is one entry bound for .symtab. index is assigned by Sort and
// is invalid (use only before the table has been sorted) as zero.
type Symbol struct {
	Name  string
	Bind  elf.SymBind
	Type  elf.SymType
	Shndx elf.SectionIndex
	Value uint64
	Size  uint64

	index uint32
}

// Index returns this symbol's final index into .symtab. Only valid after
// SymbolTable.Sort has run.
func (s *Symbol) Index() uint32 { return s.index }

// SymbolTable accumulates symbols in insertion order and, once complete,
// sorts them into their final locals-first layout.
type SymbolTable struct {
	syms []*Symbol
}

// NewSymbolTable returns an empty symbol table. The mandatory index-0
// null symbol is implicit and handled by Write; callers never add it.
func NewSymbolTable() *SymbolTable { return &SymbolTable{} }

// Add appends sym to the table and returns it, so callers can read its
// final Index() once Sort has run.
func (t *SymbolTable) Add(sym *Symbol) *Symbol {
	t.syms = append(t.syms, sym)
	return sym
}

// Sort stably reorders the table so every STB_LOCAL symbol precedes every
// non-local one, then assigns each symbol its final 1-based .symtab
// index (index 0 is the implicit null symbol).
// Returns the sorted slice.
func (t *SymbolTable) Sort() []*Symbol {
	sort.SliceStable(t.syms, func(i, j int) bool {
		return t.syms[i].Bind == elf.STB_LOCAL && t.syms[j].Bind != elf.STB_LOCAL
	})
	for i, s := range t.syms {
		s.index = uint32(i + 1)
	}
	return t.syms
}

// FirstNonLocal returns the .symtab index of the first non-local symbol
// in a Sort-ed table, i.e. the value .symtab's sh_info must carry. If
// every symbol is local, it returns one past the last index (the
// conventional "no non-locals" value).
func FirstNonLocal(sorted []*Symbol) uint32 {
	for _, s := range sorted {
		if s.Bind != elf.STB_LOCAL {
			return s.index
		}
	}
	return uint32(len(sorted) + 1)
}

// Write serializes the table (including its implicit leading null
// symbol) to w, interning every symbol's name into strtab, and returns
// the number of bytes written. The table must already be Sort-ed.
func (t *SymbolTable) Write(w io.Writer, strtab *StringTable) (int64, error) {
	var written int64
	null := make([]byte, elf.Sym64Size)
	n, err := w.Write(null)
	written += int64(n)
	if err != nil {
		return written, err
	}
	buf := make([]byte, elf.Sym64Size)
	for _, s := range t.syms {
		rec := elf.Sym64{
			Name:  strtab.Intern(s.Name),
			Info:  elf.ST_INFO(s.Bind, s.Type),
			Other: 0,
			Shndx: uint16(s.Shndx),
			Value: s.Value,
			Size:  s.Size,
		}
		putSym64(buf, rec)
		n, err := w.Write(buf)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func putSym64(buf []byte, s elf.Sym64) {
	binary.LittleEndian.PutUint32(buf[0:4], s.Name)
	buf[4] = s.Info
	buf[5] = s.Other
	binary.LittleEndian.PutUint16(buf[6:8], s.Shndx)
	binary.LittleEndian.PutUint64(buf[8:16], s.Value)
	binary.LittleEndian.PutUint64(buf[16:24], s.Size)
}
