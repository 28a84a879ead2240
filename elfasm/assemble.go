package elfasm

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io"

	"github.com/rgal/llvm-project-prepo/fragment"
	"github.com/rgal/llvm-project-prepo/fragment/align"
	"github.com/rgal/llvm-project-prepo/fragment/sectionkind"
	"github.com/rgal/llvm-project-prepo/internal/perr"
	"github.com/rgal/llvm-project-prepo/store"
	"github.com/rgal/llvm-project-prepo/ticket"
	"github.com/rgal/llvm-project-prepo/ticket/linkage"
)

// primaryOrder is the priority list used to pick, among the section
// kinds present in one ticket member's fragment, the one whose offset
// the member's own external symbol is bound to. Every other kind present
// gets a synthesized local symbol that exists only to anchor internal
// fixups aimed at that sibling section.
var primaryOrder = []sectionkind.Kind{
	sectionkind.Text,
	sectionkind.Data,
	sectionkind.ReadOnly,
	sectionkind.BSS,
	sectionkind.ThreadData,
	sectionkind.ThreadBSS,
}

func primaryKind(present map[sectionkind.Kind]*OutputSection) sectionkind.Kind {
	for _, k := range primaryOrder {
		if _, ok := present[k]; ok {
			return k
		}
	}
	for k := range present {
		return k
	}
	return sectionkind.BSS
}

type memberState struct {
	name           string
	isCommon       bool
	frag           *fragment.Fragment
	sectionsByKind map[sectionkind.Kind]*OutputSection
	homeSymbols    map[sectionkind.Kind]*Symbol
}

// Assemble gathers every fragment named by tk's members from st, merges
// their sections into ELF output sections (forming COMDAT groups for
// link-once members), and writes a complete ET_REL object to w. warn,
// if non-nil, is called with a human-readable message for each
// degraded-but-non-fatal condition (currently: a missing ctor/dtor
// sentinel name in the store's name index); elfasm itself never logs.
func Assemble(st store.Store, tk ticket.Ticket, w io.Writer, warn func(string)) error {
	special, missingNames, err := LoadSpecialNames(st)
	if err != nil {
		return err
	}
	if warn != nil {
		for _, name := range missingNames {
			warn("store has no interned name for sentinel " + name)
		}
	}

	strtab := NewStringTable()
	strtab.Intern(".strtab")
	strtab.Intern(".symtab")
	symtab := NewSymbolTable()

	sections := make(map[SectionID]*OutputSection)
	var sectionOrder []*OutputSection
	groups := make(map[store.Ref]*GroupInfo)
	var groupOrder []*GroupInfo
	symSection := make(map[*Symbol]*OutputSection)
	externSymbols := make(map[fragment.NameRef]*Symbol)

	states := make([]memberState, len(tk))

	// Pass 1: resolve each member's fragment, and for non-common members
	// create (or find) every output section its sections need and
	// attach linkonce sections to their group, before any data moves.
	for i, m := range tk {
		name, ok, err := st.NameAt(m.Name)
		if err != nil {
			return err
		}
		if !ok {
			return perr.New(perr.Missing, "ticket member name not found in store")
		}

		ref, ok, err := st.FragmentByDigest(m.Digest)
		if err != nil {
			return err
		}
		if !ok {
			return perr.New(perr.Missing, "ticket member fragment not found in store")
		}
		blob, err := st.LoadFragmentBytes(ref)
		if err != nil {
			return err
		}
		frag, err := fragment.Load(blob)
		if err != nil {
			return err
		}

		if m.Linkage == linkage.Common {
			sec, ok := frag.Get(sectionkind.BSS)
			if !ok || frag.NumSections() != 1 {
				return perr.New(perr.InvariantViolation,
					"common-linkage ticket member must have exactly one BSS section")
			}
			sym := &Symbol{
				Name: name, Bind: m.Linkage.Binding(), Type: elf.STT_OBJECT,
				Shndx: elf.SHN_COMMON, Size: uint64(len(sec.Data())),
			}
			symtab.Add(sym)
			states[i] = memberState{name: name, isCommon: true}
			continue
		}

		linkonce := m.Linkage == linkage.LinkOnce
		secByKind := make(map[sectionkind.Kind]*OutputSection)
		for _, kb := range frag.Sections().Indices() {
			kind := sectionkind.Kind(kb)
			mapping, id, ok := sectionMapping(kind, m.Name, i, linkonce, special)
			if !ok {
				return perr.New(perr.InvariantViolation, "fragment section kind has no defined ELF mapping")
			}
			osec, exists := sections[id]
			if !exists {
				osec = &OutputSection{ID: id, Type: mapping.typ, Flags: mapping.flags, Alignment: mapping.align}
				sections[id] = osec
				sectionOrder = append(sectionOrder, osec)
			}
			if linkonce {
				grp, ok := groups[m.Name]
				if !ok {
					grp = &GroupInfo{SignatureName: name}
					groups[m.Name] = grp
					groupOrder = append(groupOrder, grp)
				}
				if osec.Group == nil {
					osec.Group = grp
					grp.Members = append(grp.Members, osec)
				}
			}
			secByKind[kind] = osec
		}
		states[i] = memberState{
			name: name, frag: frag, sectionsByKind: secByKind,
			homeSymbols: make(map[sectionkind.Kind]*Symbol),
		}
	}

	// Pass 2: append fragment section data into its output section and
	// translate fixups into relocations, now that every section a
	// fixup might target (including ones discovered later in the same
	// fragment) has already been created.
	for i, m := range tk {
		st2 := &states[i]
		if st2.isCommon || st2.frag == nil {
			continue
		}
		primary := primaryKind(st2.sectionsByKind)
		for _, kb := range st2.frag.Sections().Indices() {
			kind := sectionkind.Kind(kb)
			osec := st2.sectionsByKind[kind]
			section, _ := st2.frag.Get(kind)
			data := section.Data()

			var base uint64
			if osec.IsNoBits() {
				base = osec.AppendZeroFill(uint64(len(data)), osec.Alignment)
			} else {
				base = osec.Append(data, osec.Alignment)
			}

			var sym *Symbol
			if kind == primary {
				symType := elf.STT_OBJECT
				if kind == sectionkind.Text {
					symType = elf.STT_FUNC
				}
				sym = &Symbol{Name: st2.name, Bind: m.Linkage.Binding(), Type: symType, Value: base, Size: uint64(len(data))}
				if osec.Group != nil && osec.Group.SignatureSymbol == nil {
					osec.Group.SignatureSymbol = sym
				}
			} else {
				sym = &Symbol{Bind: elf.STB_LOCAL, Type: elf.STT_NOTYPE, Value: base, Size: uint64(len(data))}
			}
			symtab.Add(sym)
			symSection[sym] = osec
			st2.homeSymbols[kind] = sym
		}

		// Relocations are emitted only after every section of this member
		// has its home symbol, so an internal fixup may target a section
		// of any kind in the same fragment.
		for _, kb := range st2.frag.Sections().Indices() {
			kind := sectionkind.Kind(kb)
			osec := st2.sectionsByKind[kind]
			section, _ := st2.frag.Get(kind)
			base := st2.homeSymbols[kind].Value

			for _, fx := range section.IFixups() {
				target, ok := st2.homeSymbols[fx.Section]
				if !ok {
					return perr.New(perr.InvariantViolation,
						"internal fixup targets a section kind not present in its own fragment")
				}
				osec.AddReloc(base+uint64(fx.Offset), target, uint32(fx.Type), int64(fx.Addend))
			}
			for _, fx := range section.XFixups() {
				extSym, ok := externSymbols[fx.Name]
				if !ok {
					extName, found, err := st.NameAt(store.Ref(fx.Name))
					if err != nil {
						return err
					}
					if !found {
						return perr.New(perr.Missing, "external fixup references a name absent from the store")
					}
					extSym = &Symbol{Name: extName, Bind: elf.STB_GLOBAL, Type: elf.STT_NOTYPE, Shndx: elf.SHN_UNDEF}
					symtab.Add(extSym)
					externSymbols[fx.Name] = extSym
				}
				osec.AddReloc(base+uint64(fx.Offset), extSym, uint32(fx.Type), int64(fx.Addend))
			}
		}
	}

	// Assign final section-header indices: null=0, .strtab=1, .symtab=2,
	// then output sections in creation order, each preceded by its
	// group's header (the first time that group is encountered) and
	// followed immediately by its relocation section when it has one.
	idx := uint32(3)
	for _, osec := range sectionOrder {
		if osec.Group != nil && osec.Group.index == 0 {
			osec.Group.index = idx
			idx++
		}
		osec.index = idx
		idx++
		// Every section capable of holding file content gets a
		// relocation section, even an empty one (a Text-only,
		// fixup-free fragment still gets a .rela.text). NOBITS sections
		// can never carry relocations.
		if !osec.IsNoBits() {
			osec.relIndex = idx
			idx++
		}
	}
	numSections := idx

	sorted := symtab.Sort()
	firstNonLocal := FirstNonLocal(sorted)
	for sym, osec := range symSection {
		sym.Shndx = elf.SectionIndex(osec.index)
	}

	headers := make([]elf.Section64, numSections)

	// Output-section and relocation-section headers.
	for _, osec := range sectionOrder {
		headers[osec.index] = elf.Section64{
			Name:      strtab.Intern(osec.ID.Name),
			Type:      uint32(osec.Type),
			Flags:     uint64(osec.Flags),
			Link:      0,
			Info:      0,
			Addralign: osec.Alignment,
			Entsize:   0,
			Size:      osec.Size,
		}
		if !osec.IsNoBits() {
			headers[osec.relIndex] = elf.Section64{
				Name:      strtab.Intern(".rela" + osec.ID.Name),
				Type:      uint32(elf.SHT_RELA),
				Flags:     0,
				Link:      2,
				Info:      osec.index,
				Addralign: 8,
				Entsize:   24,
				Size:      uint64(len(osec.Relocs)) * 24,
			}
		}
	}

	// Group-section headers, now that signature symbol indices are final.
	groupName := strtab.Intern(".group")
	for _, grp := range groupOrder {
		sigIdx := uint32(0)
		if grp.SignatureSymbol != nil {
			sigIdx = grp.SignatureSymbol.Index()
		}
		headers[grp.index] = elf.Section64{
			Name:      groupName,
			Type:      uint32(elf.SHT_GROUP),
			Flags:     0,
			Link:      2,
			Info:      sigIdx,
			Addralign: 4,
			Entsize:   4,
			Size:      uint64(grp.groupBodyWords()) * 4,
		}
	}

	// Symbol table body (finishes interning every symbol name).
	var symtabBody bytes.Buffer
	if _, err := symtab.Write(&symtabBody, strtab); err != nil {
		return perr.Wrap(perr.IO, err, "serializing symbol table")
	}

	// Now that strtab is fully populated, lay out file offsets and write
	// the body in spec order: section data (+rela), group bodies,
	// strtab, symtab, section header table.
	var body bytes.Buffer
	const headerSize = 64

	for _, osec := range sectionOrder {
		if !osec.IsNoBits() {
			pad := align.Padding(uint64(body.Len()), osec.Alignment)
			body.Write(make([]byte, pad))
		}
		offset := headerSize + uint64(body.Len())
		headers[osec.index].Off = offset
		if !osec.IsNoBits() {
			body.Write(osec.Data)
		}

		if !osec.IsNoBits() {
			pad := align.Padding(uint64(body.Len()), 8)
			body.Write(make([]byte, pad))
			relOffset := headerSize + uint64(body.Len())
			headers[osec.relIndex].Off = relOffset
			writeRelocs(&body, osec.Relocs)
		}
	}

	for _, grp := range groupOrder {
		pad := align.Padding(uint64(body.Len()), 4)
		body.Write(make([]byte, pad))
		offset := headerSize + uint64(body.Len())
		headers[grp.index].Off = offset
		if _, err := writeGroupBody(&body, grp); err != nil {
			return perr.Wrap(perr.IO, err, "writing group section body")
		}
	}

	strtabOffset := headerSize + uint64(body.Len())
	body.Write(strtab.Bytes())
	headers[1] = elf.Section64{
		Name: strtab.offsets[".strtab"], Type: uint32(elf.SHT_STRTAB), Off: strtabOffset,
		Size: uint64(strtab.Size()), Addralign: 1,
	}

	pad := align.Padding(uint64(body.Len()), 8)
	body.Write(make([]byte, pad))
	symtabOffset := headerSize + uint64(body.Len())
	body.Write(symtabBody.Bytes())
	headers[2] = elf.Section64{
		Name: strtab.offsets[".symtab"], Type: uint32(elf.SHT_SYMTAB), Off: symtabOffset,
		Size: uint64(symtabBody.Len()), Link: 1, Info: firstNonLocal,
		Addralign: 8, Entsize: uint64(elf.Sym64Size),
	}

	pad = align.Padding(uint64(body.Len()), 8)
	body.Write(make([]byte, pad))
	shoff := headerSize + uint64(body.Len())
	for i := range headers {
		writeSectionHeader(&body, headers[i])
	}

	hdr := buildELFHeader(shoff, uint16(numSections))

	if _, err := w.Write(hdr[:]); err != nil {
		return perr.Wrap(perr.IO, err, "writing ELF header")
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return perr.Wrap(perr.IO, err, "writing ELF body")
	}
	return nil
}

func writeRelocs(w io.Writer, relocs []pendingReloc) {
	buf := make([]byte, 24)
	for _, r := range relocs {
		binary.LittleEndian.PutUint64(buf[0:8], r.Offset)
		binary.LittleEndian.PutUint64(buf[8:16], elf.R_INFO(r.Target.Index(), r.Type))
		binary.LittleEndian.PutUint64(buf[16:24], uint64(r.Addend))
		w.Write(buf)
	}
}

func writeSectionHeader(w io.Writer, s elf.Section64) {
	buf := make([]byte, 64)
	binary.LittleEndian.PutUint32(buf[0:4], s.Name)
	binary.LittleEndian.PutUint32(buf[4:8], s.Type)
	binary.LittleEndian.PutUint64(buf[8:16], s.Flags)
	binary.LittleEndian.PutUint64(buf[16:24], s.Addr)
	binary.LittleEndian.PutUint64(buf[24:32], s.Off)
	binary.LittleEndian.PutUint64(buf[32:40], s.Size)
	binary.LittleEndian.PutUint32(buf[40:44], s.Link)
	binary.LittleEndian.PutUint32(buf[44:48], s.Info)
	binary.LittleEndian.PutUint64(buf[48:56], s.Addralign)
	binary.LittleEndian.PutUint64(buf[56:64], s.Entsize)
	w.Write(buf)
}

func buildELFHeader(shoff uint64, shnum uint16) [64]byte {
	var buf [64]byte
	copy(buf[0:4], elf.ELFMAG)
	buf[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	buf[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	buf[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	buf[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)
	binary.LittleEndian.PutUint16(buf[16:18], uint16(elf.ET_REL))
	binary.LittleEndian.PutUint16(buf[18:20], uint16(elf.EM_X86_64))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(elf.EV_CURRENT))
	binary.LittleEndian.PutUint64(buf[24:32], 0) // e_entry
	binary.LittleEndian.PutUint64(buf[32:40], 0) // e_phoff
	binary.LittleEndian.PutUint64(buf[40:48], shoff)
	binary.LittleEndian.PutUint32(buf[48:52], 0) // e_flags
	binary.LittleEndian.PutUint16(buf[52:54], 64) // e_ehsize
	binary.LittleEndian.PutUint16(buf[54:56], 0)  // e_phentsize
	binary.LittleEndian.PutUint16(buf[56:58], 0)  // e_phnum
	binary.LittleEndian.PutUint16(buf[58:60], 64) // e_shentsize
	binary.LittleEndian.PutUint16(buf[60:62], shnum)
	binary.LittleEndian.PutUint16(buf[62:64], 1) // e_shstrndx
	return buf
}
