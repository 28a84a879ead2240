// Package linkage enumerates the linkage kinds a ticket member can
// carry and projects each onto the ELF symbol binding it assembles to.
package linkage

import "debug/elf"

// Linkage is the closed set of linkage kinds a ticket member can have.
type Linkage uint8

const (
	External Linkage = iota
	Internal
	LinkOnce
	Common
	Weak
	Appending
)

var names = [...]string{
	External:  "external",
	Internal:  "internal",
	LinkOnce:  "linkonce",
	Common:    "common",
	Weak:      "weak",
	Appending: "appending",
}

func (l Linkage) String() string {
	if int(l) < len(names) {
		return names[l]
	}
	return "linkage(?)"
}

// Valid reports whether l is one of the recognized linkage kinds.
func (l Linkage) Valid() bool { return int(l) < len(names) }

// Binding projects a linkage kind onto the ELF symbol binding used when
// emitting the corresponding symbol table entry.
func (l Linkage) Binding() elf.SymBind {
	switch l {
	case Internal:
		return elf.STB_LOCAL
	case Weak, LinkOnce:
		return elf.STB_WEAK
	default:
		return elf.STB_GLOBAL
	}
}

// IsComdat reports whether members with this linkage must be grouped
// under a COMDAT section group.
func IsComdat(l Linkage) bool { return l == LinkOnce }
