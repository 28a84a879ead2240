// Package sectionkind defines the closed enumeration of fragment section
// kinds, in the same spirit as goloader's objabi/symkind and
// objabi/reloctype: one tiny package, a const block, a couple of
// predicates. Values are extensible at the end only; existing values must
// never be renumbered since a Kind is part of the on-disk fragment layout.
package sectionkind

// Kind tags one section of a fragment.
type Kind uint8

const (
	BSS Kind = iota
	Common
	Data
	RelRo
	Text
	Mergeable1ByteCString
	Mergeable2ByteCString
	Mergeable4ByteCString
	MergeableConst4
	MergeableConst8
	MergeableConst16
	MergeableConst32
	MergeableConst
	ReadOnly
	ThreadBSS
	ThreadData
	ThreadLocal
	Metadata

	// numKinds must stay last; it is not a valid Kind value.
	numKinds
)

// Count is the number of defined kinds, i.e. the sparse array's key space.
const Count = int(numKinds)

var names = [numKinds]string{
	BSS:                    "bss",
	Common:                 "common",
	Data:                   "data",
	RelRo:                  "rel.ro",
	Text:                   "text",
	Mergeable1ByteCString:  "mergeable-1-byte-c-string",
	Mergeable2ByteCString:  "mergeable-2-byte-c-string",
	Mergeable4ByteCString:  "mergeable-4-byte-c-string",
	MergeableConst4:        "mergeable-const-4",
	MergeableConst8:        "mergeable-const-8",
	MergeableConst16:       "mergeable-const-16",
	MergeableConst32:       "mergeable-const-32",
	MergeableConst:         "mergeable-const",
	ReadOnly:               "rodata",
	ThreadBSS:              "thread-bss",
	ThreadData:             "thread-data",
	ThreadLocal:            "thread-local",
	Metadata:               "metadata",
}

func (k Kind) String() string {
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Valid reports whether k is a defined kind.
func (k Kind) Valid() bool { return k < numKinds }

// IsBSSLike reports whether a section of this kind carries no file data
// (BSS and thread-local BSS occupy virtual address space only).
func IsBSSLike(k Kind) bool {
	return k == BSS || k == ThreadBSS
}
