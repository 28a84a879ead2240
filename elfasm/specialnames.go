package elfasm

import "github.com/rgal/llvm-project-prepo/store"

// SpecialNames resolves the two sentinel member names (llvm.global_ctors,
// llvm.global_dtors) that remap to .init_array/.fini_array instead of
// following the normal section-kind mapping, to their interned-name
// references in the store.
type SpecialNames struct {
	CtorAddr store.Ref
	DtorAddr store.Ref
	hasCtor  bool
	hasDtor  bool
}

// LoadSpecialNames looks up the two sentinel names in st's interned-name
// set. A name absent from the index degrades gracefully: the
// corresponding field simply never matches any real ticket member,
// falling back to the ordinary kind-based section mapping. Missing
// reports which of the two sentinel names, if any, could not be
// resolved, so the CLI layer can log a warning; this package never
// logs.
func LoadSpecialNames(st store.Store) (SpecialNames, []string, error) {
	var sn SpecialNames
	var missing []string

	ctor, ok, err := st.NameAddress("llvm.global_ctors")
	if err != nil {
		return SpecialNames{}, nil, err
	}
	if ok {
		sn.CtorAddr, sn.hasCtor = ctor, true
	} else {
		missing = append(missing, "llvm.global_ctors")
	}

	dtor, ok, err := st.NameAddress("llvm.global_dtors")
	if err != nil {
		return SpecialNames{}, nil, err
	}
	if ok {
		sn.DtorAddr, sn.hasDtor = dtor, true
	} else {
		missing = append(missing, "llvm.global_dtors")
	}

	return sn, missing, nil
}
