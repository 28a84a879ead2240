// Package hash computes structural digests of IR-shaped values: types,
// constants, values, instructions and the function/global-variable/
// global-alias digests built from them. Every digest is an
// MD5 accumulation over a canonical byte encoding; each encoded category
// is prefixed with a tag byte so that, e.g., a constant and an
// instruction that happen to encode to the same bytes never collide.
package hash

// tag identifies the category of value about to be hashed. Tag bytes
// are assigned consecutively from 1, mirroring the HashKind enumeration
// they are grounded on: new categories get appended, existing ones never
// change value.
type tag byte

const (
	tagType tag = iota + 1
	tagConstant
	tagValue
	tagInstruction
	tagAPInt
	tagAPFloat
	tagStringRef
	tagAttributeEnum
	tagAttributeInt
	tagAttributeString
	tagAttributeList
	tagInlineAsm
	tagInlineAsmSideEffects
	tagInlineAsmAlignStack
	tagInlineAsmDialect
	tagRangeMetadata
	tagAtomicOrdering
	tagOperandBundle
	tagGEP
	tagAlloca
	tagLoad
	tagStore
	tagCmp
	tagCall
	tagInvoke
	tagInsertValue
	tagExtractValue
	tagFence
	tagAtomicCmpXchg
	tagAtomicRMW
	tagPHI
	tagFunctionSignature
	tagGlobalVariable
	tagGlobalAlias
	tagDatalayout
	tagTriple
	tagGlobalFunction
	tagBasicBlock

	tagSigGC
	tagSigSection
	tagSigVarArg
	tagSigCallingConv
	tagSigArg

	tagGVComdat
	tagGVConstant
	tagGVThreadLocalMode
	tagGVAlignment
	tagGVUnnamedAddr
	tagGVInitValue
	tagGVVisibility
	tagGVDLLStorageClass
	tagGVLinkage
)
