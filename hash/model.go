package hash

// This file defines the closed, tagged-variant input model the
// Calculator walks. Building one of these trees from an actual
// compiler's in-memory IR is the front end's job and out of scope here;
// the Calculator only ever sees these types.

// TypeKind is the closed set of type categories the hasher recognizes.
type TypeKind uint8

const (
	VoidType TypeKind = iota
	FloatType
	DoubleType
	X86FP80Type
	FP128Type
	PPCFP128Type
	LabelType
	MetadataType
	TokenType
	IntegerType
	FunctionType
	PointerType
	StructType
	ArrayType
	VectorType
)

// Type is a flattened representation of an IR type. Only the fields
// relevant to Kind are populated; the rest are zero.
type Type struct {
	Kind TypeKind

	BitWidth uint32 // IntegerType

	Params []*Type // FunctionType
	Return *Type   // FunctionType
	VarArg bool    // FunctionType

	AddressSpace uint32 // PointerType

	Elements []*Type // StructType
	Packed   bool    // StructType

	ElementType *Type  // ArrayType, VectorType
	NumElements uint64 // ArrayType, VectorType
}

// ConstantKind is the closed set of constant categories the hasher
// recognizes.
type ConstantKind uint8

const (
	ConstUndef ConstantKind = iota
	ConstTokenNone
	ConstAggregateZero
	ConstPointerNull
	ConstInt
	ConstFP
	ConstDataSequential // raw bytes backing a ConstantDataArray/Vector
	ConstArray
	ConstStruct
	ConstVector
	ConstExpr
	ConstBlockAddress
)

// APInt is an arbitrary-precision integer, stored as its own bit width
// plus a little-endian limb sequence.
type APInt struct {
	BitWidth uint32
	Words    []uint64
}

// APFloat is an arbitrary-precision float, represented by the bit
// pattern of its semantics. The exact float semantics kind is carried in
// SemanticsID, an opaque discriminator the front end assigns; the hasher
// never interprets it numerically.
type APFloat struct {
	SemanticsID uint8
	Bits        APInt
}

// Module carries the two module-wide fields that prefix every
// function/global/alias digest.
type Module struct {
	DataLayout string
	Triple     string
}

// Comdat identifies a COMDAT group a global variable belongs to.
type Comdat struct {
	Name          string
	SelectionKind uint8
}

// GlobalVariable is the model of a global value the hasher may need to
// recurse into. GUID is supplied by the front end (computing LLVM's
// notion of a global value's unique identifier is outside this
// package's scope); it is only consulted on repeat references to the
// same global within one digest computation.
type GlobalVariable struct {
	GUID                     uint64
	Name                     string
	ValueType                *Type
	IsConstant               bool
	ThreadLocalMode          uint8
	Alignment                uint32
	UnnamedAddr              uint8
	Comdat                   *Comdat
	HasDefinitiveInitializer bool
	Initializer              *Constant
}

// Constant is a flattened representation of an IR constant.
type Constant struct {
	Type *Type
	Kind ConstantKind

	// GlobalVar is non-nil when this constant denotes a reference to a
	// GlobalValue (function, global variable, or alias). Per the
	// original hasher, referencing any GlobalValue short-circuits after
	// the type hash unless it is a GlobalVariable with a definitive
	// initializer, in which case GlobalVar carries that detail.
	GlobalVar *GlobalVariable

	Int     APInt   // ConstInt
	Float   APFloat // ConstFP
	RawData []byte  // ConstDataSequential

	Elements []*Constant // ConstArray, ConstStruct, ConstVector, ConstExpr

	BlockAddressFunc  *Value      // ConstBlockAddress
	BlockAddressBlock *BasicBlock // ConstBlockAddress
}

// ValueKind is the closed set of ways a Value can be hashed.
type ValueKind uint8

const (
	// ValueIsConstant delegates to the wrapped Constant.
	ValueIsConstant ValueKind = iota
	// ValueIsInlineAsm delegates to the wrapped InlineAsm.
	ValueIsInlineAsm
	// ValueIsNamedGlobal hashes GlobalName directly: names are the
	// cross-module link, so a reference to a named global variable,
	// function, or alias is identified by name rather than by content
	// or by a canonicalized occurrence number.
	ValueIsNamedGlobal
	// ValueIsOther is any other identity-bearing value (an argument or
	// an instruction's result): it is hashed as a canonical,
	// first-seen-order number, never by name or content.
	ValueIsOther
)

// Value is a reference to an operand. Every distinct SSA value the
// front end wants to refer to more than once must be represented by
// exactly one *Value, reused at every use site: the Calculator
// canonicalizes ValueIsOther values by pointer identity.
type Value struct {
	Kind       ValueKind
	Constant   *Constant
	InlineAsm  *InlineAsm
	GlobalName string // ValueIsNamedGlobal
}

// InlineAsm is a flattened representation of an inline-asm value.
type InlineAsm struct {
	FuncType     *Type
	AsmString    string
	Constraints  string
	HasSideEffects bool
	IsAlignStack bool
	Dialect      uint8
}

// AttributeKind distinguishes the three shapes an LLVM Attribute can
// take.
type AttributeKind uint8

const (
	AttrEnum AttributeKind = iota
	AttrInt
	AttrString
)

// Attribute is one entry of an AttributeList.
type Attribute struct {
	Kind AttributeKind

	EnumKind uint32 // AttrEnum, AttrInt: the attribute's well-known kind
	IntValue uint64 // AttrInt

	StringKind  string // AttrString
	StringValue string // AttrString
}

// AttributeList is the flattened sequence of attributes attached to a
// function, call, or invoke.
type AttributeList []Attribute

// OperandBundle is a call/invoke operand bundle; only its tag and input
// count participate in the hash, not the input values themselves.
type OperandBundle struct {
	Tag       string
	NumInputs int
}

// AtomicOrdering mirrors LLVM's memory-ordering enumeration. The
// hasher never interprets its value, only encodes it.
type AtomicOrdering uint8

// OpcodeFamily groups opcodes that carry hash-relevant extra state
// beyond their generic operand list. It stands in for the chain of
// dyn_cast checks the original hasher performs against the
// instruction's concrete subclass.
type OpcodeFamily uint8

const (
	FamilyGeneric OpcodeFamily = iota
	FamilyGetElementPtr
	FamilyAlloca
	FamilyLoad
	FamilyStore
	FamilyCmp
	FamilyCall
	FamilyInvoke
	FamilyInsertValue
	FamilyExtractValue
	FamilyFence
	FamilyAtomicCmpXchg
	FamilyAtomicRMW
	FamilyPHI
)

// Operand is one typed use of an instruction.
type Operand struct {
	Type  *Type
	Value *Value
}

// Instruction is a flattened representation of one IR instruction.
// Fields outside Operands/ResultType/SubclassData/OpcodeCode are only
// meaningful for the OpcodeFamily they are documented against; the
// Calculator reads only the ones matching OpcodeFamily.
type Instruction struct {
	OpcodeCode   uint32
	OpcodeFamily OpcodeFamily
	ResultType   *Type
	SubclassData uint32
	Operands     []Operand

	// FamilyGetElementPtr, FamilyAlloca
	SourceElementType *Type

	// FamilyAlloca
	AllocaAlign uint32

	// FamilyLoad
	LoadVolatile      bool
	LoadAlign         uint32
	LoadOrdering      AtomicOrdering
	LoadSyncScope     uint8
	LoadRangeMetadata []APInt

	// FamilyStore
	StoreVolatile  bool
	StoreAlign     uint32
	StoreOrdering  AtomicOrdering
	StoreSyncScope uint8

	// FamilyCmp
	CmpPredicate uint32

	// FamilyCall
	CallTailCall            bool
	CallAttributes          AttributeList
	CallOperandBundles      []OperandBundle
	CallRangeMetadata       []APInt
	CallCalledFunctionName  string // "" if not a direct call to a named function

	// FamilyInvoke
	InvokeCallingConv         uint32
	InvokeAttributes          AttributeList
	InvokeOperandBundles      []OperandBundle
	InvokeRangeMetadata       []APInt
	InvokeCalledFunctionName  string

	// FamilyInsertValue, FamilyExtractValue
	Indices []uint32

	// FamilyFence
	FenceOrdering  AtomicOrdering
	FenceSyncScope uint8

	// FamilyAtomicCmpXchg
	AtomicCmpXchgVolatile       bool
	AtomicCmpXchgWeak           bool
	AtomicCmpXchgSuccessOrdering AtomicOrdering
	AtomicCmpXchgFailureOrdering AtomicOrdering
	AtomicCmpXchgSyncScope       uint8

	// FamilyAtomicRMW
	AtomicRMWOp        uint32
	AtomicRMWVolatile  bool
	AtomicRMWOrdering  AtomicOrdering
	AtomicRMWSyncScope uint8

	// FamilyPHI: PHIIncomingBlocks[i] is the incoming block for
	// Operands[i]'s value.
	PHIIncomingBlocks []*BasicBlock
}

// BasicBlock is a flattened basic block: its instructions in program
// order, plus the successor blocks its terminator transfers control to
// (used only to drive the CFG walk, not hashed directly — successor
// blocks that are also used as operands are hashed via Operands).
type BasicBlock struct {
	Instructions []*Instruction
	Successors   []*BasicBlock
}

// FunctionSignature is the part of a function's identity that does not
// depend on its body.
type FunctionSignature struct {
	Attributes   AttributeList
	HasGC        bool
	GCName       string
	HasSection   bool
	SectionName  string
	CallingConv  uint32
	VarArg       bool
	FuncType     *Type
	Args         []*Value
}

// Function is a complete function body: its signature plus its entry
// block, from which the rest of the CFG is reachable via Successors.
type Function struct {
	Signature FunctionSignature
	Entry     *BasicBlock
}

// GlobalAlias is a flattened representation of an IR global alias.
type GlobalAlias struct {
	ValueType       *Type
	Linkage         uint8
	Visibility      uint8
	ThreadLocalMode uint8
	Alignment       uint32
	UnnamedAddr     uint8
	DLLStorageClass uint8
	Aliasee         *Constant
}
