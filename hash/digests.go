package hash

// FunctionDigest computes fn's structural digest. The function body is
// walked in CFG order — a stack-based depth-first traversal from the
// entry block, visiting each block's successors in the order the
// terminator lists them — rather than in whatever order the caller
// happened to store its blocks. Two functions whose blocks are
// equivalent but stored in a different order therefore hash identically.
func FunctionDigest(m *Module, fn *Function) Digest {
	c := NewCalculator()
	c.writeTag(tagGlobalFunction)
	c.hashDataLayout(m.DataLayout)
	c.hashTriple(m.Triple)
	c.hashFunctionSignature(fn.Signature)

	if fn.Entry == nil {
		return c.Sum()
	}

	visited := make(map[*BasicBlock]bool)
	stack := []*BasicBlock{fn.Entry}
	visited[fn.Entry] = true

	for len(stack) > 0 {
		bb := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c.writeTag(tagBasicBlock)
		c.numberHash(uint64(c.identityNumber(bb)))
		for _, inst := range bb.Instructions {
			c.hashInstruction(inst)
		}

		// Push successors in reverse so they are visited in their
		// original, insertion-order sequence relative to each other
		// (last successor is pushed first, so the first successor pops
		// off the stack next).
		for i := len(bb.Successors) - 1; i >= 0; i-- {
			succ := bb.Successors[i]
			if !visited[succ] {
				visited[succ] = true
				stack = append(stack, succ)
			}
		}
	}

	return c.Sum()
}

// GlobalVariableDigest computes a structural digest over a global
// variable's identity.
func GlobalVariableDigest(m *Module, gv *GlobalVariable) Digest {
	c := NewCalculator()
	c.hashGlobalVariable(m, gv)
	return c.Sum()
}

// GlobalAliasDigest computes a structural digest over a global alias's
// identity.
func GlobalAliasDigest(ga *GlobalAlias) Digest {
	c := NewCalculator()
	c.hashGlobalAlias(ga)
	return c.Sum()
}
