package insts

// Decoder decodes 32-bit instruction words.
type Decoder struct{}

// NewDecoder creates a new decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes one instruction word.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{Op: OpNop, Word: word}

	switch {
	case word == 0 || word == 0xFFFFFFFF:
		// Erased or uninitialised memory.
		inst.Op = OpIllegal
	case word == WordEcall:
		inst.Op = OpEcall
	case word&0x7F == OpcodeLoopi:
		inst.Op = OpLoopi
		inst.Iterations = (word >> 10) & MaxLoopIterations
		inst.BodyLen = (word >> 20) & MaxLoopBody
	}

	return inst
}
