// Package insts provides the instruction words understood by the stand-in
// OTBN core and their decoding.
//
// Only the control-flow shape of a program is modelled: where it stops,
// where it loops and which words are invalid. Everything else is a no-op.
package insts

// Op represents a decoded operation.
type Op uint8

// Operations.
const (
	OpUnknown Op = iota
	OpNop
	OpLoopi
	OpEcall
	OpIllegal
)

func (o Op) String() string {
	switch o {
	case OpNop:
		return "nop"
	case OpLoopi:
		return "loopi"
	case OpEcall:
		return "ecall"
	case OpIllegal:
		return "illegal"
	default:
		return "unknown"
	}
}

// Encodings.
const (
	// WordEcall ends execution.
	WordEcall uint32 = 0x00000073
	// WordNop is a canonical no-op (addi x0, x0, 0).
	WordNop uint32 = 0x00000013
	// OpcodeLoopi is the major opcode of LOOPI in bits 6:0.
	OpcodeLoopi uint32 = 0x7B

	// MaxLoopIterations is the largest iteration count a LOOPI can encode.
	MaxLoopIterations = 1<<10 - 1
	// MaxLoopBody is the largest body length a LOOPI can encode.
	MaxLoopBody = 1<<12 - 1
)

// Instruction represents a decoded instruction word.
type Instruction struct {
	Op   Op
	Word uint32

	// Loop fields, valid for OpLoopi.
	Iterations uint32 // bits 19:10
	BodyLen    uint32 // bits 31:20, in instructions
}

// EncodeLoopi builds a LOOPI word. Out-of-range fields are truncated.
func EncodeLoopi(iterations, bodyLen uint32) uint32 {
	return (bodyLen&MaxLoopBody)<<20 | (iterations&MaxLoopIterations)<<10 | OpcodeLoopi
}
