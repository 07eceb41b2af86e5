package benchmarks

import "github.com/sarchlab/rtlsim/insts"

// GetMicrobenchmarks returns the standard set of microbenchmarks for the
// core. Each benchmark targets one timing characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		straightLine(),
		singleLoop(),
		nestedLoops(),
		fetchThrash(),
		loopWarp(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		straightLine(),
		singleLoop(),
		loopWarp(),
	}
}

func nops(n int) []uint32 {
	words := make([]uint32, n)
	for i := range words {
		words[i] = insts.WordNop
	}
	return words
}

// 1. Straight line - one fetch miss per cache line
func straightLine() Benchmark {
	words := append(nops(20), insts.WordEcall)
	return Benchmark{
		Name:        "straight_line",
		Description: "20 NOPs then ECALL - measures fetch miss cost per line",
		Program:     BuildProgram(words...),
		ExpectPass:  true,
	}
}

// 2. Single loop - the body stays in the fetch cache
func singleLoop() Benchmark {
	words := []uint32{insts.EncodeLoopi(100, 4)}
	words = append(words, nops(4)...)
	words = append(words, insts.WordEcall)
	return Benchmark{
		Name:        "single_loop",
		Description: "LOOPI 100 over 4 NOPs - measures loop back-edge cost",
		Program:     BuildProgram(words...),
		ExpectPass:  true,
	}
}

// 3. Nested loops
func nestedLoops() Benchmark {
	return Benchmark{
		Name:        "nested_loops",
		Description: "10x10 nested LOOPI - exercises the loop stack",
		Program: BuildProgram(
			insts.EncodeLoopi(10, 3),
			insts.EncodeLoopi(10, 1),
			insts.WordNop,
			insts.WordNop,
			insts.WordEcall,
		),
		ExpectPass: true,
	}
}

// 4. Fetch thrash - the loop body is larger than the fetch cache
func fetchThrash() Benchmark {
	words := []uint32{insts.EncodeLoopi(2, 300)}
	words = append(words, nops(300)...)
	words = append(words, insts.WordEcall)
	return Benchmark{
		Name:        "fetch_thrash",
		Description: "LOOPI 2 over 300 NOPs - body exceeds the fetch cache",
		Program:     BuildProgram(words...),
		ExpectPass:  true,
	}
}

// 5. Loop warp - skips all but the first and last iteration
func loopWarp() Benchmark {
	return Benchmark{
		Name:        "loop_warp",
		Description: "LOOPI 1000 warped from iteration 1 to 999",
		Program: BuildProgram(
			insts.EncodeLoopi(1000, 2),
			insts.WordNop,
			insts.WordNop,
			insts.WordEcall,
		),
		Warps:      map[uint32]map[uint32]uint32{8: {1: 999}},
		ExpectPass: true,
	}
}
