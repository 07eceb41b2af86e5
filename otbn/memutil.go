package otbn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/rtlsim/loader"
	"github.com/sarchlab/rtlsim/memutil"
	"github.com/sarchlab/rtlsim/scope"
)

// LoopWarpPrefix starts the name of every loop warp symbol. The full name
// is _loop_warp_<from>_<to> and the symbol value is the address of the
// instruction the warp applies to.
const LoopWarpPrefix = "_loop_warp_"

// MemUtil describes the OTBN memories to the memutil extension.
type MemUtil struct {
	scope string
}

// NewMemUtil creates the provider for the instance at scopeName.
func NewMemUtil(scopeName string) *MemUtil {
	return &MemUtil{scope: scopeName}
}

// Scope implements memutil.Provider.
func (m *MemUtil) Scope() string {
	return m.scope
}

// Areas implements memutil.Provider.
func (m *MemUtil) Areas() []memutil.Area {
	return []memutil.Area{
		{Name: "imem", Location: IMEMLocation, WidthBits: IMEMWidthBits, Base: IMEMBase},
		{Name: "dmem", Location: DMEMLocation, WidthBits: DMEMWidthBits, Base: DMEMBase},
	}
}

// OnElfLoaded installs the loop warps of prog into the top that owns s.
func (m *MemUtil) OnElfLoaded(prog *loader.Program, s *scope.Scope) error {
	top, ok := s.Owner().(*Top)
	if !ok {
		return fmt.Errorf("scope %s is not owned by an OTBN top", s.Name())
	}

	warps, err := LoopWarps(prog.Symbols)
	if err != nil {
		return fmt.Errorf("failed to read loop warps from %s: %w", prog.Path, err)
	}
	top.SetLoopWarps(warps)
	return nil
}

// LoopWarps collects the loop warp symbols into addr -> from -> to.
func LoopWarps(syms []loader.Symbol) (map[uint32]map[uint32]uint32, error) {
	warps := make(map[uint32]map[uint32]uint32)
	for _, sym := range syms {
		if !strings.HasPrefix(sym.Name, LoopWarpPrefix) {
			continue
		}

		from, to, err := parseLoopWarp(strings.TrimPrefix(sym.Name, LoopWarpPrefix))
		if err != nil {
			return nil, fmt.Errorf("symbol %s: %w", sym.Name, err)
		}

		addr := uint32(sym.Value)
		byFrom, ok := warps[addr]
		if !ok {
			byFrom = make(map[uint32]uint32)
			warps[addr] = byFrom
		}
		if prev, dup := byFrom[from]; dup && prev != to {
			return nil, fmt.Errorf("conflicting warps at 0x%x from %d: %d and %d", addr, from, prev, to)
		}
		byFrom[from] = to
	}
	return warps, nil
}

func parseLoopWarp(s string) (uint32, uint32, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected <from>_<to>, got %q", s)
	}

	from, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("bad warp origin %q: %w", parts[0], err)
	}
	to, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("bad warp destination %q: %w", parts[1], err)
	}
	return uint32(from), uint32(to), nil
}
