package memutil

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sarchlab/rtlsim/loader"
)

// Format is the file format of a memory image.
type Format int

// Image formats.
const (
	FormatAuto Format = iota
	FormatELF
	FormatVMEM
	FormatBin
)

func (f Format) String() string {
	switch f {
	case FormatELF:
		return "elf"
	case FormatVMEM:
		return "vmem"
	case FormatBin:
		return "bin"
	default:
		return "auto"
	}
}

// ParseFormat converts a type name given on the command line.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return FormatAuto, nil
	case "elf":
		return FormatELF, nil
	case "vmem":
		return FormatVMEM, nil
	case "bin", "binary":
		return FormatBin, nil
	default:
		return FormatAuto, fmt.Errorf("unknown memory image type %q", name)
	}
}

// DetectFormat infers the format from the file extension, falling back to
// the ELF magic number.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".elf":
		return FormatELF, nil
	case ".vmem":
		return FormatVMEM, nil
	case ".bin":
		return FormatBin, nil
	}

	isELF, err := loader.IsELF(path)
	if err != nil {
		return FormatAuto, fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	if isELF {
		return FormatELF, nil
	}
	return FormatAuto, fmt.Errorf("cannot infer the type of %s, specify it explicitly", path)
}
