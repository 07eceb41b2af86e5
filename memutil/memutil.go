// Package memutil is a simulation extension that fills the memories of a
// design from image files before the run starts.
//
// The design describes its memories through a Provider: one scope name
// and a list of named areas below it. Images are ELF files, placed by the
// physical address of their segments, vmem text files or raw binaries.
package memutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sarchlab/rtlsim/loader"
	"github.com/sarchlab/rtlsim/model"
	"github.com/sarchlab/rtlsim/scope"
	"github.com/sarchlab/rtlsim/simctrl"
)

// ErrUnknownArea is returned for a memory area the provider does not
// declare.
var ErrUnknownArea = errors.New("unknown memory area")

// Area is one memory of the design.
type Area struct {
	// Name is used on the command line, e.g. "imem".
	Name string
	// Location is the memory instance below the scope, e.g. "u_imem".
	Location string
	// WidthBits is the word width.
	WidthBits int
	// Base is the address of the first word in the ELF load address space.
	Base uint64
}

// Provider describes the memories of one design instance.
type Provider interface {
	// Scope returns the hierarchical name of the instance.
	Scope() string
	// Areas lists the memories that images can be loaded into.
	Areas() []Area
}

// ELFObserver is implemented by providers that want to inspect every ELF
// file loaded, for example to pick up symbols.
type ELFObserver interface {
	OnElfLoaded(prog *loader.Program, s *scope.Scope) error
}

// Request is one image to load.
type Request struct {
	// Area is the target area name. Empty means the image is an ELF file
	// placed by segment addresses.
	Area   string
	File   string
	Format Format
}

// Record describes a completed load.
type Record struct {
	Request
	Bytes int
}

// Extension loads memory images into the areas of a Provider.
type Extension struct {
	provider Provider
	registry *scope.Registry

	meminit []string
	loadELF string
	rom     string
	ram     string
	flash   string

	list     bool
	requests []Request
	loaded   []Record
}

// NewExtension wraps a provider. Scopes are resolved in registry, which
// defaults to scope.Process.
func NewExtension(provider Provider, registry *scope.Registry) *Extension {
	if registry == nil {
		registry = scope.Process
	}
	return &Extension{
		provider: provider,
		registry: registry,
	}
}

// Scope returns the scope name of the provider.
func (e *Extension) Scope() string {
	return e.provider.Scope()
}

// Provider returns the wrapped provider.
func (e *Extension) Provider() Provider {
	return e.provider
}

// Requests returns the pending load requests in load order.
func (e *Extension) Requests() []Request {
	return append([]Request(nil), e.requests...)
}

// Loaded returns the images loaded by PreExec.
func (e *Extension) Loaded() []Record {
	return append([]Record(nil), e.loaded...)
}

// AddRequest queues an image to load. It fails for unknown areas.
func (e *Extension) AddRequest(req Request) error {
	if req.Area != "" {
		if _, err := e.area(req.Area); err != nil {
			return err
		}
	}
	e.requests = append(e.requests, req)
	return nil
}

func (e *Extension) area(name string) (Area, error) {
	for _, a := range e.provider.Areas() {
		if a.Name == name {
			return a, nil
		}
	}
	return Area{}, fmt.Errorf("%q in %s: %w", name, e.Scope(), ErrUnknownArea)
}

// RegisterFlags implements simctrl.FlagParser.
func (e *Extension) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&e.meminit, "meminit", "l", nil,
		"Load FILE into memory area NAME: NAME,FILE[,TYPE] with TYPE elf, vmem or bin. "+
			"Use 'list' to show the areas")
	fs.StringVarP(&e.loadELF, "load-elf", "E", "",
		"Load an ELF file, placing segments by physical address")
	fs.StringVarP(&e.rom, "rominit", "r", "", "Same as --meminit=rom,FILE")
	fs.StringVarP(&e.ram, "raminit", "m", "", "Same as --meminit=ram,FILE")
	fs.StringVarP(&e.flash, "flashinit", "f", "", "Same as --meminit=flash,FILE")
}

// ArgsParsed implements simctrl.FlagParser.
func (e *Extension) ArgsParsed(ctrl *simctrl.Ctrl) (bool, error) {
	if e.loadELF != "" {
		if err := e.AddRequest(Request{File: e.loadELF, Format: FormatELF}); err != nil {
			return false, err
		}
	}

	for _, spec := range e.meminit {
		if spec == "list" {
			e.list = true
			continue
		}
		req, err := parseMeminit(spec)
		if err != nil {
			return false, err
		}
		if err := e.AddRequest(req); err != nil {
			return false, err
		}
	}

	shorthands := []struct{ area, file string }{
		{"rom", e.rom}, {"ram", e.ram}, {"flash", e.flash},
	}
	for _, s := range shorthands {
		if s.file == "" {
			continue
		}
		if err := e.AddRequest(Request{Area: s.area, File: s.file}); err != nil {
			return false, err
		}
	}

	if e.list {
		if err := e.PrintAreas(ctrl.Output()); err != nil {
			return false, fmt.Errorf("failed to list memory areas: %w", err)
		}
		return true, nil
	}
	return false, nil
}

func parseMeminit(spec string) (Request, error) {
	parts := strings.Split(spec, ",")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return Request{}, fmt.Errorf("bad --meminit %q, expected NAME,FILE[,TYPE]", spec)
	}

	req := Request{Area: parts[0], File: parts[1]}
	if len(parts) == 3 {
		f, err := ParseFormat(parts[2])
		if err != nil {
			return Request{}, err
		}
		req.Format = f
	}
	return req, nil
}

// PrintAreas writes the area table to w.
func (e *Extension) PrintAreas(w io.Writer) error {
	s, _ := e.registry.Lookup(e.Scope())

	if _, err := fmt.Fprintf(w, "Registered memory areas for %s:\n", e.Scope()); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tLOCATION\tWIDTH\tDEPTH\tBASE")
	for _, a := range e.provider.Areas() {
		depth := "-"
		if s != nil {
			if m, err := s.Memory(a.Location); err == nil {
				depth = fmt.Sprint(m.Depth())
			}
		}
		fmt.Fprintf(tw, "  %s\t%s.%s\t%d\t%s\t0x%08x\n",
			a.Name, e.Scope(), a.Location, a.WidthBits, depth, a.Base)
	}
	return tw.Flush()
}

// PreExec implements simctrl.Extension. It loads all requested images.
func (e *Extension) PreExec(ctrl *simctrl.Ctrl) error {
	s, err := e.registry.Lookup(e.Scope())
	if err != nil {
		return fmt.Errorf("memory scope: %w", err)
	}

	log := ctrl.Logger()
	for _, req := range e.requests {
		n, err := e.load(s, req)
		if err != nil {
			return err
		}
		e.loaded = append(e.loaded, Record{Request: req, Bytes: n})
		log.Info("loaded memory image",
			zap.String("scope", e.Scope()),
			zap.String("area", req.Area),
			zap.String("file", req.File),
			zap.String("format", req.Format.String()),
			zap.Int("bytes", n))
	}
	return nil
}

// PostExec implements simctrl.Extension.
func (e *Extension) PostExec(ctrl *simctrl.Ctrl) error {
	ctrl.Logger().Debug("memory extension done",
		zap.String("scope", e.Scope()),
		zap.Int("images", len(e.loaded)))
	return nil
}

func (e *Extension) load(s *scope.Scope, req Request) (int, error) {
	format := req.Format
	if format == FormatAuto {
		f, err := DetectFormat(req.File)
		if err != nil {
			return 0, err
		}
		format = f
	}

	if req.Area == "" {
		if format != FormatELF {
			return 0, fmt.Errorf("%s: only ELF files can be loaded without an area", req.File)
		}
		return e.loadELFFile(s, req.File, nil)
	}

	area, err := e.area(req.Area)
	if err != nil {
		return 0, err
	}
	mem, err := s.Memory(area.Location)
	if err != nil {
		return 0, fmt.Errorf("memory area %s: %w", area.Name, err)
	}

	switch format {
	case FormatELF:
		return e.loadELFFile(s, req.File, &area)
	case FormatVMEM:
		return loadVMEMFile(mem, req.File)
	default:
		return loadBinFile(mem, req.File)
	}
}

func loadBinFile(mem *model.Memory, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read memory image: %w", err)
	}
	if err := mem.Load(0, data); err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return len(data), nil
}

func loadVMEMFile(mem *model.Memory, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read memory image: %w", err)
	}
	defer func() { _ = f.Close() }()

	words, err := ParseVMEM(f, mem.WordBytes())
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for _, w := range words {
		if err := mem.WriteWord(w.Index, w.Data); err != nil {
			return 0, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return len(words) * mem.WordBytes(), nil
}

// loadELFFile places the segments of an ELF file. With an area, segments
// outside it are skipped; without one, every segment must fit some area.
func (e *Extension) loadELFFile(s *scope.Scope, path string, only *Area) (int, error) {
	prog, err := loader.Load(path)
	if err != nil {
		return 0, err
	}

	areas := e.provider.Areas()
	if only != nil {
		areas = []Area{*only}
	}

	total := 0
	for _, seg := range prog.Segments {
		img := seg.Image()
		if len(img) == 0 {
			continue
		}

		placed := false
		for _, a := range areas {
			mem, err := s.Memory(a.Location)
			if err != nil {
				return 0, fmt.Errorf("memory area %s: %w", a.Name, err)
			}
			if seg.PhysAddr < a.Base || seg.PhysAddr+uint64(len(img)) > a.Base+mem.Size() {
				continue
			}
			if err := mem.Load(seg.PhysAddr-a.Base, img); err != nil {
				return 0, err
			}
			total += len(img)
			placed = true
			break
		}

		if !placed && only == nil {
			return 0, fmt.Errorf("%s: segment at 0x%x (%d bytes) does not fit any memory area",
				path, seg.PhysAddr, len(img))
		}
	}

	if only != nil && total == 0 {
		return 0, fmt.Errorf("%s: no segment falls into memory area %s", path, only.Name)
	}

	if obs, ok := e.provider.(ELFObserver); ok {
		if err := obs.OnElfLoaded(prog, s); err != nil {
			return 0, fmt.Errorf("failed to process %s: %w", path, err)
		}
	}

	return total, nil
}
