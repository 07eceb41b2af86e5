package memutil_test

import (
	"bytes"
	"debug/elf"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rtlsim/internal/elftest"
	"github.com/sarchlab/rtlsim/loader"
	"github.com/sarchlab/rtlsim/memutil"
	"github.com/sarchlab/rtlsim/model"
	"github.com/sarchlab/rtlsim/scope"
	"github.com/sarchlab/rtlsim/simctrl"
)

type testProvider struct {
	scope    string
	areas    []memutil.Area
	programs []*loader.Program
	elfErr   error
}

func (p *testProvider) Scope() string         { return p.scope }
func (p *testProvider) Areas() []memutil.Area { return p.areas }

func (p *testProvider) OnElfLoaded(prog *loader.Program, _ *scope.Scope) error {
	p.programs = append(p.programs, prog)
	return p.elfErr
}

// idleTop finishes on the first cycle after reset.
type idleTop struct {
	clk, rst *model.Signal
	cycles   int
}

func (t *idleTop) Eval() {
	if t.clk.Level() && t.rst.Level() {
		t.cycles++
	}
}

func (t *idleTop) Finished() (bool, bool) {
	return t.cycles > 0, true
}

// shortWriter accepts limit bytes and then fails.
type shortWriter struct {
	limit int
	n     int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > w.limit {
		return 0, errors.New("device full")
	}
	w.n += len(p)
	return len(p), nil
}

var _ = Describe("Extension", func() {
	var (
		tempDir  string
		registry *scope.Registry
		rom, ram *model.Memory
		provider *testProvider
		ext      *memutil.Extension
		out      *bytes.Buffer
		errOut   *bytes.Buffer
	)

	exec := func(args ...string) simctrl.Result {
		top := &idleTop{clk: model.NewWire("clk"), rst: model.NewWire("rst_n")}
		ctrl, err := simctrl.MakeBuilder().
			WithTop(top, top.clk, top.rst, model.ResetPolarityNegative).
			WithExtension(ext).
			WithOutput(out).
			WithErrOutput(errOut).
			Build()
		Expect(err).NotTo(HaveOccurred())
		return ctrl.Exec(args)
	}

	writeFile := func(name string, data []byte) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, data, 0644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "memutil-test")
		Expect(err).NotTo(HaveOccurred())

		registry = scope.NewRegistry()
		s, err := registry.Register("TOP.instance_a", nil)
		Expect(err).NotTo(HaveOccurred())

		rom, err = model.NewMemory("rom", 32, 64)
		Expect(err).NotTo(HaveOccurred())
		ram, err = model.NewMemory("ram", 64, 32)
		Expect(err).NotTo(HaveOccurred())
		s.AddMemory("u_rom", rom)
		s.AddMemory("u_ram", ram)

		provider = &testProvider{
			scope: "TOP.instance_a",
			areas: []memutil.Area{
				{Name: "rom", Location: "u_rom", WidthBits: 32, Base: 0x0},
				{Name: "ram", Location: "u_ram", WidthBits: 64, Base: 0x1000},
			},
		}
		ext = memutil.NewExtension(provider, registry)
		out = &bytes.Buffer{}
		errOut = &bytes.Buffer{}
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	It("should report its scope", func() {
		Expect(ext.Scope()).To(Equal("TOP.instance_a"))
		Expect(ext.Provider()).To(BeIdenticalTo(provider))
	})

	It("should load a binary image by area name", func() {
		path := writeFile("image.bin", []byte{1, 2, 3, 4, 5})

		res := exec("--meminit=rom," + path)
		Expect(res).To(Equal(simctrl.Result{ExitCode: 0, RanSimulation: true}))
		Expect(rom.Read(0, 6)).To(Equal([]byte{1, 2, 3, 4, 5, 0}))

		loaded := ext.Loaded()
		Expect(loaded).To(HaveLen(1))
		Expect(loaded[0].Area).To(Equal("rom"))
		Expect(loaded[0].Bytes).To(Equal(5))
	})

	It("should load a vmem image given an explicit type", func() {
		path := writeFile("image.txt", []byte("@1 0011223344556677\n"))

		res := exec("-l", "ram,"+path+",vmem")
		Expect(res.ExitCode).To(Equal(0))

		word, err := ram.ReadWord(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(word).To(Equal([]byte{0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11, 0x00}))
	})

	It("should accept the rom shorthand", func() {
		path := writeFile("boot.bin", []byte{0xAA})

		Expect(exec("-r", path).ExitCode).To(Equal(0))
		Expect(rom.Read(0, 1)).To(Equal([]byte{0xAA}))
	})

	It("should place ELF segments by physical address", func() {
		path := filepath.Join(tempDir, "prog.elf")
		Expect(elftest.Write(path, elftest.Image{
			Segments: []elftest.Segment{
				{VAddr: 0, PAddr: 0x0, Data: []byte{0x73, 0, 0, 0}},
				{VAddr: 0, PAddr: 0x1008, Data: []byte{9, 8}, Flags: elf.PF_R | elf.PF_W},
			},
			Symbols: []elftest.Symbol{{Name: "start", Value: 0}},
		})).To(Succeed())

		Expect(exec("--load-elf", path).ExitCode).To(Equal(0))
		Expect(rom.Read(0, 4)).To(Equal([]byte{0x73, 0, 0, 0}))
		Expect(ram.Read(8, 2)).To(Equal([]byte{9, 8}))

		Expect(provider.programs).To(HaveLen(1))
		_, ok := provider.programs[0].Lookup("start")
		Expect(ok).To(BeTrue())
	})

	It("should load only the matching segments into a named area", func() {
		path := filepath.Join(tempDir, "prog.elf")
		Expect(elftest.Write(path, elftest.Image{
			Segments: []elftest.Segment{
				{PAddr: 0x0, Data: []byte{1, 1, 1, 1}},
				{PAddr: 0x1000, Data: []byte{2, 2}},
			},
		})).To(Succeed())

		Expect(exec("--meminit=ram," + path).ExitCode).To(Equal(0))
		Expect(ram.Read(0, 2)).To(Equal([]byte{2, 2}))
		Expect(rom.UsedWords()).To(BeZero())
	})

	It("should fail when an ELF segment fits no area", func() {
		path := filepath.Join(tempDir, "far.elf")
		Expect(elftest.Write(path, elftest.Image{
			Segments: []elftest.Segment{{PAddr: 0x80000000, Data: []byte{1}}},
		})).To(Succeed())

		res := exec("-E", path)
		Expect(res).To(Equal(simctrl.Result{ExitCode: 1}))
		Expect(errOut.String()).To(ContainSubstring("does not fit any memory area"))
	})

	It("should fail when the ELF observer fails", func() {
		provider.elfErr = errors.New("bad symbols")
		path := filepath.Join(tempDir, "prog.elf")
		Expect(elftest.Write(path, elftest.Image{
			Segments: []elftest.Segment{{PAddr: 0, Data: []byte{1, 2, 3, 4}}},
		})).To(Succeed())

		Expect(exec("-E", path).ExitCode).To(Equal(1))
		Expect(errOut.String()).To(ContainSubstring("bad symbols"))
	})

	It("should list the areas and exit", func() {
		res := exec("--meminit=list")
		Expect(res).To(Equal(simctrl.Result{ExitCode: 0, RanSimulation: false}))
		Expect(out.String()).To(ContainSubstring("TOP.instance_a.u_rom"))
		Expect(out.String()).To(ContainSubstring("0x00001000"))
	})

	It("should report a failing area table", func() {
		w := &shortWriter{limit: 64}
		err := ext.PrintAreas(w)
		Expect(err).To(MatchError("device full"))
		Expect(w.n).To(BeNumerically(">", 0))
	})

	It("should fail --meminit=list when the output fails", func() {
		w := &shortWriter{}
		top := &idleTop{clk: model.NewWire("clk"), rst: model.NewWire("rst_n")}
		ctrl, err := simctrl.MakeBuilder().
			WithTop(top, top.clk, top.rst, model.ResetPolarityNegative).
			WithExtension(ext).
			WithOutput(w).
			WithErrOutput(errOut).
			Build()
		Expect(err).NotTo(HaveOccurred())

		res := ctrl.Exec([]string{"--meminit=list"})
		Expect(res).To(Equal(simctrl.Result{ExitCode: 1}))
		Expect(errOut.String()).To(ContainSubstring("failed to list memory areas: device full"))
	})

	DescribeTable("argument errors",
		func(args ...string) {
			Expect(exec(args...)).To(Equal(simctrl.Result{ExitCode: 1}))
		},
		Entry("unknown area", "--meminit=flash,x.bin"),
		Entry("unknown shorthand area", "--flashinit=x.bin"),
		Entry("missing file", "--meminit=rom"),
		Entry("unknown type", "--meminit=rom,x.bin,hex"),
		Entry("too many fields", "--meminit=rom,x.bin,bin,extra"),
	)

	It("should match ErrUnknownArea", func() {
		err := ext.AddRequest(memutil.Request{Area: "flash", File: "x.bin"})
		Expect(errors.Is(err, memutil.ErrUnknownArea)).To(BeTrue())
		Expect(ext.Requests()).To(BeEmpty())
	})

	It("should fail setup when the image is too large", func() {
		path := writeFile("big.bin", make([]byte, 257))

		Expect(exec("--meminit=rom," + path)).To(Equal(simctrl.Result{ExitCode: 1}))
		Expect(errOut.String()).To(ContainSubstring("exceed"))
	})

	It("should fail setup when the scope is not registered", func() {
		provider.scope = "TOP.other"
		Expect(exec()).To(Equal(simctrl.Result{ExitCode: 1}))
		Expect(errOut.String()).To(ContainSubstring("scope not found"))
	})

	It("should refuse non-ELF files without an area", func() {
		Expect(ext.AddRequest(memutil.Request{File: writeFile("a.bin", []byte{1})})).To(Succeed())
		Expect(exec().ExitCode).To(Equal(1))
		Expect(errOut.String()).To(ContainSubstring("only ELF files"))
	})
})
