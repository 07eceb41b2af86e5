package otbn_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rtlsim/insts"
	"github.com/sarchlab/rtlsim/internal/elftest"
	"github.com/sarchlab/rtlsim/launcher"
	"github.com/sarchlab/rtlsim/model"
	"github.com/sarchlab/rtlsim/otbn"
	"github.com/sarchlab/rtlsim/scope"
	"github.com/sarchlab/rtlsim/toplevel"
)

var _ = Describe("Targets", func() {
	var (
		dir    string
		reg    *scope.Registry
		slot   *toplevel.Slot
		out    *bytes.Buffer
		errOut *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "otbn-target-*")
		Expect(err).NotTo(HaveOccurred())
		reg = scope.NewRegistry()
		slot = toplevel.NewSlot()
		out = &bytes.Buffer{}
		errOut = &bytes.Buffer{}
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	run := func(t launcher.Target, args ...string) int {
		return launcher.New(t,
			launcher.WithScopes(reg),
			launcher.WithProcess(slot),
			launcher.WithOutput(out),
			launcher.WithErrOutput(errOut),
		).Run(args)
	}

	It("should describe both wrappers", func() {
		sim := otbn.SimTarget()
		Expect(sim.Scope).To(Equal("TOP.otbn_top_sim"))
		Expect(sim.ClockPort).To(Equal("IO_CLK"))
		Expect(sim.ResetPort).To(Equal("IO_RST_N"))
		Expect(sim.Polarity).To(Equal(model.ResetPolarityNegative))

		coco := otbn.CocoTarget()
		Expect(coco.Scope).To(Equal("TOP.otbn_top_coco"))
		Expect(coco.ClockPort).To(Equal("clk_sys"))
		Expect(coco.ResetPort).To(Equal("rst_sys_n"))
		Expect(coco.Polarity).To(Equal(model.ResetPolarityNegative))
	})

	DescribeTable("running a program",
		func(t launcher.Target) {
			path := filepath.Join(dir, "prog.elf")
			Expect(elftest.Write(path, elftest.Image{
				Segments: []elftest.Segment{
					{Data: program(insts.EncodeLoopi(3, 1), insts.WordNop, insts.WordEcall)},
				},
			})).To(Succeed())

			Expect(run(t, "--load-elf", path)).To(Equal(0))

			active, err := reg.Active()
			Expect(err).NotTo(HaveOccurred())
			Expect(active.Name()).To(Equal(t.Scope))

			top, err := slot.Top()
			Expect(err).NotTo(HaveOccurred())
			Expect(active.Owner()).To(BeIdenticalTo(top))
			Expect(top.(*otbn.Top).Core().Stats().LoopIterations).To(Equal(uint64(2)))
		},
		Entry("otbn_top_sim", otbn.SimTarget()),
		Entry("otbn_top_coco", otbn.CocoTarget()),
	)

	It("should return 1 without binding for a failing program", func() {
		path := filepath.Join(dir, "bad.vmem")
		Expect(os.WriteFile(path, []byte("00000000\n"), 0644)).To(Succeed())

		Expect(run(otbn.SimTarget(), "--meminit=imem,"+path)).To(Equal(1))
		_, err := reg.Active()
		Expect(err).To(MatchError(scope.ErrNoActiveScope))
	})

	It("should stop at the cycle limit", func() {
		path := filepath.Join(dir, "spin.vmem")
		// LOOPI 1023, 2 around two NOPs.
		vmem := []byte("002ffc7b 00000013 00000013 00000073\n")
		Expect(os.WriteFile(path, vmem, 0644)).To(Succeed())

		Expect(run(otbn.SimTarget(), "--meminit=imem,"+path, "-c", "50")).To(Equal(1))
		Expect(out.String()).To(ContainSubstring("Simulation timeout of 50 cycles reached"))
	})

	It("should list the memory areas", func() {
		Expect(run(otbn.SimTarget(), "--meminit=list")).To(Equal(0))
		Expect(out.String()).To(ContainSubstring("u_imem"))
		Expect(out.String()).To(ContainSubstring("u_dmem"))
		_, err := reg.Active()
		Expect(err).To(HaveOccurred())
	})
})
