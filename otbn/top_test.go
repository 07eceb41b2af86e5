package otbn_test

import (
	"encoding/binary"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rtlsim/insts"
	"github.com/sarchlab/rtlsim/model"
	"github.com/sarchlab/rtlsim/otbn"
	"github.com/sarchlab/rtlsim/scope"
	"github.com/sarchlab/rtlsim/timing/core"
	"github.com/sarchlab/rtlsim/toplevel"
)

func program(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

// harness drives the ports of a top the way the control driver does.
type harness struct {
	top      *otbn.Top
	clk, rst *model.Signal
	pol      model.ResetPolarity
}

func newHarness(top *otbn.Top, pol model.ResetPolarity) *harness {
	clk, _ := top.Port(top.Variant().ClockPort)
	rst, _ := top.Port(top.Variant().ResetPort)
	return &harness{top: top, clk: clk, rst: rst, pol: pol}
}

func (h *harness) cycle() {
	h.clk.Toggle()
	h.top.Eval()
	h.clk.Toggle()
	h.top.Eval()
}

func (h *harness) reset() {
	h.pol.Drive(h.rst, true)
	h.top.Eval()
	h.cycle()
	h.cycle()
	h.pol.Drive(h.rst, false)
	h.top.Eval()
}

func (h *harness) runUntilDone(limit int) bool {
	for i := 0; i < limit; i++ {
		if done, _ := h.top.Finished(); done {
			return true
		}
		h.cycle()
	}
	done, _ := h.top.Finished()
	return done
}

var _ = Describe("Top", func() {
	var (
		reg  *scope.Registry
		slot *toplevel.Slot
		top  *otbn.Top
	)

	BeforeEach(func() {
		reg = scope.NewRegistry()
		slot = toplevel.NewSlot()

		var err error
		top, err = otbn.New(otbn.SimVariant, otbn.WithScopes(reg), otbn.WithProcess(slot))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should register its scope with both memories", func() {
		s, err := reg.Lookup("TOP.otbn_top_sim")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Owner()).To(BeIdenticalTo(top))
		Expect(s.MemoryLocations()).To(Equal([]string{"u_dmem", "u_imem"}))

		imem, err := s.Memory("u_imem")
		Expect(err).NotTo(HaveOccurred())
		Expect(imem.Size()).To(Equal(uint64(4096)))

		dmem, err := s.Memory("u_dmem")
		Expect(err).NotTo(HaveOccurred())
		Expect(dmem.WordBytes()).To(Equal(32))
		Expect(dmem.Depth()).To(Equal(96))
	})

	It("should refuse a second top at the same scope", func() {
		_, err := otbn.New(otbn.SimVariant, otbn.WithScopes(reg))
		Expect(errors.Is(err, scope.ErrDuplicate)).To(BeTrue())
	})

	It("should expose the ports of each variant", func() {
		_, ok := top.Port("IO_CLK")
		Expect(ok).To(BeTrue())
		_, ok = top.Port("IO_RST_N")
		Expect(ok).To(BeTrue())
		_, ok = top.Port("clk_sys")
		Expect(ok).To(BeFalse())

		coco, err := otbn.New(otbn.CocoVariant, otbn.WithScopes(reg))
		Expect(err).NotTo(HaveOccurred())
		Expect(coco.Name()).To(Equal("TOP.otbn_top_coco"))
		_, ok = coco.Port("clk_sys")
		Expect(ok).To(BeTrue())
		_, ok = coco.Port("rst_sys_n")
		Expect(ok).To(BeTrue())
	})

	It("should run a program to ECALL after reset", func() {
		Expect(top.IMEM().Load(0, program(insts.WordNop, insts.WordEcall))).To(Succeed())
		h := newHarness(top, model.ResetPolarityNegative)
		h.reset()

		Expect(h.runUntilDone(100)).To(BeTrue())
		_, passed := top.Finished()
		Expect(passed).To(BeTrue())

		done, _ := top.Port("done_o")
		Expect(done.Level()).To(BeTrue())
		cnt, _ := top.Port("insn_cnt_o")
		Expect(cnt.Value()).To(Equal(uint64(2)))
	})

	It("should not start without a reset", func() {
		Expect(top.IMEM().Load(0, program(insts.WordEcall))).To(Succeed())
		h := newHarness(top, model.ResetPolarityNegative)

		Expect(h.runUntilDone(50)).To(BeFalse())
		Expect(top.Core().Running()).To(BeFalse())
	})

	It("should stay in reset when driven with the other polarity", func() {
		Expect(top.IMEM().Load(0, program(insts.WordEcall))).To(Succeed())
		h := newHarness(top, model.ResetPolarityPositive)
		h.reset()

		Expect(h.runUntilDone(50)).To(BeFalse())
	})

	It("should fail on an illegal instruction", func() {
		Expect(top.IMEM().Load(0, program(insts.WordNop, 0))).To(Succeed())
		h := newHarness(top, model.ResetPolarityNegative)
		h.reset()

		Expect(h.runUntilDone(100)).To(BeTrue())
		_, passed := top.Finished()
		Expect(passed).To(BeFalse())

		errBits, _ := top.Port("err_bits_o")
		Expect(uint32(errBits.Value()) & core.ErrBitIllegalInsn).NotTo(BeZero())
		Expect(top.Err()).To(MatchError(ContainSubstring("error bits")))
	})

	It("should restart the program on a second reset", func() {
		Expect(top.IMEM().Load(0, program(insts.WordEcall))).To(Succeed())
		h := newHarness(top, model.ResetPolarityNegative)
		h.reset()
		Expect(h.runUntilDone(100)).To(BeTrue())

		h.pol.Drive(h.rst, true)
		top.Eval()
		done, _ := top.Finished()
		Expect(done).To(BeFalse())

		h.cycle()
		h.pol.Drive(h.rst, false)
		top.Eval()
		Expect(h.runUntilDone(100)).To(BeTrue())
	})

	Describe("loop warps", func() {
		loop := func() []byte {
			return program(insts.EncodeLoopi(100, 1), insts.WordNop, insts.WordEcall)
		}

		It("should fail the core while no top is published", func() {
			top.SetLoopWarps(map[uint32]map[uint32]uint32{4: {1: 99}})
			Expect(top.IMEM().Load(0, loop())).To(Succeed())
			h := newHarness(top, model.ResetPolarityNegative)
			h.reset()

			Expect(h.runUntilDone(100)).To(BeTrue())
			Expect(errors.Is(top.Core().Err(), toplevel.ErrNotPublished)).To(BeTrue())
			Expect(top.Err()).To(MatchError(toplevel.ErrNotPublished))
		})

		It("should skip iterations through the published top", func() {
			Expect(slot.Publish(top)).To(Succeed())
			top.SetLoopWarps(map[uint32]map[uint32]uint32{4: {1: 99}})
			Expect(top.IMEM().Load(0, loop())).To(Succeed())
			h := newHarness(top, model.ResetPolarityNegative)
			h.reset()

			Expect(h.runUntilDone(200)).To(BeTrue())
			_, passed := top.Finished()
			Expect(passed).To(BeTrue())
			Expect(top.Core().Stats().Warps).To(Equal(uint64(1)))
			Expect(top.Core().Stats().Instructions).To(Equal(uint64(4)))
		})
	})
})

type otherTop struct{}

func (otherTop) Eval()                  {}
func (otherTop) Finished() (bool, bool) { return false, false }

var _ = Describe("ApplyLoopWarp", func() {
	It("should report an empty slot", func() {
		_, err := otbn.ApplyLoopWarp(toplevel.NewSlot(), 4, 1)
		Expect(errors.Is(err, toplevel.ErrNotPublished)).To(BeTrue())
	})

	It("should reject a top of another kind", func() {
		slot := toplevel.NewSlot()
		Expect(slot.Publish(otherTop{})).To(Succeed())
		_, err := otbn.ApplyLoopWarp(slot, 4, 1)
		Expect(err).To(MatchError(ContainSubstring("not an OTBN top")))
	})

	It("should keep the count when no warp matches", func() {
		slot := toplevel.NewSlot()
		top, err := otbn.New(otbn.SimVariant,
			otbn.WithScopes(scope.NewRegistry()), otbn.WithProcess(slot))
		Expect(err).NotTo(HaveOccurred())
		Expect(slot.Publish(top)).To(Succeed())
		top.SetLoopWarps(map[uint32]map[uint32]uint32{8: {2: 10}})

		Expect(otbn.ApplyLoopWarp(slot, 8, 2)).To(Equal(uint32(10)))
		Expect(otbn.ApplyLoopWarp(slot, 8, 3)).To(Equal(uint32(3)))
		Expect(otbn.ApplyLoopWarp(slot, 4, 2)).To(Equal(uint32(2)))
	})
})
