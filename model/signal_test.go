package model_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rtlsim/model"
)

var _ = Describe("Signal", func() {
	It("should mask values to the signal width", func() {
		s := model.NewSignal("insn_addr", 4)
		s.Set(0x1F)
		Expect(s.Value()).To(Equal(uint64(0xF)))
	})

	It("should keep full 64-bit values", func() {
		s := model.NewSignal("wide", 64)
		s.Set(0xFFFFFFFFFFFFFFFF)
		Expect(s.Value()).To(Equal(uint64(0xFFFFFFFFFFFFFFFF)))
	})

	It("should toggle one-bit signals", func() {
		clk := model.NewWire("clk")
		Expect(clk.Level()).To(BeFalse())
		clk.Toggle()
		Expect(clk.Level()).To(BeTrue())
		clk.Toggle()
		Expect(clk.Level()).To(BeFalse())
	})
})

var _ = Describe("ResetPolarity", func() {
	DescribeTable("asserted levels",
		func(p model.ResetPolarity, asserted bool) {
			rst := model.NewWire("rst")

			p.Drive(rst, true)
			Expect(rst.Level()).To(Equal(asserted))
			Expect(p.Asserted(rst)).To(BeTrue())

			p.Drive(rst, false)
			Expect(rst.Level()).To(Equal(!asserted))
			Expect(p.Asserted(rst)).To(BeFalse())
		},
		Entry("active low", model.ResetPolarityNegative, false),
		Entry("active high", model.ResetPolarityPositive, true),
	)

	It("should describe itself", func() {
		Expect(model.ResetPolarityNegative.String()).To(Equal("active-low"))
		Expect(model.ResetPolarityPositive.String()).To(Equal("active-high"))
	})

	It("should know its defined values", func() {
		Expect(model.ResetPolarityNegative.Valid()).To(BeTrue())
		Expect(model.ResetPolarityPositive.Valid()).To(BeTrue())
		Expect(model.ResetPolarity(7).Valid()).To(BeFalse())
		Expect(model.ResetPolarity(-1).Valid()).To(BeFalse())
	})
})
