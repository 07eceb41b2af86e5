package memutil_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rtlsim/internal/elftest"
	"github.com/sarchlab/rtlsim/memutil"
)

var _ = Describe("ParseVMEM", func() {
	It("should read sequential words", func() {
		words, err := memutil.ParseVMEM(strings.NewReader("00000073 deadbeef\n"), 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(HaveLen(2))
		Expect(words[0]).To(Equal(memutil.VMEMWord{Index: 0, Data: []byte{0x73, 0, 0, 0}}))
		Expect(words[1]).To(Equal(memutil.VMEMWord{Index: 1, Data: []byte{0xef, 0xbe, 0xad, 0xde}}))
	})

	It("should follow address markers and skip comments", func() {
		src := "// header\n@10 1 2 // trailing\n\n@2\n3\n"
		words, err := memutil.ParseVMEM(strings.NewReader(src), 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(HaveLen(3))
		Expect(words[0].Index).To(Equal(0x10))
		Expect(words[1].Index).To(Equal(0x11))
		Expect(words[2].Index).To(Equal(2))
		Expect(words[2].Data).To(Equal([]byte{3, 0, 0, 0}))
	})

	It("should read words wider than 64 bits", func() {
		wide := "01" + strings.Repeat("00", 30) + "02"
		words, err := memutil.ParseVMEM(strings.NewReader(wide), 32)
		Expect(err).NotTo(HaveOccurred())
		Expect(words[0].Data[0]).To(Equal(byte(0x02)))
		Expect(words[0].Data[31]).To(Equal(byte(0x01)))
	})

	It("should ignore leading zeros beyond the word width", func() {
		words, err := memutil.ParseVMEM(strings.NewReader("0000000000000073"), 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(words[0].Data).To(Equal([]byte{0x73, 0, 0, 0}))
	})

	DescribeTable("malformed input",
		func(src string) {
			_, err := memutil.ParseVMEM(strings.NewReader(src), 4)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(HavePrefix("line "))
		},
		Entry("bad address", "@xyz 1"),
		Entry("bad word", "12g4"),
		Entry("word too wide", "123456789"),
	)
})

var _ = Describe("Formats", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "memutil-format")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	DescribeTable("ParseFormat",
		func(name string, want memutil.Format) {
			f, err := memutil.ParseFormat(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(f).To(Equal(want))
		},
		Entry("empty", "", memutil.FormatAuto),
		Entry("elf", "ELF", memutil.FormatELF),
		Entry("vmem", "vmem", memutil.FormatVMEM),
		Entry("bin", "bin", memutil.FormatBin),
		Entry("binary", "binary", memutil.FormatBin),
	)

	It("should reject unknown types", func() {
		_, err := memutil.ParseFormat("hex")
		Expect(err).To(HaveOccurred())
	})

	It("should detect by extension", func() {
		for path, want := range map[string]memutil.Format{
			"a.elf":  memutil.FormatELF,
			"a.VMEM": memutil.FormatVMEM,
			"a.bin":  memutil.FormatBin,
		} {
			f, err := memutil.DetectFormat(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(f).To(Equal(want), path)
		}
	})

	It("should detect ELF files without an extension", func() {
		path := filepath.Join(tempDir, "program")
		Expect(elftest.Write(path, elftest.Image{})).To(Succeed())

		f, err := memutil.DetectFormat(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(memutil.FormatELF))
	})

	It("should give up on unknown files", func() {
		path := filepath.Join(tempDir, "data.img")
		Expect(os.WriteFile(path, []byte("hello"), 0644)).To(Succeed())

		_, err := memutil.DetectFormat(path)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("cannot infer"))
	})

	It("should name formats", func() {
		Expect(memutil.FormatVMEM.String()).To(Equal("vmem"))
		Expect(memutil.FormatAuto.String()).To(Equal("auto"))
	})
})
