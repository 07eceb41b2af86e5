package simctrl_test

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/pflag"

	"github.com/sarchlab/rtlsim/model"
	"github.com/sarchlab/rtlsim/simctrl"
)

// mockTop counts cycles after leaving reset and finishes after
// finishAfter of them. It records the reset level seen by every Eval.
type mockTop struct {
	clk     *model.Signal
	rst     *model.Signal
	count   *model.Signal
	pol     model.ResetPolarity
	lastClk bool

	finishAfter int
	passed      bool
	err         error

	rstLevels []bool
	resetSeen bool
	runCycles int
}

func newMockTop(pol model.ResetPolarity, finishAfter int) *mockTop {
	return &mockTop{
		clk:         model.NewWire("clk_i"),
		rst:         model.NewWire("rst_i"),
		count:       model.NewSignal("count", 8),
		pol:         pol,
		finishAfter: finishAfter,
		passed:      true,
	}
}

func (m *mockTop) Eval() {
	m.rstLevels = append(m.rstLevels, m.rst.Level())

	rising := m.clk.Level() && !m.lastClk
	m.lastClk = m.clk.Level()
	if !rising {
		return
	}
	if m.pol.Asserted(m.rst) {
		m.resetSeen = true
		m.runCycles = 0
		return
	}
	if m.resetSeen {
		m.runCycles++
		m.count.Set(uint64(m.runCycles))
	}
}

func (m *mockTop) Finished() (bool, bool) {
	if m.finishAfter > 0 && m.runCycles >= m.finishAfter {
		return true, m.passed
	}
	return false, false
}

func (m *mockTop) Err() error {
	return m.err
}

func (m *mockTop) Name() string {
	return "mock_top"
}

func (m *mockTop) Signals() []*model.Signal {
	return []*model.Signal{m.clk, m.count}
}

// recorder logs every callback into a shared log.
type recorder struct {
	name     string
	log      *[]string
	failPre  error
	failPost error
	clocks   int
	stopAt   int
	stopOK   bool
}

func (r *recorder) PreExec(*simctrl.Ctrl) error {
	*r.log = append(*r.log, r.name+".pre")
	return r.failPre
}

func (r *recorder) PostExec(*simctrl.Ctrl) error {
	*r.log = append(*r.log, r.name+".post")
	return r.failPost
}

type clockRecorder struct {
	*recorder
	ctrl *simctrl.Ctrl
}

func (r *clockRecorder) OnClock(uint64) {
	r.clocks++
	if r.clocks <= 2 {
		*r.log = append(*r.log, fmt.Sprintf("%s.clock%d", r.name, r.clocks))
	}
	if r.stopAt > 0 && r.clocks == r.stopAt {
		r.ctrl.RequestStop(r.stopOK)
	}
}

// flagExt adds a --mode flag.
type flagExt struct {
	mode   string
	exit   bool
	err    error
	parsed bool
}

func (f *flagExt) PreExec(*simctrl.Ctrl) error  { return nil }
func (f *flagExt) PostExec(*simctrl.Ctrl) error { return nil }

func (f *flagExt) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.mode, "mode", "", "test mode")
}

func (f *flagExt) ArgsParsed(*simctrl.Ctrl) (bool, error) {
	f.parsed = true
	return f.exit, f.err
}

// namedFlagExt registers one boolean flag with a chosen name.
type namedFlagExt struct {
	name  string
	short string
	value bool
}

func (f *namedFlagExt) PreExec(*simctrl.Ctrl) error  { return nil }
func (f *namedFlagExt) PostExec(*simctrl.Ctrl) error { return nil }

func (f *namedFlagExt) RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&f.value, f.name, f.short, false, "test flag")
}

func (f *namedFlagExt) ArgsParsed(*simctrl.Ctrl) (bool, error) {
	return false, nil
}

// hookCounter counts invocations per position.
type hookCounter struct {
	counts map[*sim.HookPos]int
}

func (h *hookCounter) Func(ctx sim.HookCtx) {
	h.counts[ctx.Pos]++
}
