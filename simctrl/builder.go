package simctrl

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/sarchlab/rtlsim/model"
)

// Builder can be used to build a Ctrl.
type Builder struct {
	name       string
	version    string
	top        model.Top
	clk        *model.Signal
	rst        *model.Signal
	polarity   model.ResetPolarity
	extensions []Extension
	out        io.Writer
	errOut     io.Writer
	logger     *zap.Logger
	config     *Config
}

// MakeBuilder creates a new builder with default settings.
func MakeBuilder() Builder {
	return Builder{
		name:    "simulator",
		version: Version,
		out:     os.Stdout,
		errOut:  os.Stderr,
	}
}

// WithName sets the program name used in usage and messages.
func (b Builder) WithName(name string) Builder {
	b.name = name
	return b
}

// WithVersion sets the string printed by --version.
func (b Builder) WithVersion(version string) Builder {
	b.version = version
	return b
}

// WithTop sets the model, its clock and reset ports and the reset polarity.
func (b Builder) WithTop(
	top model.Top,
	clk, rst *model.Signal,
	polarity model.ResetPolarity,
) Builder {
	b.top = top
	b.clk = clk
	b.rst = rst
	b.polarity = polarity
	return b
}

// WithExtension appends an extension. Callbacks run in the order the
// extensions were added.
func (b Builder) WithExtension(ext Extension) Builder {
	b.extensions = append(append([]Extension(nil), b.extensions...), ext)
	return b
}

// WithOutput sets where reports are printed.
func (b Builder) WithOutput(w io.Writer) Builder {
	b.out = w
	return b
}

// WithErrOutput sets where errors and logs are printed.
func (b Builder) WithErrOutput(w io.Writer) Builder {
	b.errOut = w
	return b
}

// WithLogger sets the run logger. Without it a console logger on the error
// output is created once the verbosity is known.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

// WithConfig sets the base configuration that --config and flags override.
func (b Builder) WithConfig(config *Config) Builder {
	b.config = config
	return b
}

// Build creates the controller.
func (b Builder) Build() (*Ctrl, error) {
	if b.top == nil {
		return nil, fmt.Errorf("simctrl: no top-level model")
	}
	if b.clk == nil || b.rst == nil {
		return nil, fmt.Errorf("simctrl: clock and reset ports are required")
	}
	if b.clk == b.rst {
		return nil, fmt.Errorf("simctrl: clock and reset must be different ports")
	}
	if !b.polarity.Valid() {
		return nil, fmt.Errorf("simctrl: invalid reset polarity %v", b.polarity)
	}
	for i, ext := range b.extensions {
		if ext == nil {
			return nil, fmt.Errorf("simctrl: extension %d is nil", i)
		}
	}

	config := b.config
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("simctrl: invalid config: %w", err)
	}

	c := &Ctrl{
		name:       b.name,
		version:    b.version,
		top:        b.top,
		clk:        b.clk,
		rst:        b.rst,
		polarity:   b.polarity,
		extensions: append([]Extension(nil), b.extensions...),
		out:        b.out,
		errOut:     b.errOut,
		logger:     b.logger,
		baseConfig: config.Clone(),
		plusargs:   make(map[string]string),
		runID:      xid.New().String(),
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
		c.ownLog = true
	}

	return c, nil
}
