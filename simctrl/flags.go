package simctrl

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

type cliFlags struct {
	help          bool
	version       bool
	termAfter     uint64
	trace         string
	resetDelay    uint64
	resetDuration uint64
	configPath    string
	verbose       bool
	statsView     bool
}

func (c *Ctrl) newFlagSet() (*pflag.FlagSet, *cliFlags, error) {
	fs := pflag.NewFlagSet(c.name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	f := &cliFlags{}
	fs.BoolVarP(&f.help, "help", "h", false, "Show this help and exit")
	fs.BoolVar(&f.version, "version", false, "Show the version and exit")
	fs.Uint64VarP(&f.termAfter, "term-after-cycles", "c", 0,
		"Stop the simulation as failed after N cycles (0: no limit)")
	fs.StringVarP(&f.trace, "trace", "t", "",
		"Write a VCD trace to FILE")
	fs.Lookup("trace").NoOptDefVal = DefaultTraceFile
	fs.Uint64Var(&f.resetDelay, "reset-delay", 0,
		"Cycles before reset is asserted")
	fs.Uint64Var(&f.resetDuration, "reset-duration", 0,
		"Cycles reset stays asserted")
	fs.StringVar(&f.configPath, "config", "", "Read run settings from a YAML file")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")
	fs.BoolVar(&f.statsView, "statsview", false,
		"Serve runtime statistics over HTTP while running")

	for _, p := range c.flagParsers() {
		sub := pflag.NewFlagSet(c.name, pflag.ContinueOnError)
		p.RegisterFlags(sub)
		if err := checkCollisions(fs, sub); err != nil {
			return nil, nil, err
		}
		fs.AddFlagSet(sub)
	}

	return fs, f, nil
}

// checkCollisions reports a flag in sub whose name or shorthand is
// already taken in fs.
func checkCollisions(fs, sub *pflag.FlagSet) error {
	var err error
	sub.VisitAll(func(fl *pflag.Flag) {
		if err != nil {
			return
		}
		if fs.Lookup(fl.Name) != nil {
			err = fmt.Errorf("flag --%s is registered more than once", fl.Name)
			return
		}
		if fl.Shorthand != "" && fs.ShorthandLookup(fl.Shorthand) != nil {
			err = fmt.Errorf("flag -%s (--%s) is registered more than once", fl.Shorthand, fl.Name)
		}
	})
	return err
}

// flagParsers returns the top, if it parses flags, followed by the
// extensions that do.
func (c *Ctrl) flagParsers() []FlagParser {
	var parsers []FlagParser
	if p, ok := c.top.(FlagParser); ok {
		parsers = append(parsers, p)
	}
	for _, ext := range c.extensions {
		if p, ok := ext.(FlagParser); ok {
			parsers = append(parsers, p)
		}
	}
	return parsers
}

// parseArgs parses the command line into the run configuration.
func (c *Ctrl) parseArgs(args []string) (exitApp bool, err error) {
	fs, f, err := c.newFlagSet()
	if err != nil {
		return false, err
	}

	if err := fs.Parse(args); err != nil {
		return false, err
	}

	if f.help {
		c.printUsage(fs)
		return true, nil
	}
	if f.version {
		fmt.Fprintf(c.out, "%s %s\n", c.name, c.version)
		return true, nil
	}

	for _, arg := range fs.Args() {
		if !strings.HasPrefix(arg, "+") {
			return false, fmt.Errorf("unexpected argument %q", arg)
		}
		name, value, _ := strings.Cut(arg[1:], "=")
		if name == "" {
			return false, fmt.Errorf("malformed plusarg %q", arg)
		}
		c.plusargs[name] = value
	}

	config := c.baseConfig.Clone()
	if f.configPath != "" {
		if err := config.merge(f.configPath); err != nil {
			return false, err
		}
	}
	applyFlags(fs, f, config)
	if err := config.Validate(); err != nil {
		return false, fmt.Errorf("invalid configuration: %w", err)
	}
	c.config = config

	if c.ownLog {
		c.logger = NewLogger(c.errOut, config.Verbose)
	}

	for _, p := range c.flagParsers() {
		exit, err := p.ArgsParsed(c)
		if err != nil {
			return false, err
		}
		if exit {
			return true, nil
		}
	}

	return false, nil
}

func applyFlags(fs *pflag.FlagSet, f *cliFlags, config *Config) {
	if fs.Changed("term-after-cycles") {
		config.TermAfterCycles = f.termAfter
	}
	if fs.Changed("trace") {
		config.TraceFile = f.trace
	}
	if fs.Changed("reset-delay") {
		config.InitialResetDelayCycles = f.resetDelay
	}
	if fs.Changed("reset-duration") {
		config.ResetDurationCycles = f.resetDuration
	}
	if fs.Changed("verbose") {
		config.Verbose = f.verbose
	}
	if fs.Changed("statsview") {
		config.StatsView = f.statsView
	}
}

func (c *Ctrl) printUsage(fs *pflag.FlagSet) {
	fmt.Fprintf(c.out, "Usage: %s [OPTIONS] [+PLUSARG[=VALUE]...]\n\n", c.name)
	fmt.Fprintf(c.out, "Options:\n%s", fs.FlagUsages())
}
