package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-heapcheck/config"
	"github.com/wippyai/wasm-heapcheck/frontend"
	"github.com/wippyai/wasm-heapcheck/planner"
	"github.com/wippyai/wasm-heapcheck/trap"
)

// settings collects repeated -set flags.
type settings []string

func (s *settings) String() string { return strings.Join(*s, ",") }

func (s *settings) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type options struct {
	wasm        []string
	configPath  string
	target      string
	sets        settings
	spectre     bool
	verbose     bool
	interactive bool
}

func main() {
	var opts options
	var wasmFile string
	flag.StringVar(&wasmFile, "wasm", "", "Path to core wasm module")
	flag.StringVar(&opts.configPath, "config", "", "YAML config file")
	flag.Var(&opts.sets, "set", "Setting key=value (repeatable)")
	flag.BoolVar(&opts.spectre, "spectre", false, "Mask accesses instead of branching to a trap")
	flag.StringVar(&opts.target, "target", "", "Target architecture (amd64, arm64, riscv64, none)")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	flag.BoolVar(&opts.interactive, "i", false, "Interactive plan explorer")
	flag.Parse()

	if wasmFile != "" {
		opts.wasm = append(opts.wasm, wasmFile)
	}
	opts.wasm = append(opts.wasm, flag.Args()...)

	if len(opts.wasm) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: heapcheck -wasm <file.wasm> [-config cfg.yaml] [-set key=value]... [-spectre] [-target arch]")
		fmt.Fprintln(os.Stderr, "       heapcheck [flags] a.wasm b.wasm ...")
		fmt.Fprintln(os.Stderr, "       heapcheck -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}
	if opts.interactive && len(opts.wasm) != 1 {
		fmt.Fprintln(os.Stderr, "Error: interactive mode takes exactly one module")
		os.Exit(1)
	}

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if opts.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
		planner.SetLogger(logger.Named("planner"))
		trap.SetLogger(logger.Named("trap"))
		frontend.SetLogger(logger.Named("frontend"))
	}

	units := make([]frontend.Unit, 0, len(opts.wasm))
	for _, path := range opts.wasm {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		units = append(units, frontend.Unit{Name: path, Wasm: data})
	}

	reports, err := frontend.AnalyzeUnits(ctx, units, cfg)
	if err != nil {
		return err
	}

	if opts.interactive {
		return runInteractive(reports[0])
	}

	r := newRenderer(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
	for _, report := range reports {
		r.report(report)
	}
	return nil
}

// loadConfig layers the config file, -target, -spectre and -set flags.
func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}
	if opts.target != "" {
		if err := cfg.Set(config.SettingTarget + "=" + opts.target); err != nil {
			return nil, err
		}
	}
	if opts.spectre {
		cfg.Spectre = true
	}
	for _, s := range opts.sets {
		if err := cfg.Set(s); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}
