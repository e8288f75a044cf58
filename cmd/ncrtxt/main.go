// Command ncrtxt converts HTML/XML numeric character references in text
// files into the characters they stand for.
//
//	ncrtxt input.txt output.txt
//	ncrtxt batch --out-dir decoded 'docs/**/*.html'
//	ncrtxt watch input.txt output.txt
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/ncrtxt/core/convert"
	cerrors "github.com/FocuswithJustin/ncrtxt/core/errors"
	"github.com/FocuswithJustin/ncrtxt/core/ncr"
	"github.com/FocuswithJustin/ncrtxt/internal/batch"
	"github.com/FocuswithJustin/ncrtxt/internal/config"
	"github.com/FocuswithJustin/ncrtxt/internal/logging"
	"github.com/FocuswithJustin/ncrtxt/internal/validation"
	"github.com/FocuswithJustin/ncrtxt/internal/watch"
)

const version = "1.0.0"

const description = `Convert numeric character references to Unicode characters.

Supported forms:
  decimal:      &#18487;        -> 䠷
  hexadecimal:  &#x4E2D;        -> 中
  mixed:        &#65;&#66;&#67; -> ABC

Use "ncrtxt convert <input> <output>" when the input file is named like a
command, such as "batch" or "watch".`

// CLI defines the command-line interface for ncrtxt.
type CLI struct {
	// Global flags
	Config        string           `help:"Config file, applied over user and project config" type:"path" placeholder:"FILE"`
	ChunkSize     int              `name:"chunk-size" help:"Bytes read per iteration (default 1048576)" placeholder:"BYTES"`
	NamedEntities bool             `name:"named-entities" help:"Also decode named entities such as &amp; and &eacute;"`
	Charset       string           `help:"Input charset, e.g. windows-1252, or auto to detect it" placeholder:"NAME"`
	Atomic        bool             `help:"Write to a temporary file and rename it into place on success"`
	Checksum      bool             `help:"Print the BLAKE3 digest of each output"`
	LogLevel      string           `name:"log-level" help:"Log level (debug, info, warn, error)" placeholder:"LEVEL"`
	LogFormat     string           `name:"log-format" help:"Log format (text, json)" placeholder:"FORMAT"`
	Version       kong.VersionFlag `help:"Print version and exit"`

	Convert    ConvertCmd    `cmd:"" default:"withargs" help:"Convert one file (default command)"`
	Batch      BatchCmd      `cmd:"" help:"Convert every file matched by glob patterns"`
	Watch      WatchCmd      `cmd:"" help:"Convert a file again whenever it changes"`
	InitConfig InitConfigCmd `cmd:"" name:"init-config" help:"Write a config file with the default settings"`
}

// app is what every command runs against.
type app struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config
}

// ConvertCmd converts a single file.
type ConvertCmd struct {
	Input  string `arg:"" name:"input_file" help:"File containing numeric character references"`
	Output string `arg:"" name:"output_file" help:"Converted file, created or overwritten"`
}

func (c *ConvertCmd) Run(a *app) error {
	if err := validation.ValidatePath(c.Input); err != nil {
		return cerrors.NewValidation("input_file", c.Input, err.Error())
	}
	if err := validation.ValidatePath(c.Output); err != nil {
		return cerrors.NewValidation("output_file", c.Output, err.Error())
	}

	conv, err := a.converter()
	if err != nil {
		return err
	}

	res, err := conv.ConvertFile(a.ctx, c.Input, c.Output)
	if err != nil {
		return err
	}

	a.printResult(res)
	return nil
}

// BatchCmd converts many files into an output directory.
type BatchCmd struct {
	Patterns []string `arg:"" name:"pattern" help:"Glob patterns; ** matches any number of directories"`
	OutDir   string   `name:"out-dir" required:"" help:"Directory that receives the converted files" type:"path"`
	Jobs     int      `help:"Files converted at the same time (default: number of CPUs)"`
	Suffix   string   `help:"Suffix appended to each output file name"`
}

func (c *BatchCmd) Run(a *app) error {
	a.cfg.Merge(&config.Config{Batch: config.BatchConfig{Jobs: c.Jobs, Suffix: c.Suffix}})
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	conv, err := a.converter()
	if err != nil {
		return err
	}

	items, err := batch.Run(a.ctx, conv, batch.Options{
		Patterns: c.Patterns,
		OutDir:   c.OutDir,
		Jobs:     a.cfg.Batch.Jobs,
		Suffix:   a.cfg.Batch.Suffix,
	})
	for _, it := range items {
		if it.Result != nil {
			a.printResult(it.Result)
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "✓ converted %d files\n", len(items))
	return nil
}

// WatchCmd keeps an output in step with its input.
type WatchCmd struct {
	Input  string `arg:"" name:"input_file" help:"File to watch"`
	Output string `arg:"" name:"output_file" help:"Converted file, rewritten after every change"`
}

func (c *WatchCmd) Run(a *app) error {
	conv, err := a.converter()
	if err != nil {
		return err
	}

	return watch.Run(a.ctx, conv, c.Input, c.Output, func(res *convert.Result, err error) {
		if err != nil {
			reportError(a.stderr, err)
			return
		}
		a.printResult(res)
	})
}

// InitConfigCmd writes the default configuration to a file.
type InitConfigCmd struct {
	Path  string `arg:"" optional:"" help:"Where to write the config" default:"ncrtxt.yaml" type:"path"`
	Force bool   `help:"Overwrite an existing file"`
}

func (c *InitConfigCmd) Run(a *app) error {
	if _, err := os.Stat(c.Path); err == nil {
		if !c.Force {
			return cerrors.NewValidation("path", c.Path, "file exists, use --force to overwrite")
		}
		logging.Warn("overwriting existing config", "path", c.Path)
	}
	if err := config.DefaultConfig().SaveToFile(c.Path); err != nil {
		return cerrors.NewIO("write config", c.Path, err)
	}
	fmt.Fprintf(a.stdout, "✓ wrote config: %s\n", c.Path)
	return nil
}

func (a *app) converter() (*convert.Converter, error) {
	opts := []convert.Option{
		convert.WithChunkSize(a.cfg.Convert.ChunkSize),
		convert.WithCharset(a.cfg.Convert.Charset),
		convert.WithAtomic(a.cfg.Convert.Atomic),
		convert.WithLogger(logging.GetLogger()),
	}
	if a.cfg.Convert.NamedEntities {
		opts = append(opts, convert.WithDecoder(ncr.NewDecoder(ncr.WithNamedEntities())))
	}
	return convert.New(opts...)
}

func (a *app) printResult(res *convert.Result) {
	fmt.Fprintf(a.stdout, "✓ converted: %s -> %s\n", res.Input, res.Output)
	if a.cfg.Convert.Checksum {
		fmt.Fprintf(a.stdout, "  BLAKE3: %s\n", res.Digest)
	}
}

// reportError writes a diagnostic for err, chosen by its kind.
func reportError(w io.Writer, err error) {
	var (
		notFound    *cerrors.NotFoundError
		encoding    *cerrors.EncodingError
		ioErr       *cerrors.IOError
		invalid     *cerrors.ValidationError
		unsupported *cerrors.UnsupportedError
	)
	switch {
	case cerrors.As(err, &notFound):
		fmt.Fprintf(w, "error: %v\n", err)
	case cerrors.As(err, &encoding):
		fmt.Fprintf(w, "encoding error: %v\n", err)
		fmt.Fprintln(w, "hint: make sure the input file is UTF-8 encoded, or name its encoding with --charset")
	case cerrors.As(err, &ioErr):
		fmt.Fprintf(w, "file operation error: %v\n", err)
	case cerrors.Is(err, context.Canceled):
		fmt.Fprintln(w, "interrupted")
	case cerrors.As(err, &invalid), cerrors.As(err, &unsupported):
		fmt.Fprintf(w, "error: %v\n", err)
	default:
		fmt.Fprintf(w, "unexpected error: %v\n", err)
	}
}

// exitCode is raised by the kong exit hook so run can return it.
type exitCode int

// run executes the command line in args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			c, ok := r.(exitCode)
			if !ok {
				panic(r)
			}
			code = int(c)
		}
	}()

	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("ncrtxt"),
		kong.Description(description),
		kong.Vars{"version": "ncrtxt " + version},
		kong.Writers(stdout, stderr),
		kong.Exit(func(c int) { panic(exitCode(c)) }),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	if err != nil {
		fmt.Fprintf(stderr, "ncrtxt: %v\n", err)
		return 1
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "ncrtxt: error: %v\n", err)
		var parseErr *kong.ParseError
		if cerrors.As(err, &parseErr) && parseErr.Context != nil {
			_ = parseErr.Context.PrintUsage(true)
		}
		return 2
	}

	a, err := setup(ctx, &cli, stdout, stderr)
	if err != nil {
		reportError(stderr, err)
		return 1
	}

	if err := kctx.Run(a); err != nil {
		logging.LoggerFromContext(a.ctx, nil).Debug("command failed", "command", kctx.Command(), "error", err)
		reportError(stderr, err)
		return 1
	}
	logging.Info("command complete", "command", kctx.Command(), "run_id", logging.GetRunID(a.ctx))
	return 0
}

// setup loads the layered configuration, applies the global flags over it
// and configures logging.
func setup(ctx context.Context, cli *CLI, stdout, stderr io.Writer) (*app, error) {
	level, err := logging.ParseLevel(cli.LogLevel)
	if err != nil || cli.LogLevel == "" {
		level = logging.LevelWarn
	}
	format, _ := logging.ParseFormat(cli.LogFormat)
	logging.InitLogger(stderr, level, format)

	cfg, err := config.NewLoader(logging.GetLogger()).Load(cli.Config)
	if err != nil {
		return nil, err
	}
	cfg.Merge(&config.Config{
		Convert: config.ConvertConfig{
			ChunkSize:     cli.ChunkSize,
			NamedEntities: cli.NamedEntities,
			Charset:       cli.Charset,
			Atomic:        cli.Atomic,
			Checksum:      cli.Checksum,
		},
		Log: config.LogConfig{
			Level:  cli.LogLevel,
			Format: cli.LogFormat,
		},
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, _ = logging.ParseLevel(cfg.Log.Level)
	format, _ = logging.ParseFormat(cfg.Log.Format)
	logging.InitLogger(stderr, level, format)
	logging.Debug("configuration loaded",
		"chunk_size", cfg.Convert.ChunkSize,
		"charset", cfg.Convert.Charset,
		"named_entities", cfg.Convert.NamedEntities,
		"atomic", cfg.Convert.Atomic)

	ctx = logging.WithRunID(ctx, logging.NewRunID())
	return &app{ctx: ctx, stdout: stdout, stderr: stderr, cfg: cfg}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
