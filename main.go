package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"golang.org/x/term"

	"github.com/mcncl/jsonflat/internal/config"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/logger"
	"github.com/mcncl/jsonflat/internal/merge"
	"github.com/mcncl/jsonflat/internal/models"
	"github.com/mcncl/jsonflat/internal/normalize"
	"github.com/mcncl/jsonflat/internal/parser"
	"github.com/mcncl/jsonflat/internal/reader"
	"github.com/mcncl/jsonflat/internal/table"
)

// CLI defines the command-line interface
var CLI struct {
	Input       string   `help:"Path to input file. If not specified, reads from stdin." short:"i" type:"path"`
	Output      string   `help:"Path to output file. Required for sqlite output. If not specified, writes to stdout." short:"o" type:"path"`
	Mode        string   `help:"Normalization mode: flatten or invert." short:"m"`
	Format      string   `help:"Output format: json, ndjson, csv or sqlite." short:"F"`
	InputFormat string   `help:"Input format: json, ndjson or yaml." name:"input-format"`
	Config      string   `help:"Path to configuration file (YAML or TOML)." short:"c" type:"path"`
	Records     bool     `help:"Treat each element of a root array as its own row." short:"r"`
	MergeIndex  []string `help:"Merge columns by index, as name=col1,col2. Repeatable." name:"merge-index" sep:"none"`
	MergeSimple []string `help:"Merge columns into one deduplicated list, as name=col1,col2. Repeatable." name:"merge-simple" sep:"none"`
	HeadLines   int      `help:"Only read the first N lines of the input." name:"head-lines"`
	HeadBytes   int      `help:"Only read the first N bytes of the input." name:"head-bytes"`
	Separator   string   `help:"Separator placed between joined keys (default _)." short:"s"`
	Table       string   `help:"Table name for sqlite output." name:"table"`
	Debug       bool     `help:"Enable debug logging." short:"d"`
	Verbose     bool     `help:"Report progress on stderr."`
	Version     bool     `help:"Show version information." short:"v"`
	Interactive bool     `help:"Run in interactive mode, allowing direct JSON input with Ctrl+D to process." short:"I"`
}

// Context holds the runtime context
type Context struct {
	Config *config.Config
}

// Version information
const (
	Version = "0.1.0"
)

func main() {
	// Parse CLI arguments with Kong
	parser := kong.Must(&CLI,
		kong.Name("jsonflat"),
		kong.Description("A tool to flatten nested JSON into tabular rows"),
		kong.UsageOnError(),
	)

	// Check if no arguments provided and set interactive mode by default
	if len(os.Args) == 1 {
		CLI.Interactive = true
	}

	// Parse the command line arguments
	_, err := parser.Parse(os.Args[1:])
	if err != nil {
		// If there's an error parsing arguments, the usage will already be shown by kong.UsageOnError()
		os.Exit(1)
	}

	// Show version and exit if requested
	if CLI.Version {
		fmt.Printf("jsonflat version %s\n", Version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		os.Exit(1)
	}

	logger.SetDebug(cfg.Dev.Debug)
	logger.SetVerbose(cfg.Dev.Verbose)

	err = run(&Context{Config: cfg})
	if err != nil {
		// Use our custom error handling to provide user-friendly error messages
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))

		// Show help on error
		fmt.Fprintf(os.Stderr, "\nFor help, run: jsonflat --help\n")

		os.Exit(1)
	}
}

// loadConfig finds the configuration file, unless one was given, and
// applies the command-line flags on top of it
func loadConfig() (*config.Config, error) {
	configPath := CLI.Config
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	overrides := config.CLIOverrides{
		Mode:         CLI.Mode,
		InputFormat:  CLI.InputFormat,
		OutputFormat: CLI.Format,
		Table:        CLI.Table,
		Records:      CLI.Records,
		HeadLines:    CLI.HeadLines,
		HeadBytes:    CLI.HeadBytes,
		Debug:        CLI.Debug,
		Verbose:      CLI.Verbose,
	}
	if CLI.Separator != "" {
		sep := CLI.Separator
		overrides.Separator = &sep
	}

	var err error
	if overrides.MergeByIndex, err = parseRules(CLI.MergeIndex); err != nil {
		return nil, errors.NewConfigError("invalid --merge-index value", err)
	}
	if overrides.MergeSimple, err = parseRules(CLI.MergeSimple); err != nil {
		return nil, errors.NewConfigError("invalid --merge-simple value", err)
	}

	cfg, err := config.LoadConfigWithCLI(configPath, overrides)
	if err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("failed to load configuration '%s'", configPath), err)
	}
	if configPath != "" {
		logger.Debug("loaded config from %s", configPath)
	}
	return cfg, nil
}

func parseRules(values []string) ([]config.MergeRule, error) {
	rules := make([]config.MergeRule, 0, len(values))
	for _, v := range values {
		rule, err := merge.ParseRule(v)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule.ToConfig())
	}
	return rules, nil
}

// run executes the main program logic
func run(ctx *Context) error {
	cfg := ctx.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}

	// 1. Resolve the pipeline stages from the configuration
	mode, err := normalize.ParseMode(cfg.Mode)
	if err != nil {
		return errors.NewConfigError("invalid mode", err)
	}
	inFormat, err := parser.ParseFormat(cfg.Input.Format)
	if err != nil {
		return errors.NewConfigError("invalid input format", err)
	}
	outFormat, err := table.ParseFormat(cfg.Output.Format)
	if err != nil {
		return errors.NewConfigError("invalid output format", err)
	}
	namer, err := table.NewNamerWithConfig(cfg)
	if err != nil {
		return errors.NewConfigError("invalid column naming", err)
	}

	normalizer := normalize.NewNormalizerWithConfig(cfg)
	byIndex := merge.SpecFromConfig(cfg.Merge.ByIndex)
	simple := merge.SpecFromConfig(cfg.Merge.Simple)

	// 2. Open the output
	out, closeOut, err := openOutput(outFormat)
	if err != nil {
		return err
	}
	defer closeOut()

	sink, err := table.NewSink(context.Background(), table.SinkOptions{
		Format: outFormat,
		Writer: out,
		Path:   CLI.Output,
		Table:  cfg.Output.Table,
		Namer:  namer,
	})
	if err != nil {
		return errors.NewOutputError("failed to create output", err)
	}

	// 3. Normalize and merge every record into the sink
	rows := 0
	process := func(record models.Value) error {
		rows++
		if logger.IsDebug() {
			logger.Dump(fmt.Sprintf("record %d", rows), record.Native())
		}

		flat, err := normalizer.Normalize(mode, record)
		if err != nil {
			return errors.NewNormalizeError(fmt.Sprintf("failed to %s record %d", mode, rows), err)
		}

		if obj, ok := flat.AsObject(); ok {
			if obj, err = merge.ByIndex(obj, byIndex); err != nil {
				return errors.NewMergeError(fmt.Sprintf("failed to merge columns of record %d", rows), err)
			}
			obj = merge.Simple(obj, simple)
			flat = models.ObjectValue(obj)
		} else if len(byIndex) > 0 || len(simple) > 0 {
			logger.Warn("record %d is not an object after normalization; merge rules skipped", rows)
		}

		logger.Debug("record %d: %s", rows, flat)
		if err := sink.Append(flat); err != nil {
			return errors.NewOutputError("failed to write record", err)
		}
		return nil
	}

	perElement := cfg.Input.Records
	err = parseInput(cfg, inFormat, func(v models.Value) error {
		ir := models.IntermediateRepresentation{Root: v, RootIsArray: v.Kind() == models.ArrayKind}
		for _, record := range ir.Records(perElement) {
			if err := process(record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 4. Flush buffered formats
	if err := sink.Close(); err != nil {
		return errors.NewOutputError(fmt.Sprintf("failed to write %s output", outFormat), err)
	}
	logger.Info("wrote %d records as %s", rows, outFormat)
	return nil
}

// parseInput reads records from a file, the head of a file, or stdin
func parseInput(cfg *config.Config, format parser.Format, fn func(models.Value) error) error {
	if n, mode := headLimit(cfg); n > 0 {
		var (
			text string
			err  error
		)
		if CLI.Input != "" {
			text, err = reader.ReadHead(CLI.Input, n, mode)
		} else {
			text, err = reader.Head(os.Stdin, n, mode)
		}
		if err != nil {
			return err
		}
		logger.Debug("read %d %s of input", n, mode)
		return parser.ParseEach(strings.NewReader(text), format, fn)
	}

	if CLI.Input != "" {
		// Parse from file
		return parser.ParseFileEach(CLI.Input, format, fn)
	}

	// Interactive mode or piped input
	if term.IsTerminal(int(os.Stdin.Fd())) {
		// Terminal is interactive (not piped)
		if CLI.Interactive {
			data, err := readInteractiveInput()
			if err != nil {
				return err
			}
			return parser.ParseEach(strings.NewReader(data), format, fn)
		}
		// No data provided on stdin and not in interactive mode
		return errors.NewInputError("no input provided", errors.ErrNoInput)
	}

	// Read from stdin (piped input)
	return parser.ParseEach(os.Stdin, format, fn)
}

func headLimit(cfg *config.Config) (int, reader.Mode) {
	if cfg.Input.Head.Bytes > 0 {
		return cfg.Input.Head.Bytes, reader.ModeBytes
	}
	return cfg.Input.Head.Lines, reader.ModeLines
}

// openOutput returns the writer for text formats. SQLite writes to the
// database file itself and only needs the path.
func openOutput(format table.Format) (io.Writer, func(), error) {
	if format == table.FormatSQLite {
		if CLI.Output == "" {
			return nil, nil, errors.NewOutputError("sqlite output needs a database file, use -o", errors.ErrInvalidFilePath)
		}
		return nil, func() {}, nil
	}

	if CLI.Output == "" {
		return os.Stdout, func() {}, nil
	}

	file, err := os.Create(CLI.Output)
	if err != nil {
		return nil, nil, errors.NewOutputError(fmt.Sprintf("failed to write to file '%s'", CLI.Output), err)
	}
	return file, func() {
		if err := file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing file: %v\n", err)
			return
		}
		fmt.Fprintf(os.Stderr, "Output written to %s\n", CLI.Output)
	}, nil
}

// readInteractiveInput provides an interactive mode for users to paste JSON
// and signal completion with Ctrl+D (EOF)
func readInteractiveInput() (string, error) {
	fmt.Fprintln(os.Stderr, "jsonflat Interactive Mode")
	fmt.Fprintln(os.Stderr, "Paste your JSON below and press Ctrl+D (or Ctrl+Z on Windows) when done:")

	// Read all input until EOF (Ctrl+D)
	stdin := bufio.NewReader(os.Stdin)
	var jsonBuilder strings.Builder

	for {
		line, err := stdin.ReadString('\n')
		jsonBuilder.WriteString(line)
		if err == io.EOF {
			// End of input
			break
		}
		if err != nil {
			return "", errors.NewInputError("error reading input", err)
		}
	}

	jsonData := jsonBuilder.String()
	if strings.TrimSpace(jsonData) == "" {
		return "", errors.NewInputError("empty input received", errors.ErrEmptyInput)
	}

	fmt.Fprintln(os.Stderr, "\nProcessing JSON...")
	return jsonData, nil
}
