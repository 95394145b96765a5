// Command subcipher encodes or decodes a file with the seeded substitution
// cipher.
//
//	subcipher [flags] FILE
//
// FILE may be "-" to read standard input. The input is read whole, trailing
// whitespace is removed, and the result is written followed by a newline.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/pflag"

	"github.com/RowanDark/subcipher/internal/cipher"
	"github.com/RowanDark/subcipher/internal/config"
	"github.com/RowanDark/subcipher/internal/history"
	"github.com/RowanDark/subcipher/internal/logging"
	"github.com/RowanDark/subcipher/internal/observability/tracing"
	"github.com/RowanDark/subcipher/internal/subst"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	seed        int64
	decode      bool
	outfile     string
	recipe      string
	configPath  string
	verbose     bool
	showVersion bool
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts options
	fs := pflag.NewFlagSet("subcipher", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: subcipher [flags] FILE")
		fs.PrintDefaults()
	}
	fs.Int64VarP(&opts.seed, "seed", "s", subst.DefaultSeed, "cipher seed (default from config)")
	fs.BoolVarP(&opts.decode, "decode", "d", false, "decode instead of encode")
	fs.StringVarP(&opts.outfile, "outfile", "o", "", "write the result to this file instead of stdout")
	fs.StringVarP(&opts.recipe, "recipe", "r", "", "run a saved recipe instead of a single substitution")
	fs.StringVar(&opts.configPath, "config", "", "additional config file applied after the standard locations")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging on stderr")
	fs.BoolVar(&opts.showVersion, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "error: exactly one FILE argument is required")
		fs.Usage()
		return 2
	}
	if opts.recipe != "" && fs.Changed("seed") {
		fmt.Fprintln(stderr, "error: --seed cannot be combined with --recipe")
		return 2
	}

	cfg, err := config.LoadWithFile(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if !fs.Changed("seed") {
		opts.seed = cfg.DefaultSeed
	}

	log := logging.NewCommandLogger(stderr, opts.verbose)
	if err := execute(context.Background(), cfg, opts, fs.Arg(0), stdin, stdout, log); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		var uerr usageError
		if errors.As(err, &uerr) {
			return 2
		}
		return 1
	}
	return 0
}

// usageError marks failures caused by a bad command-line argument. They exit
// with status 2 like flag errors.
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

func execute(ctx context.Context, cfg config.Config, opts options, path string, stdin io.Reader, stdout io.Writer, log *slog.Logger) (err error) {
	shutdown, err := tracing.Setup(ctx, tracing.Config{
		ServiceName: "subcipher",
		SampleRatio: cfg.Tracing.SampleRatio,
		FilePath:    cfg.Tracing.File,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if serr := shutdown(context.Background()); serr != nil {
			log.Warn("tracing shutdown failed", "error", serr)
		}
	}()

	audit, err := openAudit(cfg.AuditLog)
	if err != nil {
		return err
	}
	defer audit.Close()

	var store *history.Store
	if cfg.HistoryPath != "" {
		store, err = history.Open(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
	}

	raw, err := readInput(path, stdin)
	if err != nil {
		return err
	}
	text := strings.TrimRightFunc(string(raw), unicode.IsSpace)
	mode := subst.ModeFor(opts.decode)

	start := time.Now()
	var (
		out   []byte
		entry history.Entry
		event = logging.AuditEvent{Decision: logging.DecisionAllow}
	)
	if opts.recipe != "" {
		out, entry, err = runRecipe(ctx, cfg.RecipesDir, opts.recipe, text, opts.decode)
		event.EventType = logging.EventPipelineRun
	} else {
		out, entry, err = runSubstitution(ctx, opts.seed, mode, text)
		event.EventType = logging.EventCipherRun
	}
	if err != nil {
		_ = audit.Emit(logging.AuditEvent{
			EventType: event.EventType,
			Decision:  logging.DecisionDeny,
			Reason:    err.Error(),
			TraceID:   tracing.TraceIDFromContext(ctx),
		})
		return err
	}
	log.Debug("transform complete",
		"seed", entry.Seed,
		"mode", string(mode),
		"reserved", entry.Reserved,
		"recipe", entry.Recipe,
		"duration", time.Since(start),
	)

	if err := writeOutput(opts.outfile, stdout, out); err != nil {
		return err
	}

	event.Metadata = map[string]any{
		"seed":         entry.Seed,
		"mode":         string(mode),
		"reserved":     entry.Reserved,
		"fingerprint":  entry.Fingerprint,
		"input_bytes":  entry.InputBytes,
		"output_bytes": entry.OutputBytes,
	}
	if entry.Recipe != "" {
		event.Metadata["recipe"] = entry.Recipe
	}
	if err := audit.Emit(event); err != nil {
		log.Warn("audit emit failed", "error", err)
	}
	if store != nil {
		if _, err := store.Record(ctx, entry); err != nil {
			log.Warn("history record failed", "error", err)
		}
	}
	return nil
}

func runSubstitution(ctx context.Context, seed int64, mode subst.Mode, text string) ([]byte, history.Entry, error) {
	c := cipher.CipherFor(seed)
	out, err := cipher.Substitute(ctx, c, mode, []byte(text), "")
	if err != nil {
		return nil, history.Entry{}, err
	}
	entry := history.NewEntry(c, mode, history.SourceCLI, len(text), len(out))
	return out, entry, nil
}

func runRecipe(ctx context.Context, dir, name, text string, decode bool) ([]byte, history.Entry, error) {
	rm := cipher.NewRecipeManager(dir)
	if err := rm.LoadRecipes(); err != nil {
		return nil, history.Entry{}, fmt.Errorf("load recipes: %w", err)
	}
	recipe, ok := rm.GetRecipe(name)
	if !ok {
		return nil, history.Entry{}, fmt.Errorf("recipe %q: %w", name, cipher.ErrRecipeNotFound)
	}
	out, err := recipe.Run(ctx, []byte(text), decode)
	if err != nil {
		return nil, history.Entry{}, err
	}
	mode := subst.ModeFor(decode)
	entry := history.Entry{Mode: mode, InputBytes: len(text), OutputBytes: len(out)}
	if seed, ok := recipeSeed(recipe); ok {
		entry = history.NewEntry(subst.New(seed), mode, history.SourceRecipe, len(text), len(out))
	}
	entry.Source = history.SourceRecipe
	entry.Recipe = recipe.Name
	return out, entry, nil
}

// recipeSeed returns the seed of the first substitution step in recipe.
func recipeSeed(recipe *cipher.Recipe) (int64, bool) {
	for _, step := range recipe.Pipeline.Operations {
		if !strings.HasPrefix(step.Name, "substitute_") {
			continue
		}
		seed, err := cipher.SeedParam(step.Parameters)
		if err != nil {
			return 0, false
		}
		return seed, true
	}
	return 0, false
}

func openAudit(path string) (*logging.AuditLogger, error) {
	if strings.TrimSpace(path) == "" {
		return logging.Discard("subcipher"), nil
	}
	logger, err := logging.NewAuditLogger("subcipher", logging.WithoutStdout(), logging.WithFile(path))
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return logger, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, usageError{fmt.Errorf("argument FILE: can't open %q: %w", path, err)}
	}
	return data, nil
}

func writeOutput(path string, stdout io.Writer, out []byte) error {
	data := append(out, '\n')
	if path == "" || path == "-" {
		if _, err := stdout.Write(data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
