package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode"

	"github.com/RowanDark/subcipher/internal/cipher"
	"github.com/RowanDark/subcipher/internal/config"
)

func runRecipe(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "recipe subcommand required (save, list, show, delete, run)")
		return 2
	}
	switch args[0] {
	case "save":
		return runRecipeSave(args[1:], stdout, stderr)
	case "list":
		return runRecipeList(args[1:], stdout, stderr)
	case "show":
		return runRecipeShow(args[1:], stdout, stderr)
	case "delete":
		return runRecipeDelete(args[1:], stdout, stderr)
	case "run":
		return runRecipeRun(args[1:], stdin, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown recipe subcommand: %s\n", args[0])
		return 2
	}
}

func openRecipes(cfg config.Config, stderr io.Writer) (*cipher.RecipeManager, bool) {
	rm := cipher.NewRecipeManager(cfg.RecipesDir)
	if err := rm.LoadRecipes(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return nil, false
	}
	return rm, true
}

// parseStep reads "name" or "name:key=value,key=value". Integer values are
// stored as integers so seeds survive the round trip through JSON.
func parseStep(raw string) (cipher.OperationConfig, error) {
	name, rest, hasParams := strings.Cut(strings.TrimSpace(raw), ":")
	if name == "" {
		return cipher.OperationConfig{}, fmt.Errorf("step %q has no operation name", raw)
	}
	step := cipher.OperationConfig{Name: name}
	if !hasParams {
		return step, nil
	}
	step.Parameters = make(map[string]any)
	for _, pair := range strings.Split(rest, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return cipher.OperationConfig{}, fmt.Errorf("step %q: parameter %q must be key=value", raw, pair)
		}
		value = strings.TrimSpace(value)
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			step.Parameters[key] = n
		} else {
			step.Parameters[key] = value
		}
	}
	return step, nil
}

func runRecipeSave(args []string, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("recipe save", stderr)
	description := fs.String("description", "", "recipe description")
	tags := fs.StringSlice("tag", nil, "tag to attach (repeatable)")
	steps := fs.StringArray("step", nil, "pipeline step as name or name:key=value,... (repeatable, in order)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: subcipherctl recipe save NAME --step OP[:k=v,...] ...")
		return 2
	}
	if len(*steps) == 0 {
		fmt.Fprintln(stderr, "at least one --step is required")
		return 2
	}

	ops := make([]cipher.OperationConfig, 0, len(*steps))
	for _, raw := range *steps {
		step, err := parseStep(raw)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 2
		}
		ops = append(ops, step)
	}

	cfg, ok := loadConfig(*configPath, stderr)
	if !ok {
		return 1
	}
	rm, ok := openRecipes(cfg, stderr)
	if !ok {
		return 1
	}
	recipe := &cipher.Recipe{
		Name:        fs.Arg(0),
		Description: *description,
		Tags:        *tags,
		Pipeline:    cipher.Pipeline{Operations: ops, Reversible: true},
	}
	if err := rm.SaveRecipe(recipe); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "saved recipe %s (%s)\n", recipe.Name, recipe.ID)
	return 0
}

func runRecipeList(args []string, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("recipe list", stderr)
	query := fs.StringP("query", "q", "", "only list recipes whose name, description or tags match")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	cfg, ok := loadConfig(*configPath, stderr)
	if !ok {
		return 1
	}
	rm, ok := openRecipes(cfg, stderr)
	if !ok {
		return 1
	}

	recipes := rm.ListRecipes()
	if *query != "" {
		recipes = rm.SearchRecipes(*query)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tID\tSTEPS\tDESCRIPTION")
	for _, r := range recipes {
		names := make([]string, len(r.Pipeline.Operations))
		for i, op := range r.Pipeline.Operations {
			names[i] = op.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.ID, strings.Join(names, " > "), r.Description)
	}
	_ = tw.Flush()
	return 0
}

func runRecipeShow(args []string, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("recipe show", stderr)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: subcipherctl recipe show NAME")
		return 2
	}
	cfg, ok := loadConfig(*configPath, stderr)
	if !ok {
		return 1
	}
	rm, ok := openRecipes(cfg, stderr)
	if !ok {
		return 1
	}
	recipe, exists := rm.GetRecipe(fs.Arg(0))
	if !exists {
		fmt.Fprintf(stderr, "error: recipe %q: %v\n", fs.Arg(0), cipher.ErrRecipeNotFound)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recipe); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runRecipeDelete(args []string, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("recipe delete", stderr)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: subcipherctl recipe delete NAME")
		return 2
	}
	cfg, ok := loadConfig(*configPath, stderr)
	if !ok {
		return 1
	}
	rm, ok := openRecipes(cfg, stderr)
	if !ok {
		return 1
	}
	if err := rm.DeleteRecipe(fs.Arg(0)); err != nil {
		if errors.Is(err, cipher.ErrRecipeNotFound) {
			fmt.Fprintf(stderr, "error: recipe %q: %v\n", fs.Arg(0), err)
			return 1
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "deleted recipe %s\n", fs.Arg(0))
	return 0
}

func runRecipeRun(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("recipe run", stderr)
	decode := fs.BoolP("decode", "d", false, "run the recipe in reverse")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fmt.Fprintln(stderr, "usage: subcipherctl recipe run NAME [FILE]")
		return 2
	}
	cfg, ok := loadConfig(*configPath, stderr)
	if !ok {
		return 1
	}
	rm, ok := openRecipes(cfg, stderr)
	if !ok {
		return 1
	}
	recipe, exists := rm.GetRecipe(fs.Arg(0))
	if !exists {
		fmt.Fprintf(stderr, "error: recipe %q: %v\n", fs.Arg(0), cipher.ErrRecipeNotFound)
		return 1
	}

	var (
		input []byte
		err   error
	)
	if fs.NArg() == 1 || fs.Arg(1) == "-" {
		if input, err = io.ReadAll(stdin); err != nil {
			fmt.Fprintf(stderr, "error: read stdin: %v\n", err)
			return 1
		}
	} else if input, err = os.ReadFile(fs.Arg(1)); err != nil {
		fmt.Fprintf(stderr, "error: argument FILE: can't open %q: %v\n", fs.Arg(1), err)
		return 2
	}

	text := strings.TrimRightFunc(string(input), unicode.IsSpace)
	out, err := recipe.Run(context.Background(), []byte(text), *decode)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}
