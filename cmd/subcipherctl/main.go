// Command subcipherctl inspects cipher tables, manages saved recipes, reads
// the run history and serves the HTTP API.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/RowanDark/subcipher/internal/config"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "show":
		return runShow(args[1:], stdout, stderr)
	case "recipe":
		return runRecipe(args[1:], stdin, stdout, stderr)
	case "history":
		return runHistory(args[1:], stdout, stderr)
	case "serve":
		return runServe(args[1:], stdout, stderr)
	case "config":
		return runConfig(args[1:], stdout, stderr)
	case "version", "--version":
		return runVersion(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[0])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, strings.TrimSpace(`
usage: subcipherctl <command> [flags]

commands:
  show      print the substitution table for a seed
  recipe    save, list, show, delete or run recipes
  history   list recorded runs
  serve     run the HTTP API
  config    print the resolved configuration
  version   print the version`))
}

// newFlagSet returns a pflag set that reports errors to stderr and carries
// the shared --config flag.
func newFlagSet(name string, stderr io.Writer) (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "additional config file applied after the standard locations")
	return fs, configPath
}

// parseFlags maps pflag errors to exit codes. ok is false when the caller
// should return code.
func parseFlags(fs *pflag.FlagSet, args []string) (code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

func loadConfig(path string, stderr io.Writer) (config.Config, bool) {
	cfg, err := config.LoadWithFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return config.Config{}, false
	}
	return cfg, true
}
