package main

import (
	"fmt"
	"io"
)

func runConfig(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "config subcommand required")
		return 2
	}

	switch args[0] {
	case "print":
		return runConfigPrint(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func runConfigPrint(args []string, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("config print", stderr)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	cfg, ok := loadConfig(*configPath, stderr)
	if !ok {
		return 1
	}
	data, err := cfg.YAML()
	if err != nil {
		fmt.Fprintf(stderr, "error: encode config: %v\n", err)
		return 1
	}
	_, _ = stdout.Write(data)
	return 0
}
