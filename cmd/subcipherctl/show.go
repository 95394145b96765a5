package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/RowanDark/subcipher/internal/cipher"
	"github.com/RowanDark/subcipher/internal/logging"
	"github.com/RowanDark/subcipher/internal/subst"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Width(8).Foreground(lipgloss.Color("8"))
	plainStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	cipherStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func runShow(args []string, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("show", stderr)
	seed := fs.Int64P("seed", "s", subst.DefaultSeed, "cipher seed (default from config)")
	format := fs.StringP("format", "f", "text", "output format: text, json, yaml or cbor")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "show takes no arguments")
		return 2
	}

	cfg, ok := loadConfig(*configPath, stderr)
	if !ok {
		return 1
	}
	if !fs.Changed("seed") {
		*seed = cfg.DefaultSeed
	}
	c := cipher.CipherFor(*seed)

	switch f := strings.ToLower(*format); f {
	case "text":
		if logging.IsTerminal(stdout) {
			fmt.Fprintln(stdout, renderStyled(c))
		} else {
			fmt.Fprint(stdout, renderPlain(c))
		}
		return 0
	case string(subst.FormatJSON), string(subst.FormatYAML), string(subst.FormatCBOR):
		data, err := c.Export(subst.Format(f))
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		_, _ = stdout.Write(data)
		if f == string(subst.FormatJSON) {
			fmt.Fprintln(stdout)
		}
		return 0
	default:
		fmt.Fprintf(stderr, "unknown format %q (want text, json, yaml or cbor)\n", *format)
		return 2
	}
}

func describe(c *subst.Cipher) string {
	desc := fmt.Sprintf("seed %d", c.Seed())
	if c.Reserved() {
		desc += fmt.Sprintf(" (reserved, fixture %s, encode forces uppercase)", subst.FixtureVersion())
	}
	return desc
}

func letters(t *subst.Table) string {
	p := t.Letters()
	return string(p[:])
}

func renderPlain(c *subst.Cipher) string {
	var b strings.Builder
	fmt.Fprintln(&b, describe(c))
	fmt.Fprintf(&b, "fingerprint %s\n", c.Fingerprint())
	fmt.Fprintf(&b, "%-8s%s\n", "plain", subst.Alphabet)
	fmt.Fprintf(&b, "%-8s%s\n", "encode", letters(c.EncodeTable()))
	fmt.Fprintf(&b, "%-8s%s\n", "decode", letters(c.DecodeTable()))
	return b.String()
}

func renderStyled(c *subst.Cipher) string {
	rows := []string{
		titleStyle.Render(describe(c)),
		plainStyle.Render("fingerprint " + c.Fingerprint()),
		"",
		labelStyle.Render("plain") + plainStyle.Render(subst.Alphabet),
		labelStyle.Render("encode") + cipherStyle.Render(letters(c.EncodeTable())),
		labelStyle.Render("decode") + cipherStyle.Render(letters(c.DecodeTable())),
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
