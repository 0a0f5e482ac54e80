package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// console provides colored terminal output for interactive runs, kept
// separate from the file logger so machine-readable output stays clean.
type console struct {
	writer io.Writer
	quiet  bool

	colorReset     string
	colorCyan      string
	colorYellow    string
	colorGray      string
	colorBoldGreen string
	colorBoldRed   string
	colorBoldWhite string
}

func newConsole(quiet bool) *console {
	return &console{
		writer:         os.Stdout,
		quiet:          quiet,
		colorReset:     "\033[0m",
		colorCyan:      "\033[36m",
		colorYellow:    "\033[33m",
		colorGray:      "\033[90m",
		colorBoldGreen: "\033[1;32m",
		colorBoldRed:   "\033[1;31m",
		colorBoldWhite: "\033[1;37m",
	}
}

// Header prints a prominent banner.
func (c *console) Header(message string) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.writer, "\n%s%s%s\n", c.colorBoldWhite, strings.Repeat("=", 60), c.colorReset)
	fmt.Fprintf(c.writer, "%s  %s%s\n", c.colorBoldWhite, message, c.colorReset)
	fmt.Fprintf(c.writer, "%s%s%s\n", c.colorBoldWhite, strings.Repeat("=", 60), c.colorReset)
}

func (c *console) Infof(format string, args ...interface{}) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.writer, "%s%s%s\n", c.colorCyan, fmt.Sprintf(format, args...), c.colorReset)
}

func (c *console) Detailf(format string, args ...interface{}) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.writer, "%s  %s%s\n", c.colorGray, fmt.Sprintf(format, args...), c.colorReset)
}

// Successf prints a success line with a checkmark.
func (c *console) Successf(format string, args ...interface{}) {
	fmt.Fprintf(c.writer, "%s✓ %s%s\n", c.colorBoldGreen, fmt.Sprintf(format, args...), c.colorReset)
}

func (c *console) Warnf(format string, args ...interface{}) {
	fmt.Fprintf(c.writer, "%s⚠ %s%s\n", c.colorYellow, fmt.Sprintf(format, args...), c.colorReset)
}

func (c *console) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", c.colorBoldRed, fmt.Sprintf(format, args...), c.colorReset)
}
