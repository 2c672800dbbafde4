package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// ANSI color codes, disabled when stdout is not a terminal.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

var colorize = isatty.IsTerminal(os.Stdout.Fd())

func paint(color, s string) string {
	if !colorize {
		return s
	}
	return color + s + reset
}

func line(level, color, tag, msg string) {
	ts := time.Now().Format("15:04:05")
	fmt.Printf("%s %s %s %s\n",
		paint(dim, ts),
		paint(color, fmt.Sprintf("%-4s", level)),
		paint(bold, fmt.Sprintf("[%s]", tag)),
		msg)
}

// Info logs an informational message under a component tag.
func Info(tag, msg string) {
	line("INFO", cyan, tag, msg)
}

// Success logs a completed-action message under a component tag.
func Success(tag, msg string) {
	line("OK", green, tag, msg)
}

// Warn logs a non-fatal problem under a component tag.
func Warn(tag, msg string) {
	line("WARN", yellow, tag, msg)
}

// Error logs a failure under a component tag.
func Error(tag, msg string) {
	line("ERR", red, tag, msg)
}

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Println(paint(bold, "gw2-flipper "+version))
	fmt.Println(paint(dim, "trading post flip scanner"))
}

// Section prints a visual separator for a named phase.
func Section(name string) {
	fmt.Println(paint(bold, "── "+name+" ──"))
}

// Stats prints a single key/value diagnostic.
func Stats(key string, value interface{}) {
	fmt.Printf("  %s: %v\n", paint(dim, key), value)
}
