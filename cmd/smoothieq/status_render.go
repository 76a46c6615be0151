package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const ansiReset = "\x1b[0m"

var statusStyles = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

// statusPrinter writes sectioned "label: [KIND] message" reports. Color is
// only used when the destination is a terminal.
type statusPrinter struct {
	w        io.Writer
	colorize bool
	sections int
}

func newStatusPrinter(w io.Writer) *statusPrinter {
	return &statusPrinter{w: w, colorize: shouldColorize(w)}
}

func (p *statusPrinter) section(title string) {
	if p.sections > 0 {
		fmt.Fprintln(p.w)
	}
	p.sections++
	heading := "== " + strings.TrimSpace(title) + " =="
	p.println(statusInfo, heading)
	p.println(statusInfo, strings.Repeat("-", len(heading)))
}

func (p *statusPrinter) line(label string, kind statusKind, message string) {
	tag := "[" + statusStyles[kind].label + "]"
	if message != "" {
		tag += " " + message
	}
	p.println(kind, fmt.Sprintf("  %-20s %s", label+":", tag))
}

func (p *statusPrinter) println(kind statusKind, text string) {
	if p.colorize {
		text = statusStyles[kind].color + text + ansiReset
	}
	fmt.Fprintln(p.w, text)
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func workerStateKind(running, paused, forceStopping bool) (statusKind, string) {
	switch {
	case forceStopping:
		return statusWarn, "Force stopping"
	case running && paused:
		return statusWarn, "Pausing after current task"
	case running:
		return statusOK, "Running"
	case paused:
		return statusInfo, "Idle (paused)"
	default:
		return statusInfo, "Idle"
	}
}

func lastErrorKind(message string) statusKind {
	if strings.TrimSpace(message) == "" {
		return statusOK
	}
	return statusError
}
