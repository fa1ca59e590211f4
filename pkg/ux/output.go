// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the graphc CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette - deep ocean teals
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon provides themed status icons.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return Styles.Muted.Render(string(i))
	}
}

// Level selects how much decoration output carries.
type Level string

const (
	// LevelFull renders colors, icons and boxes.
	LevelFull Level = "full"

	// LevelMinimal renders icons without boxes.
	LevelMinimal Level = "minimal"

	// LevelMachine renders plain prefixed lines for scripts.
	LevelMachine Level = "machine"
)

// ParseLevel converts a string to a Level. Unknown values map to full.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal", "min", "m":
		return LevelMinimal
	case "machine", "quiet", "q":
		return LevelMachine
	default:
		return LevelFull
	}
}

// DetectLevel picks the level for f: GRAPHC_OUTPUT when set, machine
// when f is not a terminal, full otherwise.
func DetectLevel(f *os.File) Level {
	if env := os.Getenv("GRAPHC_OUTPUT"); env != "" {
		return ParseLevel(env)
	}
	if f == nil || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return LevelMachine
	}
	return LevelFull
}

// Field is one labelled value in a summary.
type Field struct {
	Label string
	Value any
}

// Printer writes styled messages. Results go to Out, diagnostics to Err.
type Printer struct {
	Out   io.Writer
	Err   io.Writer
	Level Level
}

// NewPrinter returns a printer on stdout and stderr at the detected level.
func NewPrinter() *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr, Level: DetectLevel(os.Stdout)}
}

func (p *Printer) machine() bool { return p.Level == LevelMachine }

// Title prints a styled title. Suppressed in machine mode.
func (p *Printer) Title(text string) {
	if p.machine() {
		return
	}
	fmt.Fprintln(p.Out, Styles.Title.Render(text))
}

// Success prints a success message with a checkmark.
func (p *Printer) Success(text string) {
	switch p.Level {
	case LevelMachine:
		fmt.Fprintf(p.Out, "OK: %s\n", text)
	case LevelMinimal:
		fmt.Fprintf(p.Out, "%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Fprintf(p.Out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message to Err.
func (p *Printer) Warning(text string) {
	switch p.Level {
	case LevelMachine:
		fmt.Fprintf(p.Err, "WARN: %s\n", text)
	case LevelMinimal:
		fmt.Fprintf(p.Err, "%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Fprintf(p.Err, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message to Err.
func (p *Printer) Error(text string) {
	switch p.Level {
	case LevelMachine:
		fmt.Fprintf(p.Err, "ERROR: %s\n", text)
	case LevelMinimal:
		fmt.Fprintf(p.Err, "%s %s\n", IconError.Render(), text)
	default:
		fmt.Fprintf(p.Err, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message.
func (p *Printer) Info(text string) {
	if p.machine() {
		fmt.Fprintln(p.Out, text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Summary prints labelled values, boxed in full mode and as key=value
// pairs in machine mode.
func (p *Printer) Summary(title string, fields []Field) {
	if p.machine() {
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, fmt.Sprintf("%s=%v", machineKey(f.Label), f.Value))
		}
		fmt.Fprintf(p.Out, "SUMMARY %s: %s\n", title, strings.Join(parts, " "))
		return
	}

	width := 0
	for _, f := range fields {
		width = max(width, len(f.Label))
	}
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		label := Styles.Muted.Render(fmt.Sprintf("%-*s", width, f.Label))
		lines = append(lines, fmt.Sprintf("%s  %s", label, Styles.Bold.Render(fmt.Sprint(f.Value))))
	}

	if p.Level == LevelMinimal {
		fmt.Fprintln(p.Out, Styles.Title.Render(title))
		fmt.Fprintln(p.Out, strings.Join(lines, "\n"))
		return
	}
	fmt.Fprintln(p.Out, Styles.Box.Render(Styles.Title.Render(title)+"\n"+strings.Join(lines, "\n")))
}

// Finding prints a lint finding; errors use the error icon.
func (p *Printer) Finding(severity, entry, message string) {
	if p.machine() {
		fmt.Fprintf(p.Out, "%s\t%s\t%s\n", strings.ToUpper(severity), entry, message)
		return
	}
	icon := IconWarning
	if severity == "error" {
		icon = IconError
	}
	fmt.Fprintf(p.Out, "%s %s %s\n", icon.Render(), Styles.Bold.Render(entry), message)
}

func machineKey(label string) string {
	return strings.ReplaceAll(strings.ToLower(label), " ", "_")
}
