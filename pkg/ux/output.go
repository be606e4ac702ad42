// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the ailint CLI.
package ux

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// styles is the set of lipgloss styles bound to one renderer.
type styles struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Box       lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		Title:     r.NewStyle().Bold(true).Foreground(ColorTealBright),
		Bold:      r.NewStyle().Bold(true),
		Muted:     r.NewStyle().Foreground(ColorSlate),
		Success:   r.NewStyle().Foreground(ColorSuccess),
		Warning:   r.NewStyle().Foreground(ColorWarning),
		Error:     r.NewStyle().Foreground(ColorError),
		Highlight: r.NewStyle().Foreground(ColorTealPrimary).Bold(true),
		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorTealDeep).
			Padding(0, 1),
	}
}

// IsTerminal reports whether w is a terminal (including Cygwin ptys).
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes styled output to one destination. Colors are used only
// when the destination is a terminal.
type Printer struct {
	w      io.Writer
	tty    bool
	styles styles
}

// NewPrinter creates a Printer for w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w:      w,
		tty:    IsTerminal(w),
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// Render returns the icon with appropriate styling
func (p *Printer) icon(i Icon) string {
	switch i {
	case IconSuccess:
		return p.styles.Success.Render(string(i))
	case IconWarning:
		return p.styles.Warning.Render(string(i))
	case IconError:
		return p.styles.Error.Render(string(i))
	default:
		return p.styles.Muted.Render(string(i))
	}
}

// Title prints a styled title
func (p *Printer) Title(text string) {
	fmt.Fprintln(p.w, p.styles.Title.Render(text))
}

// Success prints a success message with icon
func (p *Printer) Success(text string) {
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconSuccess), text)
}

// Warning prints a warning message with icon
func (p *Printer) Warning(text string) {
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconWarning), p.styles.Warning.Render(text))
}

// Error prints an error message with icon
func (p *Printer) Error(text string) {
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconError), p.styles.Error.Render(text))
}

// Muted prints muted text
func (p *Printer) Muted(text string) {
	fmt.Fprintln(p.w, p.styles.Muted.Render(text))
}

// Box prints content in a rounded box
func (p *Printer) Box(title, content string) {
	body := content
	if title != "" {
		body = p.styles.Title.Render(title) + "\n\n" + content
	}
	fmt.Fprintln(p.w, p.styles.Box.Render(body))
}
