// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the seamlydeps CLI.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette
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
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Box       lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon provides status icons.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Printer writes styled or plain lines to one writer.
//
// Description:
//
//	A Printer styles its output only when the writer is a terminal and the
//	personality level is not machine. Reports written to files or pipes
//	are therefore plain text.
//
// Thread Safety:
//
//	Not safe for concurrent use; each goroutine should use its own Printer.
type Printer struct {
	w     io.Writer
	plain bool
	err   error
}

// NewPrinter returns a Printer for w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w:     w,
		plain: !ShouldShowColors() || !IsTerminal(w),
	}
}

// NewPlainPrinter returns a Printer that never styles.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w, plain: true}
}

// Plain reports whether the printer writes unstyled text.
func (p *Printer) Plain() bool {
	return p.plain
}

// Err returns the first write error.
func (p *Printer) Err() error {
	return p.err
}

// Style renders text with s, or returns it unchanged for plain output.
func (p *Printer) Style(s lipgloss.Style, text string) string {
	if p.plain {
		return text
	}
	return s.Render(text)
}

// Icon renders an icon in its status color.
func (p *Printer) Icon(i Icon) string {
	switch i {
	case IconSuccess:
		return p.Style(Styles.Success, string(i))
	case IconWarning:
		return p.Style(Styles.Warning, string(i))
	case IconError:
		return p.Style(Styles.Error, string(i))
	default:
		return string(i)
	}
}

// Line writes one formatted line.
func (p *Printer) Line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

// Blank writes an empty line.
func (p *Printer) Blank() {
	p.Line("")
}

// Title writes a title followed by an underline in plain mode.
func (p *Printer) Title(text string) {
	if p.plain {
		p.Line("%s", text)
		p.Line("%s", strings.Repeat("=", len([]rune(text))))
		return
	}
	p.Line("%s", Styles.Title.Render(text))
}

// Section writes a subsection heading.
func (p *Printer) Section(text string) {
	if p.plain {
		p.Line("%s", text)
		p.Line("%s", strings.Repeat("-", len([]rune(text))))
		return
	}
	p.Line("%s", Styles.Subtitle.Bold(true).Render(text))
}

// KeyValue writes an indented "key: value" line.
func (p *Printer) KeyValue(key string, value any) {
	p.Line("  %s %v", p.Style(Styles.Muted, key+":"), value)
}

// Bullet writes an indented bullet item.
func (p *Printer) Bullet(text string) {
	p.Line("    %s %s", p.Icon(IconBullet), text)
}

// Warning writes a warning line.
func (p *Printer) Warning(text string) {
	if p.plain {
		p.Line("WARN: %s", text)
		return
	}
	p.Line("%s %s", p.Icon(IconWarning), Styles.Warning.Render(text))
}

// Success writes a success line.
func (p *Printer) Success(text string) {
	if p.plain {
		p.Line("OK: %s", text)
		return
	}
	p.Line("%s %s", p.Icon(IconSuccess), Styles.Success.Render(text))
}

// Error writes an error line.
func (p *Printer) Error(text string) {
	if p.plain {
		p.Line("ERROR: %s", text)
		return
	}
	p.Line("%s %s", p.Icon(IconError), Styles.Error.Render(text))
}

// Box writes content in a rounded box, or as "title: content" when plain.
func (p *Printer) Box(title, content string) {
	if p.plain {
		p.Line("%s: %s", title, content)
		return
	}
	p.Line("%s", Styles.Box.Width(60).Render(Styles.Title.Render(title)+"\n"+content))
}
