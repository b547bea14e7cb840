// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ui renders command output: bordered tables when writing to a
// terminal, tab-aligned plain text otherwise.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
)

var (
	// Accent highlights headers and ids.
	Accent = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))

	// Muted is used for borders and secondary text.
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))

	// Bold is used for titles.
	Bold = lipgloss.NewStyle().Bold(true)
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Table is a titled grid of cells.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// AddRow appends a row, formatting each value with %v.
func (t *Table) AddRow(cells ...any) {
	row := make([]string, len(cells))
	for i, c := range cells {
		row[i] = fmt.Sprint(c)
	}
	t.Rows = append(t.Rows, row)
}

// Render writes the table styled for a terminal, or as plain text when w
// is not one.
func (t *Table) Render(w io.Writer) error {
	if IsTerminal(w) {
		_, err := fmt.Fprintln(w, t.Styled())
		return err
	}
	return t.Plain(w)
}

// Styled returns the table drawn with lipgloss borders.
func (t *Table) Styled() string {
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Muted).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Inherit(Accent).Bold(true)
			}
			if col > 0 {
				return s.Align(lipgloss.Right)
			}
			return s
		})

	if t.Title == "" {
		return tbl.Render()
	}
	return Bold.Render(t.Title) + "\n" + tbl.Render()
}

// Plain writes the title and tab-aligned columns without styling.
func (t *Table) Plain(w io.Writer) error {
	if t.Title != "" {
		if _, err := fmt.Fprintln(w, t.Title); err != nil {
			return err
		}
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, r := range t.Rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}
