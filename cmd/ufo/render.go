// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/toeirei/ufo/internal/i18n"
	"golang.org/x/term"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// renderTable draws rows under the localized headers. Output to a terminal
// is capped at the terminal width.
func renderTable(w io.Writer, headerIDs []string, rows [][]string) {
	headers := make([]string, len(headerIDs))
	for i, id := range headerIDs {
		headers[i] = i18n.T(id)
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	if width, ok := terminalWidth(w); ok {
		t = t.Width(width)
	}
	fmt.Fprintln(w, t.String())
}

func terminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 0, false
	}
	return width, true
}

func yesNo(b bool) string {
	if b {
		return i18n.T("cli.yes")
	}
	return i18n.T("cli.no")
}

// confirm asks before a destructive command unless --yes was given.
func confirm(cmd *cobra.Command, name string) bool {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true
	}
	fmt.Fprint(cmd.OutOrStdout(), i18n.T("cli.confirm_delete", map[string]any{"Name": name}))
	answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer == "y" || answer == "yes" {
		return true
	}
	fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.aborted"))
	return false
}

func say(cmd *cobra.Command, id string, data map[string]any) {
	fmt.Fprintln(cmd.OutOrStdout(), i18n.T(id, data))
}
