package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	labelStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func validateOutput(output string) error {
	switch output {
	case outputTable, outputJSON:
		return nil
	}

	return fmt.Errorf("unsupported output %q, expected %s or %s", output, outputTable, outputJSON)
}

func formatExpiry(expiresAt *time.Time) string {
	if expiresAt == nil {
		return "never"
	}

	return expiresAt.UTC().Format(time.RFC3339)
}
