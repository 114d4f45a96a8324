// Package cli provides styled terminal output and interactive prompts.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spice-ledger/internal/ingest"
	"github.com/Veraticus/spice-ledger/internal/model"
)

var (
	// PrimaryColor is the main theme color (spicy red).
	PrimaryColor = lipgloss.Color("#FF6B6B")
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#4ECDC4") // Teal
	// WarningColor indicates warnings or caution messages.
	WarningColor = lipgloss.Color("#FFE66D") // Yellow
	// ErrorColor indicates errors or failure messages.
	ErrorColor = lipgloss.Color("#FF6B6B") // Red
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#95E1D3") // Light teal
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666") // Gray

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().Foreground(ErrorColor)
	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().Foreground(InfoColor)
	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().Foreground(SubtleColor)

	// BoxStyle is used for bordered content boxes.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)

	// TableHeaderStyle is used for table headers.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(lipgloss.Color("#333"))

	// PromptStyle is used for user prompts.
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	SpiceIcon   = "🌶️"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the spice icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(SpiceIcon + " " + title)
}

// FormatPrompt formats a prompt message.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// RenderBox renders content in a styled box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.
		UnsetMargins().
		Render(title)

	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, boxTitle, content))
}

// FormatTransaction renders the fields a user needs to recognize a
// transaction.
func FormatTransaction(txn *model.Transaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Date: %s", txn.DateString())
	if txn.Time != "" {
		fmt.Fprintf(&b, " %s", txn.Time)
	}
	fmt.Fprintf(&b, "\n  Amount: %s (%s)\n", model.FormatAmount(txn.Amount), txn.Type)
	fmt.Fprintf(&b, "  Description: %s\n", txn.Description)
	if txn.Type == model.TypeTransfer {
		fmt.Fprintf(&b, "  Accounts: %s → %s\n", txn.AccountID, txn.ToAccountID)
	} else {
		fmt.Fprintf(&b, "  Account: %s\n", txn.AccountID)
	}
	if txn.CategoryID != "" {
		fmt.Fprintf(&b, "  Category: %s\n", txn.CategoryID)
	}
	for _, applied := range txn.AppliedRules {
		fmt.Fprintf(&b, "  %s\n", SubtleStyle.Render("rule: "+applied.RuleName))
	}
	fmt.Fprintf(&b, "  %s", SubtleStyle.Render("id: "+txn.ID))
	return b.String()
}

// FormatImportSummary renders the outcome of a bulk import.
func FormatImportSummary(summary *ingest.ImportSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  • Imported: %d\n", summary.Imported)
	fmt.Fprintf(&b, "  • Skipped: %d\n", summary.Skipped)
	fmt.Fprintf(&b, "  • Duplicates: %d", summary.Duplicates)
	for _, msg := range summary.Errors {
		fmt.Fprintf(&b, "\n  %s", ErrorStyle.Render(msg))
	}
	return RenderBox("Import Complete", b.String())
}
