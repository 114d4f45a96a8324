package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/csvimport"
	"github.com/Veraticus/spice-ledger/internal/ingest"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import transactions from a CSV or OFX/QFX file",
		Long: `Import transactions in bulk. Each row goes through your rules and the
duplicate check; duplicates and invalid rows are skipped and reported.

CSV files need a header with at least date, amount and account columns.
OFX/QFX statements are booked against --account, or the statement's own
account number when it is omitted.`,
		Example: `  spice import january.csv
  spice import statement.qfx --account Checking`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("account", "", "Account name for OFX/QFX statements")
	cmd.Flags().Bool("resolve-names", true, "Treat account and category columns as names; when false they are ids")
	cmd.Flags().Bool("no-progress", false, "Disable the progress bar")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	account, _ := cmd.Flags().GetString("account")
	resolveNames, _ := cmd.Flags().GetBool("resolve-names")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	out := cmd.OutOrStdout()

	rows, source, parseErrors, err := loadRows(cmd.Context(), path, account)
	if err != nil {
		return err
	}
	for _, msg := range parseErrors {
		fmt.Fprintln(out, cli.FormatWarning(msg))
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, cli.FormatInfo("Nothing to import"))
		return nil
	}
	if !resolveNames {
		namesAsIDs(rows)
	}

	handler := cli.NewInterruptHandler(out, "Import")
	ctx := handler.HandleInterrupts(cmd.Context())

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	opts := ingest.ImportOptions{Source: source, ResolveNames: resolveNames}
	if !noProgress {
		progress := cli.NewImportProgress(cmd.ErrOrStderr(), len(rows))
		defer progress.Finish()
		opts.Progress = progress.Update
	}

	summary, err := newIngestService(store).Import(ctx, appConfig.User.ID, rows, opts)
	if summary != nil {
		fmt.Fprintln(out, cli.FormatImportSummary(summary))
	}
	if err != nil && handler.WasInterrupted() {
		return nil
	}
	return err
}

// loadRows parses path by its extension. Parse errors for individual CSV
// lines are returned as messages, not as an error.
func loadRows(ctx context.Context, path, account string) ([]ingest.ImportRow, string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return parseRows(ctx, f, filepath.Ext(path), account)
}

func parseRows(ctx context.Context, r io.Reader, ext, account string) ([]ingest.ImportRow, string, []string, error) {
	switch strings.ToLower(ext) {
	case ".csv":
		result, err := csvimport.Read(r)
		if err != nil {
			return nil, "", nil, err
		}
		return result.Rows, model.SourceImport, result.Errors, nil
	case ".ofx", ".qfx":
		rows, err := ofx.NewParser(account).Parse(ctx, r)
		if err != nil {
			return nil, "", nil, err
		}
		return rows, model.SourceOFX, nil, nil
	default:
		return nil, "", nil, fmt.Errorf("unsupported file type %q: expected .csv, .ofx or .qfx", ext)
	}
}

// namesAsIDs moves name columns into id fields for files that already
// carry ids.
func namesAsIDs(rows []ingest.ImportRow) {
	for i := range rows {
		row := &rows[i]
		if row.AccountID == "" {
			row.AccountID, row.AccountName = row.AccountName, ""
		}
		if row.ToAccountID == "" {
			row.ToAccountID, row.ToAccountName = row.ToAccountName, ""
		}
		if row.CategoryID == "" {
			row.CategoryID, row.CategoryName = row.CategoryName, ""
		}
	}
}
