package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/ingest"
	"github.com/Veraticus/spice-ledger/internal/model"
)

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Record a transaction",
		Long: `Record a transaction. Your rules are applied, the transaction is checked
against existing ones, and the account balances are updated.

When it looks like a duplicate you are asked whether to save it anyway,
replace the existing transaction, or skip it.`,
		Example: `  spice add "Team lunch" --amount 12.50 --account checking
  spice add "Paycheck" --amount 2500 --type income --account checking --category salary
  spice add "To savings" --amount 500 --type transfer --account checking --to-account savings`,
		Args: cobra.ExactArgs(1),
		RunE: runAdd,
	}

	flags := cmd.Flags()
	flags.String("amount", "", "Amount, e.g. 12.50 (required)")
	flags.String("account", "", "Source account id (required)")
	flags.String("type", string(model.TypeExpense), "expense, income or transfer")
	flags.String("date", "", "Date as YYYY-MM-DD (default: today)")
	flags.String("time", "", "Time as HH:MM")
	flags.String("to-account", "", "Destination account id for transfers")
	flags.String("category", "", "Category id")
	flags.String("notes", "", "Free-form notes")
	flags.String("raw-text", "", "Original statement text")
	flags.Bool("force", false, "Save even if it looks like a duplicate")
	flags.String("replace", "", "Replace the transaction with this id")
	flags.Bool("no-prompt", false, "Skip duplicates instead of asking")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runAdd(cmd *cobra.Command, args []string) error {
	candidate, err := transactionFromFlags(args[0], cmd.Flags(), time.Now())
	if err != nil {
		return err
	}
	candidate.UserID = appConfig.User.ID

	force, _ := cmd.Flags().GetBool("force")
	replaceID, _ := cmd.Flags().GetString("replace")
	noPrompt, _ := cmd.Flags().GetBool("no-prompt")

	ctx := cmd.Context()
	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	var prompter *cli.DuplicatePrompter
	if !noPrompt {
		prompter = cli.NewDuplicatePrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	}

	return addTransaction(ctx, newIngestService(store), prompter, cmd.OutOrStdout(), candidate, ingest.Options{
		Force:     force,
		ReplaceID: replaceID,
	})
}

// addTransaction ingests candidate, resolving a duplicate conflict through
// prompter. A nil prompter skips duplicates.
func addTransaction(ctx context.Context, svc *ingest.Service, prompter *cli.DuplicatePrompter, out io.Writer, candidate model.Transaction, opts ingest.Options) error {
	result, err := svc.Create(ctx, candidate, opts)
	if err != nil {
		return err
	}

	if result.State == ingest.StateRejected {
		resolution := cli.ResolutionSkip
		if prompter != nil {
			if resolution, err = prompter.Resolve(ctx, result.Duplicate); err != nil {
				return err
			}
		}

		switch resolution {
		case cli.ResolutionForce:
			opts = ingest.Options{Force: true}
		case cli.ResolutionReplace:
			opts = ingest.Options{ReplaceID: result.Duplicate.Existing.ID}
		default:
			fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Skipped: looks like %s", result.Duplicate.Existing.ID)))
			return nil
		}

		// Keep the ID and audit list so rules are not applied twice.
		if result, err = svc.Create(ctx, *result.Transaction, opts); err != nil {
			return err
		}
	}

	txn := result.Transaction
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Recorded %s", txn.ID)))
	fmt.Fprintln(out, cli.FormatTransaction(txn))
	return nil
}

func transactionFromFlags(description string, flags *pflag.FlagSet, now time.Time) (model.Transaction, error) {
	get := func(name string) string {
		v, _ := flags.GetString(name)
		return strings.TrimSpace(v)
	}

	amount, err := model.ParseAmount(get("amount"))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid --amount: %w", err)
	}

	date := now
	if raw := get("date"); raw != "" {
		if date, err = time.Parse(model.DateLayout, raw); err != nil {
			return model.Transaction{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", raw)
		}
	}

	return model.Transaction{
		Amount:      amount,
		Date:        date,
		Time:        get("time"),
		Description: strings.TrimSpace(description),
		Type:        model.TransactionType(strings.ToLower(get("type"))),
		AccountID:   get("account"),
		ToAccountID: get("to-account"),
		CategoryID:  get("category"),
		Notes:       get("notes"),
		RawText:     get("raw-text"),
		Source:      model.SourceManual,
	}, nil
}
