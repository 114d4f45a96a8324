package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := transactionFilter(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			txns, err := store.ListTransactions(ctx, appConfig.User.ID, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(txns) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No transactions"))
				return nil
			}

			fmt.Fprintln(out, cli.TableHeaderStyle.Render(fmt.Sprintf("%-10s  %-9s  %12s  %-12s  %-12s  %s",
				"DATE", "TYPE", "AMOUNT", "ACCOUNT", "CATEGORY", "DESCRIPTION")))
			for _, txn := range txns {
				line := fmt.Sprintf("%-10s  %-9s  %12s  %-12s  %-12s  %s",
					txn.DateString(), txn.Type, model.FormatAmount(txn.Amount), txn.AccountID, txn.CategoryID, txn.Description)
				if txn.IsDeleted() {
					line = cli.SubtleStyle.Render(line + " (deleted)")
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().String("account", "", "Only transactions touching this account id")
	cmd.Flags().String("from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "End date (YYYY-MM-DD)")
	cmd.Flags().Int("limit", 50, "Maximum rows (0 for all)")
	cmd.Flags().Bool("deleted", false, "Include deleted transactions")

	return cmd
}

func transactionFilter(cmd *cobra.Command) (service.TransactionFilter, error) {
	var filter service.TransactionFilter
	filter.AccountID, _ = cmd.Flags().GetString("account")
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	filter.IncludeDeleted, _ = cmd.Flags().GetBool("deleted")

	for flag, dst := range map[string]**time.Time{"from": &filter.StartDate, "to": &filter.EndDate} {
		raw, _ := cmd.Flags().GetString(flag)
		if raw == "" {
			continue
		}
		date, err := time.Parse(model.DateLayout, raw)
		if err != nil {
			return filter, fmt.Errorf("invalid --%s %q, expected YYYY-MM-DD", flag, raw)
		}
		*dst = &date
	}
	return filter, nil
}
