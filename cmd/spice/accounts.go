package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/model"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage accounts",
	}
	cmd.AddCommand(addAccountCmd(), listAccountsCmd())
	return cmd
}

func addAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			currency, _ := cmd.Flags().GetString("currency")
			opening, _ := cmd.Flags().GetString("balance")

			balance, err := model.ParseAmount(opening)
			if err != nil {
				return fmt.Errorf("invalid opening balance: %w", err)
			}
			if id == "" {
				id = uuid.NewString()
			}

			ctx := cmd.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			account := &model.Account{
				ID:       id,
				UserID:   appConfig.User.ID,
				Name:     strings.TrimSpace(args[0]),
				Currency: strings.ToUpper(currency),
				Balance:  balance,
			}
			if err := store.CreateAccount(ctx, account); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created account %q (%s)", account.Name, account.ID)))
			return nil
		},
	}

	cmd.Flags().String("id", "", "Account id (default: generated)")
	cmd.Flags().String("currency", "USD", "ISO currency code")
	cmd.Flags().String("balance", "0", "Opening balance, e.g. 1250.00")

	return cmd
}

func listAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			accounts, err := store.ListAccounts(ctx, appConfig.User.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(accounts) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No accounts yet. Create one with: spice accounts add <name>"))
				return nil
			}

			fmt.Fprintln(out, cli.TableHeaderStyle.Render(fmt.Sprintf("%-36s  %-24s  %14s", "ID", "NAME", "BALANCE")))
			for _, account := range accounts {
				fmt.Fprintf(out, "%-36s  %-24s  %10s %s\n",
					account.ID, account.Name, model.FormatAmount(account.Balance), account.Currency)
			}
			return nil
		},
	}
}
