package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage automation rules",
		Long: `Automation rules reclassify or enrich transactions as they are ingested.

Rules run in priority order (highest first); each matching rule sees the
transaction as left by the rules before it.`,
	}
	cmd.AddCommand(addRuleCmd(), listRulesCmd(), deleteRuleCmd())
	return cmd
}

func addRuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Create a rule from flags or a JSON file",
		Example: `  spice rules add "Lunch is food" --desc-contains lunch --set-category food
  spice rules add "Rent" --desc-regex '^rent\b' --min 1000 --set-category housing --priority 50
  spice rules add --file rules.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")

			var rules []model.AutomationRule
			switch {
			case file != "":
				data, err := readInput(cmd, file)
				if err != nil {
					return err
				}
				if rules, err = parseRulesJSON(data); err != nil {
					return err
				}
			case len(args) == 1:
				rule, err := ruleFromFlags(args[0], cmd.Flags())
				if err != nil {
					return err
				}
				rules = []model.AutomationRule{rule}
			default:
				return fmt.Errorf("a rule name or --file is required")
			}

			for i := range rules {
				if err := checkRegex(&rules[i]); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			out := cmd.OutOrStdout()
			for i := range rules {
				rule := &rules[i]
				rule.UserID = appConfig.User.ID
				if err := store.CreateRule(ctx, rule); err != nil {
					return fmt.Errorf("rule %q: %w", rule.Name, err)
				}
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Created rule %d %q (priority %d)", rule.ID, rule.Name, rule.Priority)))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("file", "", "JSON file holding one rule or an array of rules (- for stdin)")
	flags.Int("priority", 0, "Higher priorities run first")
	flags.Bool("or", false, "Match when any condition matches instead of all")
	flags.Bool("inactive", false, "Create the rule disabled")
	flags.StringSlice("desc-contains", nil, "Description contains any of these (case-insensitive)")
	flags.String("desc-regex", "", "Description matches this regular expression (case-insensitive)")
	flags.StringSlice("raw-contains", nil, "Raw text contains any of these (case-insensitive)")
	flags.String("min", "", "Amount at least")
	flags.String("max", "", "Amount at most")
	flags.String("equals", "", "Amount exactly")
	flags.String("account", "", "Source account id")
	flags.StringSlice("source", nil, "Provenance tags (manual, import, ofx, api, ai)")
	flags.String("set-category", "", "Set the category id")
	flags.Bool("clear-category", false, "Clear the category")
	flags.String("set-type", "", "Set the type (expense, income, transfer)")
	flags.String("set-account", "", "Move to this source account id")
	flags.String("link-transfer", "", "Make this account id the transfer destination")
	flags.String("transfer-account", "", "Shorthand destination account bound to the rule")
	flags.String("note", "", "Append this note")

	return cmd
}

// ruleFromFlags builds a rule from add-rule flags.
func ruleFromFlags(name string, flags *pflag.FlagSet) (model.AutomationRule, error) {
	rule := model.AutomationRule{
		Name:           strings.TrimSpace(name),
		ConditionLogic: model.LogicAnd,
		IsActive:       true,
	}

	rule.Priority, _ = flags.GetInt("priority")
	if or, _ := flags.GetBool("or"); or {
		rule.ConditionLogic = model.LogicOr
	}
	if inactive, _ := flags.GetBool("inactive"); inactive {
		rule.IsActive = false
	}

	c := &rule.Conditions
	c.DescriptionContains, _ = flags.GetStringSlice("desc-contains")
	c.DescriptionRegex, _ = flags.GetString("desc-regex")
	c.RawTextContains, _ = flags.GetStringSlice("raw-contains")
	c.AccountID, _ = flags.GetString("account")
	c.Sources, _ = flags.GetStringSlice("source")

	for flag, dst := range map[string]**int64{"min": &c.AmountMin, "max": &c.AmountMax, "equals": &c.AmountEquals} {
		raw, _ := flags.GetString(flag)
		if raw == "" {
			continue
		}
		amount, err := model.ParseAmount(raw)
		if err != nil {
			return rule, fmt.Errorf("invalid --%s: %w", flag, err)
		}
		*dst = &amount
	}

	a := &rule.Actions
	if category, _ := flags.GetString("set-category"); category != "" {
		a.SetCategory = model.Some(category)
	}
	if clearCategory, _ := flags.GetBool("clear-category"); clearCategory {
		if a.SetCategory.Set {
			return rule, fmt.Errorf("--set-category and --clear-category are mutually exclusive")
		}
		a.SetCategory = model.Clear()
	}
	setType, _ := flags.GetString("set-type")
	a.SetType = model.TransactionType(strings.ToLower(setType))
	a.SetAccount, _ = flags.GetString("set-account")
	a.LinkTransfer, _ = flags.GetString("link-transfer")
	a.AddNote, _ = flags.GetString("note")
	rule.TransferAccountID, _ = flags.GetString("transfer-account")

	if err := rule.Validate(); err != nil {
		return rule, err
	}
	return rule, nil
}

// parseRulesJSON accepts a single rule object or an array of them. Rules
// are active unless is_active is false.
func parseRulesJSON(data []byte) ([]model.AutomationRule, error) {
	data = bytes.TrimSpace(data)

	var raws []json.RawMessage
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("invalid rules file: %w", err)
		}
	} else {
		raws = []json.RawMessage{data}
	}

	rules := make([]model.AutomationRule, 0, len(raws))
	for i, raw := range raws {
		rule := model.AutomationRule{IsActive: true}
		if err := json.Unmarshal(raw, &rule); err != nil {
			return nil, fmt.Errorf("invalid rule %d: %w", i+1, err)
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("invalid rule %d: %w", i+1, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func checkRegex(rule *model.AutomationRule) error {
	if rule.Conditions.DescriptionRegex == "" {
		return nil
	}
	if _, err := common.CompileFold(rule.Conditions.DescriptionRegex); err != nil {
		return fmt.Errorf("rule %q: invalid description regex: %w", rule.Name, err)
	}
	return nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func listRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			rules, err := store.ListRules(ctx, appConfig.User.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rules) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No rules yet. Create one with: spice rules add <name>"))
				return nil
			}

			fmt.Fprintln(out, cli.TableHeaderStyle.Render(fmt.Sprintf("%-6s  %-8s  %-6s  %s", "ID", "PRIORITY", "ACTIVE", "NAME")))
			for _, rule := range rules {
				active := cli.SuccessIcon
				if !rule.IsActive {
					active = cli.SubtleStyle.Render("-")
				}
				fmt.Fprintf(out, "%-6d  %-8d  %-6s  %s\n", rule.ID, rule.Priority, active, rule.Name)
			}
			return nil
		},
	}
}

func deleteRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			ctx := cmd.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if err := store.DeleteRule(ctx, appConfig.User.ID, id); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted rule %d", id)))
			return nil
		},
	}
}
