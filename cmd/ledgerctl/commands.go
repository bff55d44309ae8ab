package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/ledger"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

func init() {
	rootCmd.AddCommand(planCmd, overdueCmd, quoteCmd)

	addPlanFlags(planCmd)
	planCmd.Flags().Int("periods", 12, "Periods to list for interest-only loans")

	addPlanFlags(overdueCmd)
	overdueCmd.Flags().Int64Slice("payment", nil, "Payment amount in minor units, repeatable, in order")
	overdueCmd.Flags().String("as-of", "", "Classification date, YYYY-MM-DD")
	_ = overdueCmd.MarkFlagRequired("as-of")

	addPlanFlags(quoteCmd)
	quoteCmd.Flags().Int64Slice("payment", nil, "Payment amount in minor units, repeatable, in order")
	quoteCmd.Flags().String("penalty", "2", "Foreclosure penalty percent")
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Derive a loan plan and print its repayment schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := planFromFlags(cmd)
		if err != nil {
			return err
		}

		periods, _ := cmd.Flags().GetInt("periods")
		schedule := ledger.GenerateSchedule(plan)
		var entries []domain.ScheduleEntry
		for entry := range schedule.All() {
			if schedule.OpenEnded() && len(entries) == periods {
				break
			}
			entries = append(entries, entry)
		}

		if wantJSON(cmd) {
			return printJSON(cmd.OutOrStdout(), domain.CreateLoanResponse{
				Loan:     &domain.Loan{LoanPlan: *plan},
				Schedule: entries,
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "kind %s, principal %s, %s per period", plan.Kind,
			utils.FormatMinor(plan.Principal), utils.FormatMinor(plan.PeriodicAmount))
		if n := plan.Periods(); n > 0 {
			fmt.Fprintf(out, " x %d, total %s", n, utils.FormatMinor(plan.TotalPayable))
		}
		fmt.Fprintln(out)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tDUE\tAMOUNT")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\n", e.Index+1, e.DueDate.Format(utils.DateLayout), utils.FormatMinor(e.DueAmount))
		}
		return w.Flush()
	},
}

var overdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "Classify a payment history against the schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := planFromFlags(cmd)
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetString("as-of")
		asOf, err := utils.ParseDate(raw)
		if err != nil {
			return fmt.Errorf("--as-of: %w", err)
		}
		l, err := ledgerFromFlags(cmd, plan)
		if err != nil {
			return err
		}

		c := ledger.Classify(l, ledger.GenerateSchedule(plan), asOf)
		if wantJSON(cmd) {
			return printJSON(cmd.OutOrStdout(), c)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "as of %s: %d paid, %d missed (%s), oldest %d days overdue\n",
			asOf.Format(utils.DateLayout), c.PaidCount, c.MissedCount, utils.FormatMinor(c.OverdueAmount), c.DaysOverdue)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tDUE\tAMOUNT\tSTATE")
		for _, e := range c.Overdue {
			fmt.Fprintf(w, "%d\t%s\t%s\toverdue\n", e.Index+1, e.DueDate.Format(utils.DateLayout), utils.FormatMinor(e.DueAmount))
		}
		for _, e := range c.Upcoming {
			fmt.Fprintf(w, "%d\t%s\t%s\tupcoming\n", e.Index+1, e.DueDate.Format(utils.DateLayout), utils.FormatMinor(e.DueAmount))
		}
		return w.Flush()
	},
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Quote a foreclosure after the given payments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := planFromFlags(cmd)
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetString("penalty")
		penalty, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("--penalty: %w", err)
		}
		l, err := ledgerFromFlags(cmd, plan)
		if err != nil {
			return err
		}

		quote, err := ledger.ForecloseQuote(l, penalty)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd.OutOrStdout(), quote)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "balance\t%s\n", utils.FormatMinor(quote.Balance))
		fmt.Fprintf(w, "remaining principal (%s)\t%s\n", quote.EstimateMethod, utils.FormatMinor(quote.RemainingPrincipalEstimate))
		fmt.Fprintf(w, "penalty %s%%\t%s\n", quote.PenaltyPercent.String(), utils.FormatMinor(quote.Penalty))
		fmt.Fprintf(w, "foreclosure amount\t%s\n", utils.FormatMinor(quote.ForeclosureAmount))
		fmt.Fprintf(w, "savings\t%s\n", utils.FormatMinor(quote.Savings))
		return w.Flush()
	},
}
