// Command ledgerctl prices loans offline: it derives plans and schedules,
// classifies a payment history and quotes foreclosures without a database.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/domain"
	"github.com/segyhp/loan-ledger/internal/ledger"
	"github.com/segyhp/loan-ledger/internal/service"
	"github.com/segyhp/loan-ledger/pkg/utils"
)

var rootCmd = &cobra.Command{
	Use:           "ledgerctl",
	Short:         "Loan plan, schedule and foreclosure calculator",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Print JSON instead of a table")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(1)
	}
}

// addPlanFlags registers the term flags shared by every subcommand.
func addPlanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("kind", "", "Loan kind (weekly, monthly, daily, interest_only, amortized)")
	f.Int64("principal", 0, "Principal in minor units")
	f.String("given", "", "Disbursal date, YYYY-MM-DD")
	f.String("anchor", "", "First due date, YYYY-MM-DD")
	f.String("rate", "", "Interest rate percent (monthly for interest_only, annual flat for amortized)")
	f.Int("term", 0, "Term in months for amortized loans")
	f.Int64("amount", 0, "Periodic amount override in minor units")
	f.Int("count", 0, "Period count override")
	f.Int64("asked", 0, "Amount asked by the borrower (daily loans)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("given")
	_ = cmd.MarkFlagRequired("anchor")
}

func planFromFlags(cmd *cobra.Command) (*domain.LoanPlan, error) {
	f := cmd.Flags()

	rawKind, _ := f.GetString("kind")
	kind, err := domain.ParseLoanKind(rawKind)
	if err != nil {
		return nil, err
	}

	req := ledger.PlanRequest{LoanID: "offline", Kind: kind}
	req.Principal, _ = f.GetInt64("principal")
	req.TermMonths, _ = f.GetInt("term")
	req.AskedAmount, _ = f.GetInt64("asked")

	for flag, dst := range map[string]*time.Time{"given": &req.GivenDate, "anchor": &req.AnchorDate} {
		raw, _ := f.GetString(flag)
		if *dst, err = utils.ParseDate(raw); err != nil {
			return nil, fmt.Errorf("--%s: %w", flag, err)
		}
	}

	if raw, _ := f.GetString("rate"); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("--rate: %w", err)
		}
		req.RatePercent = decimal.NewNullDecimal(rate)
	}
	if f.Changed("amount") {
		amount, _ := f.GetInt64("amount")
		req.PeriodicAmount = &amount
	}
	if f.Changed("count") {
		count, _ := f.GetInt("count")
		req.PeriodCount = &count
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return ledger.DerivePlan(req, service.RulesFromConfig(cfg))
}

// ledgerFromFlags replays the --payment amounts, in order, against the plan.
func ledgerFromFlags(cmd *cobra.Command, plan *domain.LoanPlan) (*ledger.Ledger, error) {
	amounts, _ := cmd.Flags().GetInt64Slice("payment")

	l := ledger.New(&domain.Loan{LoanPlan: *plan}, nil)
	for i, amount := range amounts {
		if _, _, err := l.ApplyPayment(amount, plan.AnchorDate, domain.PaymentModeCash, ""); err != nil {
			return nil, fmt.Errorf("payment %d: %w", i+1, err)
		}
	}
	return l, nil
}

func wantJSON(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("json")
	return asJSON
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
