package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"debtease/cmd/internal/auth/session"
	"debtease/cmd/internal/debtcase"
)

func (c *cli) newCasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "List and manage debt cases",
	}
	cmd.AddCommand(
		c.newCasesListCmd(),
		c.newCasesGetCmd(),
		c.newCasesEditCmd(),
		c.newCasesDeleteCmd(),
		c.newCasesUploadCmd(),
		c.newCasesReportCmd(),
		c.newCasesDownloadCmd("example", "Download the CSV upload template", "debt-case-example.csv",
			func(ctx context.Context, s *debtcase.Service) ([]byte, error) { return s.ExampleCSV(ctx) }),
		c.newCasesDownloadCmd("agreement", "Download the blank agreement form", "agreement-form.pdf",
			func(ctx context.Context, s *debtcase.Service) ([]byte, error) { return s.AgreementForm(ctx) }),
		c.newCasesTypesCmd(),
		c.newStrategyCmd(),
		c.newPayCmd(),
		c.newPaymentsCmd(),
	)
	return cmd
}

func (c *cli) newCasesListCmd() *cobra.Command {
	var page int
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the cases visible to the signed-in user, grouped by status",
		Args:  cobra.NoArgs,
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if _, _, err := c.requireSession(); err != nil {
				return err
			}
			cases, err := c.app.Cases().ListMine(ctx)
			if err != nil {
				return err
			}
			if len(cases) == 0 {
				c.printf("No debt cases found.\n")
				return nil
			}

			shown := cases
			pages := debtcase.TotalPages(len(cases), debtcase.DefaultPerPage)
			if !all {
				shown = debtcase.Paginate(cases, page, debtcase.DefaultPerPage)
			}
			c.printCases(shown, nil)
			if !all {
				c.printf("\nPage %d of %d (%d cases)\n", page, pages, len(cases))
			}
			return nil
		}),
	}
	cmd.Flags().IntVar(&page, "page", 1, "page to show")
	cmd.Flags().BoolVar(&all, "all", false, "show every case without paging")
	return cmd
}

func (c *cli) printCases(cases []debtcase.DebtCase, highlighted func(int) bool) {
	for _, g := range debtcase.GroupByStatus(cases) {
		title := "Unknown"
		if g.Status != "" {
			title = strings.ToUpper(g.Status[:1]) + g.Status[1:]
		}
		c.printf("\n%s (%d)\n", title, len(g.Cases))
		c.printf("  %-6s  %-14s  %-22s  %-20s  %s\n", "ID", "AMOUNT", "TYPE", "DEBTOR", "DUE")
		for _, dc := range g.Cases {
			mark := " "
			if highlighted != nil && highlighted(dc.ID) {
				mark = "*"
			}
			c.printf("%s %-6d  %-14s  %-22s  %-20s  %s\n",
				mark, dc.ID, formatAmount(dc.AmountOwed), dc.Type.Label(), dc.Debtor.FullName(), formatDue(dc.DueDate))
		}
	}
}

func formatAmount(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

func formatDue(t debtcase.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly) + " (" + humanize.Time(t.Time) + ")"
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func (c *cli) newCasesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one case",
		Args:  cobra.ExactArgs(1),
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			dc, err := c.app.Cases().Get(ctx, id)
			if err != nil {
				return err
			}
			c.printf("id:        %d\nstatus:    %s\ntype:      %s\namount:    %s\ninterest:  %s%%\ndue:       %s\ncreditor:  %s\ndebtor:    %s\n",
				dc.ID, dc.Status, dc.Type.Label(), formatAmount(dc.AmountOwed),
				humanize.Ftoa(dc.LateInterestRate), formatDue(dc.DueDate), dc.Creditor.Name, dc.Debtor.FullName())
			return nil
		}),
	}
}

// creditorID resolves the signed-in creditor's id from their case listing
// unless one was given explicitly.
func (c *cli) creditorID(ctx context.Context, explicit int) (int, error) {
	if explicit > 0 {
		return explicit, nil
	}
	role, user, err := c.requireSession()
	if err != nil {
		return 0, err
	}
	if role != session.RoleCreditor {
		return 0, errors.New("--creditor-id is required for non-creditor accounts")
	}
	cases, err := c.app.Cases().ListMine(ctx)
	if err != nil {
		return 0, err
	}
	id, ok := debtcase.CreditorIDFor(cases, user)
	if !ok {
		return 0, errors.New("cannot resolve your creditor id: you have no cases yet")
	}
	return id, nil
}

func (c *cli) newCasesEditCmd() *cobra.Command {
	var creditorID, typeID int
	var amount float64
	var due string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change amount, due date or type of a case",
		Args:  cobra.ExactArgs(1),
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			in := debtcase.EditRequest{AmountOwed: amount, TypeID: typeID}
			if due != "" {
				t, err := time.ParseInLocation(debtcase.TimeLayout, due, time.Local)
				if err != nil {
					return fmt.Errorf("--due must look like %q", debtcase.TimeLayout)
				}
				in.DueDate = debtcase.Timestamp{Time: t}
			}
			cid, err := c.creditorID(ctx, creditorID)
			if err != nil {
				return err
			}
			dc, err := c.app.Cases().Edit(ctx, id, cid, in)
			if err != nil {
				return err
			}
			c.printf("Updated case %d: %s due %s\n", dc.ID, formatAmount(dc.AmountOwed), formatDue(dc.DueDate))
			return nil
		}),
	}
	cmd.Flags().Float64Var(&amount, "amount", 0, "amount owed")
	cmd.Flags().StringVar(&due, "due", "", "due date as "+debtcase.TimeLayout)
	cmd.Flags().IntVar(&typeID, "type", 0, "case type id, see: debtease cases types")
	cmd.Flags().IntVar(&creditorID, "creditor-id", 0, "owning creditor id (resolved for creditors)")
	return cmd
}

func (c *cli) newCasesDeleteCmd() *cobra.Command {
	var creditorID int

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a case",
		Args:  cobra.ExactArgs(1),
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cid, err := c.creditorID(ctx, creditorID)
			if err != nil {
				return err
			}
			if err := c.app.Cases().Delete(ctx, id, cid); err != nil {
				return err
			}
			c.printf("Deleted case %d.\n", id)
			return nil
		}),
	}
	cmd.Flags().IntVar(&creditorID, "creditor-id", 0, "owning creditor id (resolved for creditors)")
	return cmd
}

func (c *cli) newCasesUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Upload a CSV of new cases for enrichment",
		Args:  cobra.ExactArgs(1),
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, args []string) error {
			_, user, err := c.requireSession()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ack, err := c.app.Cases().UploadCSV(ctx, user, filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			c.printf("%s (%s sent). Run `debtease watch` to follow enrichment.\n", ack, humanize.Bytes(uint64(len(data))))
			return nil
		}),
	}
}

func (c *cli) newCasesReportCmd() *cobra.Command {
	var out, debtor string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Download the PDF report of a debtor's cases",
		Args:  cobra.NoArgs,
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			_, user, err := c.requireSession()
			if err != nil {
				return err
			}
			if debtor == "" {
				debtor = user
			}
			pdf, err := c.app.Cases().Report(ctx, debtor)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("debt-report-%s.pdf", debtor)
			}
			return c.writeFile(out, pdf)
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	cmd.Flags().StringVar(&debtor, "debtor", "", "debtor username (defaults to the signed-in user)")
	return cmd
}

func (c *cli) newCasesDownloadCmd(use, short, file string, fetch func(context.Context, *debtcase.Service) ([]byte, error)) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			data, err := fetch(ctx, c.app.Cases())
			if err != nil {
				return err
			}
			if out == "" {
				out = file
			}
			return c.writeFile(out, data)
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	return cmd
}

func (c *cli) writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	c.printf("Saved %s (%s).\n", path, humanize.Bytes(uint64(len(data))))
	return nil
}

func (c *cli) newCasesTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List case types",
		Args:  cobra.NoArgs,
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			types, err := c.app.Cases().Types(ctx)
			if err != nil {
				return err
			}
			for _, t := range types {
				c.printf("%4d  %s\n", t.ID, t.Label())
			}
			return nil
		}),
	}
}

func (c *cli) newStrategyCmd() *cobra.Command {
	var minimal, extra float64

	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Compare snowball and avalanche payoff schedules",
		Args:  cobra.NoArgs,
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			_, user, err := c.requireSession()
			if err != nil {
				return err
			}
			st, err := c.app.Cases().Strategy(ctx, user, debtcase.StrategyRequest{
				MinimalMonthlyPayment: minimal,
				ExtraMonthlyPayment:   extra,
			})
			if err != nil {
				return err
			}
			c.printf("%-6s  %-16s  %s\n", "MONTH", "SNOWBALL", "AVALANCHE")
			for m := 0; m < st.Months(); m++ {
				c.printf("%-6d  %-16s  %s\n", m+1, balanceAt(st.Snowball, m), balanceAt(st.Avalanche, m))
			}
			c.printf("\nSnowball pays off in %d months, avalanche in %d.\n", len(st.Snowball), len(st.Avalanche))
			return nil
		}),
	}
	cmd.Flags().Float64Var(&minimal, "min", 0, "minimal monthly payment for each debt")
	cmd.Flags().Float64Var(&extra, "extra", 0, "extra monthly payment for the highest debt")
	return cmd
}

func balanceAt(s []float64, m int) string {
	if m >= len(s) {
		return "paid off"
	}
	return formatAmount(s[m])
}

func (c *cli) newPayCmd() *cobra.Command {
	var source string
	var amount float64
	var full bool

	cmd := &cobra.Command{
		Use:   "pay <id>",
		Short: "Pay towards a case",
		Args:  cobra.ExactArgs(1),
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			receipt, err := c.app.Cases().Pay(ctx, id, debtcase.PaymentRequest{
				SourceID:      source,
				PaymentAmount: amount,
				PaymentInFull: full,
			})
			if err != nil {
				return err
			}
			c.printf("%s\n", receipt)
			return nil
		}),
	}
	cmd.Flags().StringVar(&source, "source", "", "card source token")
	cmd.Flags().Float64Var(&amount, "amount", 0, "amount to pay")
	cmd.Flags().BoolVar(&full, "full", false, "settle the case in full")
	return cmd
}

func (c *cli) newPaymentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payments",
		Short: "List your payments",
		Args:  cobra.NoArgs,
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			_, user, err := c.requireSession()
			if err != nil {
				return err
			}
			payments, err := c.app.Cases().Payments(ctx, user)
			if err != nil {
				return err
			}
			if len(payments) == 0 {
				c.printf("No payments yet.\n")
				return nil
			}
			for _, p := range payments {
				c.printf("%-6d  %-14s  %-10s  %s\n", p.ID, formatAmount(p.Amount), p.PaymentMethod, p.PaymentDate.Format(time.DateTime))
			}
			return nil
		}),
	}
}
