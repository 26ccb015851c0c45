package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/Veraticus/cardwise/internal/storage"
	"github.com/spf13/cobra"
)

func customersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customers",
		Short: "Browse customers and their segments",
	}

	cmd.AddCommand(customersListCmd())
	cmd.AddCommand(customersShowCmd())

	return cmd
}

func customersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List customers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			segment, _ := cmd.Flags().GetString("segment")
			limit, _ := cmd.Flags().GetInt("limit")

			svc, _, cleanup, err := openService(ctx, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			names, err := segmentNames(ctx, svc)
			if err != nil {
				return err
			}

			filter := storage.CustomerFilter{Limit: limit}
			if segment != "" {
				filter.SegmentID = matchSegment(names, segment)
				if filter.SegmentID == "" {
					return fmt.Errorf("unknown segment %q", segment)
				}
			}

			customers, err := svc.Customers(ctx, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(customers) == 0 {
				writeLine(out, cli.FormatInfo("No customers found."))
				return nil
			}
			writeLine(out, cli.RenderCustomers(customers, names))
			return nil
		},
	}

	cmd.Flags().String("segment", "", "Only show customers in this segment (ID or name)")
	cmd.Flags().Int("limit", 50, "Maximum number of customers to show (0 for all)")

	return cmd
}

func customersShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <customer-id>",
		Short: "Show one customer with recent transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("transactions")

			svc, _, cleanup, err := openService(ctx, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			detail, err := svc.Customer(ctx, args[0])
			if err != nil {
				return err
			}

			c := detail.Customer
			segment := storage.UnassignedSegmentName
			if detail.Segment != nil {
				segment = detail.Segment.Name
			}

			content := fmt.Sprintf(
				"ID:             %s\nSegment:        %s\nMonthly spend:  %s\nTransactions:   %d\nInternational:  %s\nTop category:   %s\nTimeliness:     %.2f",
				c.ID, segment, cli.FormatMoney(c.MonthlySpend), c.TotalTransactions,
				cli.FormatPercent(c.InternationalRatio), orDash(c.TopMerchantCategory),
				detail.Features.PaymentTimeliness)

			out := cmd.OutOrStdout()
			writeLine(out, cli.RenderBox(cli.CardIcon+" "+c.CompanyName, content))

			txns, err := svc.Transactions(ctx, storage.TransactionFilter{CustomerID: c.ID, Limit: limit})
			if err != nil {
				return err
			}
			if len(txns) > 0 {
				writeLine(out, "")
				writeLine(out, cli.RenderTransactions(txns))
			}
			return nil
		},
	}

	cmd.Flags().Int("transactions", 10, "Number of recent transactions to show (0 for all)")

	return cmd
}

// matchSegment resolves a segment ID or display name against the current
// segmentation.
func matchSegment(names map[string]string, query string) string {
	if _, ok := names[query]; ok {
		return query
	}
	for id, name := range names {
		if strings.EqualFold(name, query) {
			return id
		}
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
