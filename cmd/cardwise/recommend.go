package main

import (
	"github.com/Veraticus/cardwise/internal/cli"
	"github.com/spf13/cobra"
)

func recommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend <customer-id>",
		Short: "Suggest products for a customer",
		Long: `Suggest beyond-the-card products for a customer based on their segment and
spending behavior. Customers without transactions get no suggestions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			svc, _, cleanup, err := openService(ctx, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			detail, err := svc.Customer(ctx, args[0])
			if err != nil {
				return err
			}

			recs, err := svc.Recommend(ctx, args[0])
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				writeLine(out, cli.FormatInfo("No recommendations for "+detail.Customer.CompanyName+"."))
				return nil
			}

			writeLine(out, cli.RenderRecommendations(detail.Customer.CompanyName, recs))
			return nil
		},
	}
}
