package commands

import (
	"errors"
	"fmt"

	"github.com/phrazzld/arcana/internal/domain"
	"github.com/spf13/cobra"
)

func storeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "store",
		Short: "List products for sale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lang := client.Language(cmd.Context())
			products, owned := client.Products()
			for _, p := range products {
				printProduct(cmd.OutOrStdout(), p, owned.OwnsProduct(p.ID), lang)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nbalance: %d coins\n", client.Ledger.Balance())
			return nil
		},
	}
}

func buyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy <product>",
		Short: "Buy a product with coins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			product, ok := client.Catalog.Product(args[0])
			if !ok {
				return domain.ErrUnknownProduct
			}

			_, err := client.Entitlements.Purchase(cmd.Context(), product.ID, product.Price)
			switch {
			case errors.Is(err, domain.ErrReconciliationGap):
				fmt.Fprintf(out, "paid %d coins; the purchase will complete on the next `arcana sync`\n", product.Price)
				return nil
			case err != nil:
				return err
			}
			fmt.Fprintf(out, "unlocked %s, balance %d coins\n", product.Name.In(client.Language(cmd.Context())), client.Ledger.Balance())
			return nil
		},
	}
}

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore purchases recorded by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := client.Entitlements.Restore(cmd.Context())
			if err != nil {
				return err
			}
			if set.Empty() {
				fmt.Fprintln(cmd.OutOrStdout(), "no purchases to restore")
				return nil
			}
			for _, id := range set.Products {
				fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", id)
			}
			return nil
		},
	}
}
