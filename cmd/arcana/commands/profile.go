package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func levelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "level",
		Short: "Show your experience and level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			snap, err := client.Experience.FetchLevel(ctx)
			if err != nil {
				// fall back to the cached snapshot
				fmt.Fprintln(cmd.ErrOrStderr(), "offline, showing the last known level")
				snap = client.Experience.Snapshot()
			}
			printLevel(cmd.OutOrStdout(), snap, client.Language(ctx))
			return nil
		},
	}
}

func languageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "language [en|zh]",
		Short: "Show or change the display language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), client.Language(ctx))
				return nil
			}
			lang, err := client.SetLanguage(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "language set to %s\n", lang)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your saved readings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			readings, err := client.Account.Readings(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range readings {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-20s %d cards\n",
					r.CreatedAt.Local().Format(time.DateTime), r.SpreadType, len(r.Cards))
			}
			return nil
		},
	}
}

func transactionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transactions",
		Short: "List balance changes recorded by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			txs, err := client.Account.Transactions(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range txs {
				printTransaction(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}
