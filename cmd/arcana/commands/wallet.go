package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/service/ledger"
	"github.com/spf13/cobra"
)

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show your coin balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%d coins\n", client.Ledger.Balance())
			return nil
		},
	}
}

func adCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ad",
		Short: "Watch a rewarded ad for coins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return watchAd(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func watchAd(ctx context.Context, out io.Writer) error {
	// A fresh process has no ad loaded yet.
	if client.AdGate.Remaining() == 0 && client.Ads != nil && !client.Ads.IsReady() {
		fmt.Fprintln(out, "loading ad...")
		client.AdGate.Preload()
		client.AdGate.WaitPreload()
	}

	fmt.Fprintln(out, "watching ad...")
	amount, err := client.AdGate.RequestReward(ctx)
	if !ledger.Applied(err) {
		return err
	}
	fmt.Fprintf(out, "+%d coins, balance %d\n", amount, client.Ledger.Balance())
	if note := syncNote(err); note != "" {
		fmt.Fprintln(out, note)
	}
	return nil
}

func bannerCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "banner [top|bottom]",
		Short:     "Show a banner ad",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(domain.BannerTop), string(domain.BannerBottom)},
		RunE: func(cmd *cobra.Command, args []string) error {
			edge := domain.BannerBottom
			if len(args) == 1 {
				edge = domain.BannerEdge(args[0])
			}
			if err := client.AdGate.ShowBanner(cmd.Context(), edge); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "banner shown at the %s\n", edge)
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay unsynced balance changes and purchases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			granted, syncErr := client.Sync(ctx)
			for _, id := range granted {
				fmt.Fprintf(out, "purchase of %s completed\n", id)
			}

			abandoned, err := client.AbandonedSyncs(ctx)
			if err != nil {
				return errors.Join(syncErr, err)
			}
			for _, rec := range abandoned {
				fmt.Fprintf(out, "gave up syncing %s after %d attempts: %s\n", rec.ID, rec.Attempts, rec.LastError)
			}
			if pending := client.Entitlements.Pending(); len(pending) > 0 {
				fmt.Fprintf(out, "%d purchase(s) still pending\n", len(pending))
			}
			if syncErr != nil {
				return syncErr
			}
			fmt.Fprintf(out, "in sync: %d coins\n", client.Ledger.Balance())
			return nil
		},
	}
}
