package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func spreadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spreads",
		Short: "List the spreads you can read with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lang := client.Language(cmd.Context())
			for _, t := range client.Entitlements.AvailableSpreads() {
				printSpread(cmd.OutOrStdout(), t, lang)
			}
			return nil
		},
	}
}

func readCmd() *cobra.Command {
	var interpret bool
	cmd := &cobra.Command{
		Use:   "read <spread>",
		Short: "Draw a complete reading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if err := selectSpread(ctx, out, args[0]); err != nil {
				return err
			}
			if err := draw(ctx, out, nil); err != nil {
				return err
			}
			if interpret {
				return interpretReading(ctx, out)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interpret, "interpret", "i", false, "ask the language model to interpret the reading")
	return cmd
}

func selectSpread(ctx context.Context, out io.Writer, id string) error {
	sess, err := client.Sessions.SelectTemplate(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d cards\n", sess.Template.Name.In(client.Language(ctx)), len(sess.Slots))
	return nil
}

// draw fills the given 1-based slots, or every empty slot when none are given.
func draw(ctx context.Context, out io.Writer, args []string) error {
	lang := client.Language(ctx)
	sess, ok := client.Sessions.Snapshot()
	if !ok {
		return fmt.Errorf("select a spread first")
	}
	slots, err := parseSlots(args, sess)
	if err != nil {
		return err
	}

	for _, slot := range slots {
		res, err := client.Sessions.DrawCard(ctx, slot)
		if err != nil {
			return err
		}
		if !res.Drawn {
			fmt.Fprintf(out, "slot %d is already drawn\n", slot+1)
			continue
		}
		printDraw(out, res.Session.Template, res.Slot, res.Card, lang)
		if res.AwardErr != nil {
			fmt.Fprintf(out, "  (experience not awarded: %v)\n", res.AwardErr)
		}
		if res.Completed {
			fmt.Fprintln(out, "Reading complete.")
			printLevel(out, client.Experience.Snapshot(), lang)
		}
	}
	return nil
}

func interpretReading(ctx context.Context, out io.Writer) error {
	text, err := client.Sessions.Interpret(ctx, client.Language(ctx))
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, text)
	return nil
}

func playCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Interactive reading session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return repl(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

const replHelp = `commands:
  spreads            list available spreads
  select <spread>    start a reading
  draw [n...|all]    draw into slots (default: all empty slots)
  show               show the current reading
  interpret          interpret the completed reading
  balance | level    show your coins or experience
  ad                 watch an ad for coins
  quit`

func repl(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, replHelp)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if err := replCommand(ctx, out, fields[0], fields[1:]); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(out, "error:", err)
		}
	}
}

var errQuit = errors.New("quit")

func replCommand(ctx context.Context, out io.Writer, name string, args []string) error {
	lang := client.Language(ctx)
	switch strings.ToLower(name) {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		fmt.Fprintln(out, replHelp)
	case "spreads":
		for _, t := range client.Entitlements.AvailableSpreads() {
			printSpread(out, t, lang)
		}
	case "select":
		if len(args) != 1 {
			return fmt.Errorf("usage: select <spread>")
		}
		return selectSpread(ctx, out, args[0])
	case "draw":
		return draw(ctx, out, args)
	case "show":
		sess, ok := client.Sessions.Snapshot()
		if !ok {
			return fmt.Errorf("no reading in progress")
		}
		printSession(out, sess, lang)
	case "interpret":
		return interpretReading(ctx, out)
	case "balance":
		fmt.Fprintf(out, "%d coins\n", client.Ledger.Balance())
	case "level":
		printLevel(out, client.Experience.Snapshot(), lang)
	case "ad":
		return watchAd(ctx, out)
	default:
		return fmt.Errorf("unknown command %q, type help", name)
	}
	return nil
}
