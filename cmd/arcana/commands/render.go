package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/arcana/internal/domain"
	"github.com/phrazzld/arcana/internal/service/ledger"
)

func printSpread(w io.Writer, t domain.SpreadTemplate, lang string) {
	fmt.Fprintf(w, "%-20s %s (%d cards)\n", t.ID, t.Name.In(lang), t.SlotCount())
	if d := t.Description.In(lang); d != "" {
		fmt.Fprintf(w, "%20s %s\n", "", d)
	}
}

func printDraw(w io.Writer, t domain.SpreadTemplate, slot int, card domain.DrawnCard, lang string) {
	label := fmt.Sprintf("#%d", slot+1)
	if slot < len(t.Positions) {
		label = t.Positions[slot].Label.In(lang)
	}
	marker := "upright"
	if card.IsReversed() {
		marker = "reversed"
	}
	fmt.Fprintf(w, "[%s] %s %s (%s)\n", label, card.Card.Glyph, card.Card.Name.In(lang), marker)
	fmt.Fprintf(w, "    %s\n", card.Meaning.In(lang))
}

func printSession(w io.Writer, s domain.ReadingSession, lang string) {
	fmt.Fprintf(w, "%s: %d/%d drawn\n", s.Template.Name.In(lang), s.FilledCount(), len(s.Slots))
	for i, d := range s.Slots {
		if d == nil {
			label := fmt.Sprintf("#%d", i+1)
			if i < len(s.Template.Positions) {
				label = s.Template.Positions[i].Label.In(lang)
			}
			fmt.Fprintf(w, "[%s] (empty)\n", label)
			continue
		}
		printDraw(w, s.Template, i, *d, lang)
	}
}

func printProduct(w io.Writer, p domain.Product, owned bool, lang string) {
	status := fmt.Sprintf("%d coins", p.Price)
	if owned {
		status = "owned"
	}
	fmt.Fprintf(w, "%s %-16s %-24s %s\n", p.Glyph, p.ID, p.Name.In(lang), status)
	if d := p.Description.In(lang); d != "" {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

func printLevel(w io.Writer, snap domain.ExperienceSnapshot, lang string) {
	info := snap.LevelInfo
	fmt.Fprintf(w, "Level %d %s: %d/%d XP\n", info.Level, info.LocalizedTitle(lang), snap.Experience, info.NextLevel)
}

func printTransaction(w io.Writer, t domain.Transaction) {
	fmt.Fprintf(w, "%s %+6d %-9s %s\n", t.CreatedAt.Local().Format(time.DateTime), t.Amount, t.Type, t.Description)
}

// syncNote describes a balance change the backend has not confirmed, or ""
// when err is not such a failure.
func syncNote(err error) string {
	var se *ledger.SyncError
	if !errors.As(err, &se) {
		return ""
	}
	switch {
	case se.Queued:
		return "saved locally, will sync with the server in the background"
	case se.Applied:
		return "saved locally, but the server could not be reached; run `arcana sync` later"
	default:
		return ""
	}
}

// parseSlots parses 1-based slot numbers, or "all" for every empty slot of s.
func parseSlots(args []string, s domain.ReadingSession) ([]int, error) {
	if len(args) == 0 || (len(args) == 1 && strings.EqualFold(args[0], "all")) {
		var slots []int
		for i, d := range s.Slots {
			if d == nil {
				slots = append(slots, i)
			}
		}
		return slots, nil
	}
	slots := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n < 1 || n > len(s.Slots) {
			return nil, fmt.Errorf("slot %q must be a number between 1 and %d", a, len(s.Slots))
		}
		slots = append(slots, n-1)
	}
	return slots, nil
}
