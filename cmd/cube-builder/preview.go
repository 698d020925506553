package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ramonehamilton/cube-builder/internal/backup"
	"github.com/ramonehamilton/cube-builder/internal/cube"
	"github.com/ramonehamilton/cube-builder/internal/resolve"
)

func printPreview(w io.Writer, out *resolve.Outcome) {
	card := out.Card
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", label+":")), value)
		}
	}

	fmt.Fprintln(w, titleStyle.Render(card.Name))
	if out.MatchedViaTranslation {
		field("Italian", out.LocalizedName)
	}
	field("Set", fmt.Sprintf("%s #%s", strings.ToUpper(card.SetCode), card.CollectorNumber))
	field("Rarity", card.Rarity)
	field("Type", card.TypeLine)
	field("Mana cost", card.ManaCostText())
	field("Image", card.ImageURL())
}

func printCandidates(w io.Writer, candidates []resolve.Candidate) {
	fmt.Fprintln(w, warnStyle.Render("Several cards match; pick one:"))
	for i, c := range candidates {
		fmt.Fprintf(w, "  %d. %s  %s\n", i+1, c.LocalizedName,
			labelStyle.Render(fmt.Sprintf("[%s] %s", strings.ToUpper(c.Card.SetCode), c.Card.TypeLine)))
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		Headers(headers...)
}

func printEntries(w io.Writer, entries []cube.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "The cube is empty.")
		return
	}

	t := newTable("QTY", "NAME", "SET", "TYPE", "ID")
	total := 0
	for _, e := range entries {
		total += e.Qty
		t.Row(strconv.Itoa(e.Qty), e.Name, strings.ToUpper(e.Set), e.TypeLine, e.ID)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d cards, %d total\n", len(entries), total)
}

func printBackups(w io.Writer, infos []backup.Info) {
	if len(infos) == 0 {
		fmt.Fprintln(w, "No backups yet.")
		return
	}

	t := newTable("SLOT", "TAKEN", "CARDS", "TOTAL")
	for _, info := range infos {
		t.Row(
			strconv.Itoa(info.Slot),
			info.Timestamp.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(info.Cards),
			strconv.Itoa(info.TotalQty),
		)
	}
	fmt.Fprintln(w, t.Render())
}

func printRemoved(w io.Writer, id string, removed bool) {
	if !removed {
		fmt.Fprintf(w, "No card with id %s; nothing removed.\n", id)
		return
	}
	fmt.Fprintln(w, "Removed", id)
}
