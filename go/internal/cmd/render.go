package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mcdev12/engagements/go/internal/game/enrichment"
	"github.com/mcdev12/engagements/go/internal/game/mirror"
	"github.com/mcdev12/engagements/go/internal/models"
)

// renderView formats a view as a short terminal block.
func renderView(v mirror.View) string {
	var b strings.Builder
	snap := v.Snapshot

	status := "offline"
	if v.Connected {
		status = "online"
	}
	fmt.Fprintf(&b, "== %s | %s", snap.SessionID, snap.Phase)
	if snap.CurrentQuestionNumber != "" {
		fmt.Fprintf(&b, " | question %s (#%d)", snap.CurrentQuestionNumber, v.Derived.Ordinal)
	}
	fmt.Fprintf(&b, " | %s %s", v.Transport, status)
	if v.Pending {
		b.WriteString(" | saving")
	}
	b.WriteString("\n")

	if q := snap.CurrentQuestion; q != nil && snap.Phase != models.PhaseWaiting {
		fmt.Fprintf(&b, "%s\n", q.Title)
		if q.Detail != "" {
			fmt.Fprintf(&b, "  %s\n", q.Detail)
		}
		for _, letter := range q.OptionLetters() {
			fmt.Fprintf(&b, "  %s) %s\n", letter, q.Options[letter])
		}
	}

	switch snap.Phase {
	case models.PhaseQuestion:
		fmt.Fprintf(&b, "answered: %d/%d\n", len(v.Derived.AnsweredBy), len(v.Participants))
	case models.PhaseVoting:
		for i, a := range v.Answers {
			mark := ""
			if r, ok := v.Draft[i]; ok {
				mark = fmt.Sprintf(" [rank %d]", r)
			}
			fmt.Fprintf(&b, "  %d. %s%s\n", i, a.Content, mark)
		}
		fmt.Fprintf(&b, "voted: %d/%d\n", len(v.Derived.VotedBy), len(v.Participants))
	case models.PhaseResults:
		renderEnrichment(&b, v.Enrichment)
	}

	if len(v.Standings) > 0 {
		b.WriteString("standings:\n")
		for _, s := range v.Standings {
			me := ""
			if s.Name == v.Self {
				me = " (you)"
			}
			fmt.Fprintf(&b, "  %d. %s %d%s\n", s.Rank, s.Name, s.Score, me)
		}
	}
	return b.String()
}

func renderEnrichment(b *strings.Builder, u enrichment.Update) {
	switch u.State {
	case enrichment.StatePending:
		b.WriteString("summary: generating...\n")
	case enrichment.StateReady:
		if u.Result == nil {
			return
		}
		fmt.Fprintf(b, "summary: %s\n", u.Result.SummaryText)
		if topics := slices.DeleteFunc(slices.Clone(u.Result.DiscussionTopics), func(s string) bool { return s == "" }); len(topics) > 0 {
			fmt.Fprintf(b, "discuss: %s\n", strings.Join(topics, "; "))
		}
	case enrichment.StateTimedOut, enrichment.StateFailed:
		b.WriteString("summary: unavailable (retry to try again)\n")
	}
}
