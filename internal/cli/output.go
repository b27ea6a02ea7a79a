package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/holiman/uint256"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/0xthrpw/remand/internal/asset"
	"github.com/0xthrpw/remand/internal/offer"
	"github.com/0xthrpw/remand/internal/store"
)

// amountPrinter renders quantities with grouping separators in text
// output.
var amountPrinter = message.NewPrinter(language.English)

// formatAmount renders a quantity for humans. Values beyond a machine
// word fall back to the plain decimal string.
func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "1"
	}
	if v.IsUint64() {
		return amountPrinter.Sprintf("%d", v.Uint64())
	}
	return v.Dec()
}

// refView is the JSON shape of a bundle entry.
type refView struct {
	Kind     string `json:"kind"`
	Contract string `json:"contract"`
	ID       uint64 `json:"id,omitempty"`
	Amount   string `json:"amount"`
}

// offerView is the JSON shape of an offer.
type offerView struct {
	Key        string    `json:"key"`
	Seq        int64     `json:"seq"`
	Owner      string    `json:"owner"`
	Target     string    `json:"target"`
	Term       int64     `json:"term"`
	Deadline   int64     `json:"deadline"`
	AcceptedAt int64     `json:"accepted_at,omitempty"`
	AcceptedBy string    `json:"accepted_by,omitempty"`
	State      string    `json:"state"`
	Ask        []refView `json:"ask"`
	Collateral []refView `json:"collateral"`
	Fee        []refView `json:"fee"`
}

func viewBundle(b asset.Bundle) []refView {
	views := make([]refView, 0, len(b))
	for _, r := range b {
		views = append(views, refView{
			Kind:     r.Kind.String(),
			Contract: string(r.Contract),
			ID:       r.ID,
			Amount:   r.Amount().Dec(),
		})
	}
	return views
}

func viewOffer(o *offer.Offer) offerView {
	return offerView{
		Key:        o.Key,
		Seq:        o.Seq,
		Owner:      string(o.Owner),
		Target:     o.Target.String(),
		Term:       o.Term,
		Deadline:   o.Deadline,
		AcceptedAt: o.AcceptedAt,
		AcceptedBy: string(o.AcceptedBy),
		State:      string(o.State),
		Ask:        viewBundle(o.Ask),
		Collateral: viewBundle(o.Collateral),
		Fee:        viewBundle(o.Fee),
	}
}

// printOffer renders an offer in the selected format.
func printOffer(w io.Writer, format string, o *offer.Offer) error {
	if format == "json" {
		return printJSON(w, viewOffer(o))
	}

	fmt.Fprintf(w, "Offer %s\n", o.Key)
	fmt.Fprintf(w, "  State:    %s\n", o.State)
	fmt.Fprintf(w, "  Owner:    %s\n", o.Owner)
	fmt.Fprintf(w, "  Target:   %s\n", o.Target)
	fmt.Fprintf(w, "  Term:     %ds\n", o.Term)
	fmt.Fprintf(w, "  Deadline: %d\n", o.Deadline)
	if o.AcceptedAt != 0 {
		fmt.Fprintf(w, "  Accepted: %d by %s\n", o.AcceptedAt, o.AcceptedBy)
	}
	printBundle(w, "Ask", o.Ask)
	printBundle(w, "Collateral", o.Collateral)
	printBundle(w, "Fee", o.Fee)
	return nil
}

func printBundle(w io.Writer, label string, b asset.Bundle) {
	fmt.Fprintf(w, "  %s:\n", label)
	for _, r := range b {
		switch r.Kind {
		case asset.Unique:
			fmt.Fprintf(w, "    %s %s #%d\n", r.Kind, r.Contract, r.ID)
		case asset.SemiFungible:
			fmt.Fprintf(w, "    %s %s #%d x %s\n", r.Kind, r.Contract, r.ID, formatAmount(r.Quantity))
		default:
			fmt.Fprintf(w, "    %s %s x %s\n", r.Kind, r.Contract, formatAmount(r.Quantity))
		}
	}
}

// eventView is the JSON shape of an event record.
type eventView struct {
	Seq      int64  `json:"seq"`
	Kind     string `json:"kind"`
	OfferKey string `json:"offer_key"`
	Actor    string `json:"actor"`
	At       int64  `json:"at"`
}

// printEvents renders the event log in the selected format.
func printEvents(w io.Writer, format string, events []store.EventRecord) error {
	if format == "json" {
		views := make([]eventView, 0, len(events))
		for _, ev := range events {
			views = append(views, eventView{
				Seq:      ev.Seq,
				Kind:     ev.Kind,
				OfferKey: ev.OfferKey,
				Actor:    string(ev.Actor),
				At:       ev.At,
			})
		}
		return printJSON(w, views)
	}

	for _, ev := range events {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", ev.Seq, ev.Kind, ev.OfferKey, ev.Actor, ev.At)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
