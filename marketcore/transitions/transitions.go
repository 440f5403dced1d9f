// Package transitions is the single source of truth for which status changes
// are legal per entity kind. It is pure data plus lookups: no I/O, no writes.
package transitions

import (
	"fmt"
	"sort"

	"github.com/cardswap/trade-engine/marketcore/database/models"
	"github.com/cardswap/trade-engine/marketcore/pipeline"
)

type Kind string

const (
	KindListing   Kind = "listing"
	KindOffer     Kind = "offer"
	KindMatch     Kind = "match"
	KindMeetup    Kind = "meetup"
	KindReport    Kind = "report"
	KindShopEvent Kind = "shop_event"
)

// tables maps each entity kind to its legal from -> {to...} set. A status with
// no entry is terminal; an unknown status is always illegal. Adding a state or
// edge is a pure data change here.
var tables = map[Kind]map[string]map[string]bool{
	KindListing: {
		string(models.ListingActive): {
			string(models.ListingMatched): true,
			string(models.ListingExpired): true,
		},
		string(models.ListingMatched): {
			string(models.ListingCompleted): true,
		},
	},
	KindOffer: {
		string(models.OfferPending): {
			string(models.OfferAccepted):  true,
			string(models.OfferDeclined):  true,
			string(models.OfferCountered): true,
			string(models.OfferWithdrawn): true,
		},
		string(models.OfferCountered): {
			string(models.OfferAccepted):  true,
			string(models.OfferDeclined):  true,
			string(models.OfferWithdrawn): true,
		},
	},
	KindMatch: {
		string(models.MatchActive): {
			string(models.MatchCompleted): true,
			string(models.MatchCancelled): true,
		},
	},
	KindMeetup: {
		string(models.MeetupProposed): {
			string(models.MeetupConfirmed): true,
			string(models.MeetupCancelled): true,
		},
		string(models.MeetupConfirmed): {
			string(models.MeetupCompleted): true,
			string(models.MeetupCancelled): true,
		},
	},
	KindReport: {
		string(models.ReportPending): {
			string(models.ReportReviewed): true,
		},
		string(models.ReportReviewed): {
			string(models.ReportResolved): true,
		},
	},
	KindShopEvent: {
		string(models.ShopEventDraft): {
			string(models.ShopEventPublished): true,
			string(models.ShopEventCancelled): true,
		},
		string(models.ShopEventPublished): {
			string(models.ShopEventCancelled): true,
			string(models.ShopEventCompleted): true,
		},
	},
}

// CanTransition reports whether from may legally become to for the given
// entity kind. Unknown from (terminal or untracked) is always illegal.
func CanTransition[S ~string](kind Kind, from, to S) bool {
	return tables[kind][string(from)][string(to)]
}

// ValidTransitions returns the sorted set of statuses reachable from from.
// Terminal and unknown statuses yield an empty slice.
func ValidTransitions[S ~string](kind Kind, from S) []S {
	targets := tables[kind][string(from)]
	out := make([]S, 0, len(targets))
	for t := range targets {
		out = append(out, S(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AssertTransition fails with a structured InvalidTransition error when the
// change is illegal. It is the only guard pre-checks and mutations call; it
// never mutates state.
func AssertTransition[S ~string](kind Kind, from, to S) error {
	if CanTransition(kind, from, to) {
		return nil
	}

	legal := ValidTransitions(kind, from)
	alternatives := make([]string, len(legal))
	for i, s := range legal {
		alternatives[i] = string(s)
	}

	return &pipeline.Error{
		Code:    pipeline.CodeInvalidTransition,
		Message: fmt.Sprintf("%s cannot go from %q to %q", kind, from, to),
		Data: map[string]any{
			"entity":       string(kind),
			"from":         string(from),
			"to":           string(to),
			"alternatives": alternatives,
		},
	}
}

// Kinds lists every registered entity kind, for exhaustiveness checks.
func Kinds() []Kind {
	return []Kind{KindListing, KindOffer, KindMatch, KindMeetup, KindReport, KindShopEvent}
}
