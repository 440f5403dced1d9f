package notifications

import (
	"fmt"

	"github.com/cardswap/trade-engine/marketcore/database/models"
)

// Payload is one formatted push notification. Data carries the identifiers
// the mobile client needs to deep-link into the right screen.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

func OfferCreated(listingTitle string, cashCents int64, itemCount int) Payload {
	body := fmt.Sprintf("You received a new offer on %q", listingTitle)
	if cashCents > 0 && itemCount > 0 {
		body = fmt.Sprintf("New offer on %q: %d card(s) + $%.2f", listingTitle, itemCount, float64(cashCents)/100)
	} else if cashCents > 0 {
		body = fmt.Sprintf("New offer on %q: $%.2f", listingTitle, float64(cashCents)/100)
	} else if itemCount > 0 {
		body = fmt.Sprintf("New offer on %q: %d card(s)", listingTitle, itemCount)
	}

	return Payload{
		Title: "New offer",
		Body:  body,
		Data:  map[string]string{"kind": "offer_created"},
	}
}

func OfferAccepted(listingTitle string) Payload {
	return Payload{
		Title: "Offer accepted",
		Body:  fmt.Sprintf("Your offer on %q was accepted. Say hi and set up a meetup!", listingTitle),
		Data:  map[string]string{"kind": "offer_accepted"},
	}
}

func OfferDeclined(listingTitle string) Payload {
	return Payload{
		Title: "Offer declined",
		Body:  fmt.Sprintf("Your offer on %q was declined.", listingTitle),
		Data:  map[string]string{"kind": "offer_declined"},
	}
}

func MeetupHalfComplete(otherUserID string) Payload {
	return Payload{
		Title: "Trade almost done",
		Body:  "Your trade partner marked the meetup complete. Confirm your half to finish the trade.",
		Data:  map[string]string{"kind": "meetup_half_complete", "from": otherUserID},
	}
}

// Message formats the type-specific notification for an incoming message.
// System messages never notify; callers skip them before reaching here.
func Message(msgType models.MessageType, senderID, body string) Payload {
	data := map[string]string{
		"kind":   "message",
		"type":   string(msgType),
		"sender": senderID,
	}

	switch msgType {
	case models.MessageImage:
		return Payload{Title: "New photo", Body: "You received a photo.", Data: data}
	case models.MessageCardOffer:
		return Payload{Title: "Card offer", Body: "You received a card offer in chat.", Data: data}
	case models.MessageCardOfferResponse:
		return Payload{Title: "Offer response", Body: "Your in-chat card offer got a response.", Data: data}
	case models.MessageMeetupProposal:
		return Payload{Title: "Meetup proposed", Body: "Your trade partner proposed a meetup.", Data: data}
	case models.MessageMeetupResponse:
		return Payload{Title: "Meetup update", Body: "Your meetup proposal got a response.", Data: data}
	default:
		preview := body
		// Truncate on rune boundaries so multi-byte text stays valid UTF-8.
		if runes := []rune(preview); len(runes) > 80 {
			preview = string(runes[:77]) + "..."
		}
		return Payload{Title: "New message", Body: preview, Data: data}
	}
}
