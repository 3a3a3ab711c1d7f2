package httpapi

import (
	"time"

	"github.com/ahlev/Parlaybot/internal/usecase"
)

type pickDTO struct {
	UserID string `json:"user_id"`
	Pick   string `json:"pick"`
}

type listingDTO struct {
	League string    `json:"league"`
	Title  string    `json:"title"`
	Picks  []pickDTO `json:"picks"`
}

type parlayDTO struct {
	Empty   bool         `json:"empty"`
	Leagues []listingDTO `json:"leagues"`
}

type administratorDTO struct {
	UserID string `json:"user_id"`
}

type weeklyResetJobRequest struct {
	Reason     string `json:"reason" validate:"omitempty,oneof=scheduled manual"`
	DispatchID string `json:"dispatch_id" validate:"omitempty,max=128"`
}

type weeklyResetJobResponse struct {
	Trigger       string    `json:"trigger"`
	Cleared       bool      `json:"cleared"`
	NotifyUserIDs []string  `json:"notify_user_ids"`
	ResetAt       time.Time `json:"reset_at"`
	DispatchID    string    `json:"dispatch_id"`
}

func toListingDTO(listing usecase.Listing) listingDTO {
	out := listingDTO{
		League: listing.League.String(),
		Title:  listing.League.Title(),
		Picks:  make([]pickDTO, 0, listing.Len()),
	}
	for userID, text := range listing.All() {
		out.Picks = append(out.Picks, pickDTO{UserID: userID, Pick: text})
	}
	return out
}
