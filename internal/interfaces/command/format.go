package command

import (
	"fmt"
	"strings"

	"github.com/ahlev/Parlaybot/internal/domain/pick"
	"github.com/ahlev/Parlaybot/internal/usecase"
)

const snarkyResponse = "Good luck with that one, you're gonna need it!"

// Formatter renders ledger results as chat text. Every reply except the
// parlay itself and the empty reset carries the command reminder.
type Formatter struct {
	Prefix string
}

func NewFormatter(prefix string) Formatter {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	return Formatter{Prefix: prefix}
}

func Mention(userID string) string {
	return "<@" + userID + ">"
}

func (f Formatter) Reminder() string {
	p := f.Prefix
	return fmt.Sprintf("\nAvailable commands:\n%[1]saddpick <league> <pick>, \n%[1]seditpick <league> <new_pick>, \n%[1]sdeletepick <league>, \n%[1]sshowpicks <league>", p)
}

func (f Formatter) withReminder(msg string) string {
	return msg + " " + f.Reminder()
}

func (f Formatter) PickAdded(res usecase.PickResult) string {
	return f.withReminder(fmt.Sprintf("%s pick added: %s. %s", res.League, res.Text, snarkyResponse))
}

func (f Formatter) PickAlreadyExists(league pick.League) string {
	return f.withReminder(fmt.Sprintf("You already have a %s pick for this week. Use `%seditpick` to change it.", league, f.Prefix))
}

func (f Formatter) PickEdited(res usecase.PickResult) string {
	return f.withReminder(fmt.Sprintf("%s pick updated to: %s. %s", res.League, res.Text, snarkyResponse))
}

func (f Formatter) PickMissingForEdit(league pick.League) string {
	return f.withReminder(fmt.Sprintf("You don't have a %s pick yet. Use `%saddpick` to add one.", league, f.Prefix))
}

func (f Formatter) PickDeleted(res usecase.PickResult) string {
	return f.withReminder(fmt.Sprintf("Your %s pick has been deleted. %s", res.League, snarkyResponse))
}

func (f Formatter) PickMissingForDelete(league pick.League) string {
	return f.withReminder(fmt.Sprintf("You don't have a %s pick to delete.", league))
}

func (f Formatter) Listing(listing usecase.Listing) string {
	if listing.Empty() {
		return f.withReminder(fmt.Sprintf("No %s picks have been submitted yet.", listing.League))
	}
	return f.withReminder(fmt.Sprintf("Current %s picks:\n%s", listing.League, renderLines(listing)))
}

func (f Formatter) Parlay(parlay usecase.Parlay) string {
	if parlay.Empty() {
		return f.withReminder("No picks to finalize. What a disappointing week!")
	}

	sections := make([]string, 0, len(parlay.Leagues))
	for _, listing := range parlay.Leagues {
		if listing.Empty() {
			continue
		}
		sections = append(sections, fmt.Sprintf("%s Picks:\n%s", listing.League.Title(), renderLines(listing)))
	}
	return "Parlay finalized with the following picks:\n" + strings.Join(sections, "\n\n")
}

func (f Formatter) AdminGranted(userID string) string {
	return f.withReminder(fmt.Sprintf("Admin privileges have been granted to %s for managing weekly resets.", Mention(userID)))
}

func (f Formatter) ResetDenied() string {
	return f.withReminder("You do not have permission to trigger the weekly reset.")
}

func (f Formatter) Reset(result usecase.ResetResult) string {
	if !result.Cleared {
		return "No picks were found, but the weekly reset has been performed."
	}

	mentions := make([]string, 0, len(result.NotifyUserIDs))
	for _, userID := range result.NotifyUserIDs {
		mentions = append(mentions, Mention(userID))
	}
	return f.withReminder(fmt.Sprintf(
		"Weekly reset has been triggered. All previous picks have been cleared. %s, the new week has started!",
		strings.Join(mentions, " "),
	))
}

func (f Formatter) AdminRequired(name string) string {
	return f.withReminder(fmt.Sprintf("You need administrator permission to use `%s%s`.", f.Prefix, name))
}

func (f Formatter) InvalidLeague(raw string) string {
	return f.withReminder(fmt.Sprintf("Unknown league `%s`. Use `nfl` or `cfb`.", raw))
}

func (f Formatter) Usage(usage string) string {
	return f.withReminder(fmt.Sprintf("Usage: `%s%s`", f.Prefix, usage))
}

func (f Formatter) SaveFailed() string {
	return f.withReminder("Your change could not be saved, please try again in a moment.")
}

func (f Formatter) Unexpected() string {
	return f.withReminder("Something went wrong handling that command.")
}

func (f Formatter) Help() string {
	p := f.Prefix
	return fmt.Sprintf("Parlay bot commands:\n"+
		"%[1]saddpick <league> <pick> - register your pick for this week\n"+
		"%[1]seditpick <league> <new_pick> - change your pick\n"+
		"%[1]sdeletepick <league> - remove your pick\n"+
		"%[1]sshowpicks <league> - list everyone's picks\n"+
		"%[1]sfinalizeparlay - post the combined parlay (server admins)\n"+
		"%[1]ssetadmin @user - choose who runs weekly resets (server admins)\n"+
		"%[1]sadminreset - clear every pick for the new week (weekly reset admin)\n"+
		"Leagues: nfl, cfb", p)
}

func renderLines(listing usecase.Listing) string {
	lines := make([]string, 0, listing.Len())
	for userID, text := range listing.All() {
		lines = append(lines, fmt.Sprintf("%s: %s", Mention(userID), text))
	}
	return strings.Join(lines, "\n")
}
