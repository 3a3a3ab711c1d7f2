package command

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/ahlev/Parlaybot/internal/domain/pick"
	"github.com/ahlev/Parlaybot/internal/platform/logging"
	"github.com/ahlev/Parlaybot/internal/usecase"
)

const DefaultPrefix = "/"

const (
	nameAddPick        = "addpick"
	nameEditPick       = "editpick"
	nameDeletePick     = "deletepick"
	nameShowPicks      = "showpicks"
	nameFinalizeParlay = "finalizeparlay"
	nameSetAdmin       = "setadmin"
	nameAdminReset     = "adminreset"
	nameHelp           = "help"
)

// AdminChecker reports whether the message author holds the guild
// administrator permission. It is only called for gated commands.
type AdminChecker func(ctx context.Context) (bool, error)

// Request is one chat message addressed to the bot.
type Request struct {
	AuthorID  string
	ChannelID string
	Content   string
	// Mentions lists the user ids mentioned in the message, in order.
	Mentions []string
	IsAdmin  AdminChecker
}

// Ledger is the subset of the pick ledger the command layer drives.
type Ledger interface {
	AddPick(ctx context.Context, userID, league, text string) (usecase.PickResult, error)
	EditPick(ctx context.Context, userID, league, text string) (usecase.PickResult, error)
	DeletePick(ctx context.Context, userID, league string) (usecase.PickResult, error)
	ListPicks(ctx context.Context, league string) (usecase.Listing, error)
	FinalizeParlay(ctx context.Context) (usecase.Parlay, error)
	SetAdministrator(ctx context.Context, userID string) (string, error)
	TriggerWeeklyReset(ctx context.Context, actor usecase.ResetActor) (usecase.ResetResult, error)
}

type handlerFunc func(ctx context.Context, req Request, args string) string

type Router struct {
	ledger   Ledger
	format   Formatter
	logger   *logging.Logger
	handlers map[string]handlerFunc
}

var mentionTokenRegex = regexp.MustCompile(`^<@!?(\d+)>$`)

func NewRouter(ledger Ledger, prefix string, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.Default()
	}

	r := &Router{
		ledger: ledger,
		format: NewFormatter(prefix),
		logger: logger,
	}
	r.handlers = map[string]handlerFunc{
		nameAddPick:        r.addPick,
		nameEditPick:       r.editPick,
		nameDeletePick:     r.deletePick,
		nameShowPicks:      r.showPicks,
		nameFinalizeParlay: r.finalizeParlay,
		nameSetAdmin:       r.setAdmin,
		nameAdminReset:     r.adminReset,
		nameHelp:           r.help,
	}
	return r
}

func (r *Router) Formatter() Formatter {
	return r.format
}

// Handle routes one message. ok is false when the message is not a known
// command and the bot should stay silent.
func (r *Router) Handle(ctx context.Context, req Request) (reply string, ok bool) {
	name, args, matched := r.parse(req.Content)
	if !matched {
		return "", false
	}

	handler, found := r.handlers[name]
	if !found {
		r.logger.DebugContext(ctx, "unknown command ignored", "command", name, "user_id", req.AuthorID)
		return "", false
	}

	r.logger.DebugContext(ctx, "command received", "command", name, "user_id", req.AuthorID, "channel_id", req.ChannelID)
	return handler(ctx, req, args), true
}

// parse splits "<prefix>name rest" and folds the hyphenated spellings
// ("add-pick") onto the canonical names.
func (r *Router) parse(content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, r.format.Prefix) {
		return "", "", false
	}
	content = strings.TrimPrefix(content, r.format.Prefix)

	head, rest := splitFirstToken(content)
	if head == "" {
		return "", "", false
	}
	name = strings.ReplaceAll(strings.ToLower(head), "-", "")
	return name, rest, true
}

func (r *Router) addPick(ctx context.Context, req Request, args string) string {
	league, text := splitFirstToken(args)
	if league == "" || text == "" {
		return r.format.Usage("addpick <league> <pick>")
	}

	res, err := r.ledger.AddPick(ctx, req.AuthorID, league, text)
	switch {
	case err == nil:
		return r.format.PickAdded(res)
	case errors.Is(err, usecase.ErrAlreadyExists):
		return r.format.PickAlreadyExists(displayLeague(league))
	default:
		return r.failure(ctx, nameAddPick, league, err)
	}
}

func (r *Router) editPick(ctx context.Context, req Request, args string) string {
	league, text := splitFirstToken(args)
	if league == "" || text == "" {
		return r.format.Usage("editpick <league> <new_pick>")
	}

	res, err := r.ledger.EditPick(ctx, req.AuthorID, league, text)
	switch {
	case err == nil:
		return r.format.PickEdited(res)
	case errors.Is(err, usecase.ErrNotFound):
		return r.format.PickMissingForEdit(displayLeague(league))
	default:
		return r.failure(ctx, nameEditPick, league, err)
	}
}

func (r *Router) deletePick(ctx context.Context, req Request, args string) string {
	league, _ := splitFirstToken(args)
	if league == "" {
		return r.format.Usage("deletepick <league>")
	}

	res, err := r.ledger.DeletePick(ctx, req.AuthorID, league)
	switch {
	case err == nil:
		return r.format.PickDeleted(res)
	case errors.Is(err, usecase.ErrNotFound):
		return r.format.PickMissingForDelete(displayLeague(league))
	default:
		return r.failure(ctx, nameDeletePick, league, err)
	}
}

func (r *Router) showPicks(ctx context.Context, _ Request, args string) string {
	league, _ := splitFirstToken(args)
	if league == "" {
		return r.format.Usage("showpicks <league>")
	}

	listing, err := r.ledger.ListPicks(ctx, league)
	if err != nil {
		return r.failure(ctx, nameShowPicks, league, err)
	}
	return r.format.Listing(listing)
}

func (r *Router) finalizeParlay(ctx context.Context, req Request, _ string) string {
	if denied, reply := r.requireGuildAdmin(ctx, req, nameFinalizeParlay); denied {
		return reply
	}

	parlay, err := r.ledger.FinalizeParlay(ctx)
	if err != nil {
		return r.failure(ctx, nameFinalizeParlay, "", err)
	}
	return r.format.Parlay(parlay)
}

func (r *Router) setAdmin(ctx context.Context, req Request, args string) string {
	if denied, reply := r.requireGuildAdmin(ctx, req, nameSetAdmin); denied {
		return reply
	}

	target := mentionedUser(req, args)
	if target == "" {
		return r.format.Usage("setadmin @user")
	}

	if _, err := r.ledger.SetAdministrator(ctx, target); err != nil {
		return r.failure(ctx, nameSetAdmin, "", err)
	}
	return r.format.AdminGranted(target)
}

func (r *Router) adminReset(ctx context.Context, req Request, _ string) string {
	result, err := r.ledger.TriggerWeeklyReset(ctx, usecase.ResetActor{UserID: req.AuthorID})
	switch {
	case err == nil:
		return r.format.Reset(result)
	case errors.Is(err, usecase.ErrUnauthorized):
		return r.format.ResetDenied()
	default:
		return r.failure(ctx, nameAdminReset, "", err)
	}
}

func (r *Router) help(_ context.Context, _ Request, _ string) string {
	return r.format.Help()
}

func (r *Router) requireGuildAdmin(ctx context.Context, req Request, name string) (bool, string) {
	if req.IsAdmin == nil {
		return true, r.format.AdminRequired(name)
	}

	allowed, err := req.IsAdmin(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "permission lookup failed", "command", name, "user_id", req.AuthorID, "error", err)
		return true, r.format.Unexpected()
	}
	if !allowed {
		return true, r.format.AdminRequired(name)
	}
	return false, ""
}

func (r *Router) failure(ctx context.Context, name, league string, err error) string {
	switch {
	case errors.Is(err, usecase.ErrInvalidLeague):
		return r.format.InvalidLeague(league)
	case errors.Is(err, usecase.ErrInvalidInput):
		return r.format.Usage(name + " <league> <pick>")
	case errors.Is(err, usecase.ErrPersistenceFailure):
		return r.format.SaveFailed()
	default:
		r.logger.ErrorContext(ctx, "command failed", "command", name, "error", err)
		return r.format.Unexpected()
	}
}

func displayLeague(raw string) pick.League {
	if league, err := pick.ParseLeague(raw); err == nil {
		return league
	}
	return pick.League(strings.ToUpper(strings.TrimSpace(raw)))
}

// mentionedUser prefers the platform's resolved mentions and falls back to
// parsing a raw "<@id>" token or bare numeric id.
func mentionedUser(req Request, args string) string {
	for _, userID := range req.Mentions {
		if userID = strings.TrimSpace(userID); userID != "" {
			return userID
		}
	}

	token, _ := splitFirstToken(args)
	if m := mentionTokenRegex.FindStringSubmatch(token); m != nil {
		return m[1]
	}
	if token != "" && strings.IndexFunc(token, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return token
	}
	return ""
}

// splitFirstToken returns the first whitespace-delimited token and the
// trimmed remainder, keeping inner whitespace of the remainder intact.
func splitFirstToken(s string) (string, string) {
	s = strings.TrimSpace(s)
	idx := strings.IndexFunc(s, unicode.IsSpace)
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx:])
}
