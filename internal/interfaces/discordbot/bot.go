package discordbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ahlev/Parlaybot/internal/interfaces/command"
	"github.com/ahlev/Parlaybot/internal/platform/logging"
	"github.com/ahlev/Parlaybot/internal/usecase"
	"github.com/bwmarrin/discordgo"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent | discordgo.IntentsGuildMembers

const drainTimeout = 5 * time.Second

var tracer = otel.Tracer("parlaybot/internal/interfaces/discordbot")

// session is the part of *discordgo.Session the bot relies on.
type session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

type Config struct {
	Token             string
	AnnounceChannelID string
}

// Bot connects the command router to a Discord gateway session. Messages are
// handled one at a time, in the order the pool accepts them.
type Bot struct {
	session           session
	router            *command.Router
	announceChannelID string
	logger            *logging.Logger

	mu     sync.Mutex
	pool   *ants.Pool
	cancel func()
}

func New(cfg Config, router *command.Router, logger *logging.Logger) (*Bot, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("discord bot token is required")
	}

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = intents

	return newBot(s, cfg.AnnounceChannelID, router, logger), nil
}

func newBot(s session, announceChannelID string, router *command.Router, logger *logging.Logger) *Bot {
	if logger == nil {
		logger = logging.Default()
	}
	return &Bot{
		session:           s,
		router:            router,
		announceChannelID: strings.TrimSpace(announceChannelID),
		logger:            logger,
	}
}

// Run opens the gateway connection and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	pool, err := ants.NewPool(1)
	if err != nil {
		return fmt.Errorf("create message worker pool: %w", err)
	}
	defer func() {
		if err := pool.ReleaseTimeout(drainTimeout); err != nil {
			b.logger.Warn("discord message pool did not drain", "error", err)
		}
	}()

	b.mu.Lock()
	b.pool = pool
	b.cancel = b.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.dispatch(ctx, m)
	})
	b.mu.Unlock()

	if err := b.session.Open(); err != nil {
		b.removeHandler()
		return fmt.Errorf("open discord session: %w", err)
	}
	b.logger.InfoContext(ctx, "discord bot connected")

	<-ctx.Done()

	b.removeHandler()
	if err := b.session.Close(); err != nil {
		b.logger.Warn("close discord session failed", "error", err)
	}
	b.logger.Info("discord bot disconnected")
	return nil
}

func (b *Bot) removeHandler() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.pool = nil
}

func (b *Bot) dispatch(ctx context.Context, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}

	b.mu.Lock()
	pool := b.pool
	b.mu.Unlock()
	if pool == nil {
		return
	}

	msg := m.Message
	if err := pool.Submit(func() { b.handleMessage(ctx, msg) }); err != nil {
		b.logger.WarnContext(ctx, "submit discord message failed", "message_id", msg.ID, "error", err)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *discordgo.Message) {
	ctx, span := tracer.Start(ctx, "discordbot.HandleMessage",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("discord.channel_id", msg.ChannelID),
			attribute.String("discord.guild_id", msg.GuildID),
		),
	)
	defer span.End()

	req := command.Request{
		AuthorID:  msg.Author.ID,
		ChannelID: msg.ChannelID,
		Content:   msg.Content,
		Mentions:  mentionIDs(msg.Mentions),
		IsAdmin:   b.adminChecker(msg),
	}

	reply, ok := b.router.Handle(ctx, req)
	if !ok {
		return
	}
	if _, err := b.session.ChannelMessageSend(msg.ChannelID, reply); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.WarnContext(ctx, "send discord reply failed", "channel_id", msg.ChannelID, "error", err)
	}
}

func (b *Bot) adminChecker(msg *discordgo.Message) command.AdminChecker {
	return func(ctx context.Context) (bool, error) {
		if msg.GuildID == "" {
			return false, nil
		}
		perms, err := b.session.UserChannelPermissions(msg.Author.ID, msg.ChannelID, discordgo.WithContext(ctx))
		if err != nil {
			return false, fmt.Errorf("lookup channel permissions: %w", err)
		}
		return perms&discordgo.PermissionAdministrator != 0, nil
	}
}

// AnnounceReset posts a timer or job reset to the announcement channel.
func (b *Bot) AnnounceReset(ctx context.Context, result usecase.ResetResult) error {
	if b.announceChannelID == "" {
		b.logger.DebugContext(ctx, "no announcement channel configured, reset not announced", "trigger", result.Trigger)
		return nil
	}

	content := b.router.Formatter().Reset(result)
	if _, err := b.session.ChannelMessageSend(b.announceChannelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("post reset announcement: %w", err)
	}
	return nil
}

func mentionIDs(users []*discordgo.User) []string {
	out := make([]string, 0, len(users))
	for _, user := range users {
		if user == nil || user.ID == "" {
			continue
		}
		out = append(out, user.ID)
	}
	return out
}
