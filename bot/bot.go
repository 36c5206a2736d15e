// Package bot runs the archive commands on Discord.
package bot

import (
	"context"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session/shard"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/getsentry/sentry-go"
	"github.com/starshine-sys/archiver/archive"
	"github.com/starshine-sys/archiver/common"
	"github.com/starshine-sys/archiver/config"
	"github.com/starshine-sys/bcr"
)

// intentMessageContent is the privileged message content intent, needed to read prefixed commands.
const intentMessageContent gateway.Intents = 1 << 15

const Intents = gateway.IntentGuilds | gateway.IntentGuildMessages | intentMessageContent

// Bot is the archive bot.
type Bot struct {
	Router *bcr.Router
	Config config.Config

	Exporter archive.Exporter
	Hub      *sentry.Hub

	Start time.Time

	// ctx is cancelled when the bot shuts down, and stops any running archive.
	ctx context.Context

	limiter *limiter

	initLoad   bool
	initLoadMu sync.Mutex
}

// New creates a new Bot and registers its commands and handlers.
// hub may be nil if error reporting is disabled.
func New(ctx context.Context, c config.Config, exp archive.Exporter, hub *sentry.Hub) (*Bot, error) {
	r, err := bcr.NewWithIntents(
		c.Auth.BotToken(),
		[]discord.UserID{c.Auth.Owner},
		c.Auth.Prefixes,
		Intents,
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating router")
	}
	r.EmbedColor = bcr.ColourPurple

	b := &Bot{
		Router:   r,
		Config:   c,
		Exporter: exp,
		Hub:      hub,
		Start:    time.Now().UTC(),
		ctx:      ctx,
		limiter:  newLimiter(time.Duration(c.Bot.Cooldown)),
		initLoad: true,
	}

	r.AddHandler(r.MessageCreate)

	b.ForEach(func(s *state.State) {
		s.Client.Client.OnResponse = append(s.Client.Client.OnResponse, onResponse)

		s.AddHandler(func(ev *gateway.ReadyEvent) {
			b.ready(s, ev)
		})
		s.AddHandler(func(*gateway.ResumedEvent) {
			b.resumed(s)
		})
	})

	b.addCommands()
	return b, nil
}

// Open connects to Discord.
func (bot *Bot) Open(ctx context.Context) error {
	s, _ := bot.Router.StateFromGuildID(0)
	botUser, err := s.Me()
	if err != nil {
		return errors.Wrap(err, "fetching bot user")
	}
	bot.Router.Bot = botUser
	// normally creating a Context would do this, but as we set the user above, that doesn't work
	bot.Router.Prefixes = append(bot.Router.Prefixes, "<@"+botUser.ID.String()+">", "<@!"+botUser.ID.String()+">")

	common.Log.Infof("User: %v#%v (%v)", botUser.Username, botUser.Discriminator, botUser.ID)

	if err := bot.Router.ShardManager.Open(ctx); err != nil {
		return errors.Wrap(err, "connecting to Discord")
	}
	return nil
}

// Close disconnects from Discord and stops the cooldown cache.
func (bot *Bot) Close() error {
	bot.limiter.close()
	return bot.Router.ShardManager.Close()
}

// ForEach calls fn for every shard's state.
func (bot *Bot) ForEach(fn func(s *state.State)) {
	bot.Router.ShardManager.ForEach(func(s shard.Shard) {
		fn(s.(*state.State))
	})
}

func (bot *Bot) addCommands() {
	bot.Router.AddCommand(&bcr.Command{
		Name:        "archive",
		Summary:     "Archive all configured categories.",
		Description: "Export every channel and thread in the configured categories, then write the archive indexes.\nUse `--dry-run` to only write the indexes.",
		Flags:       archiveFlags,

		Command: bot.archive,
	})

	bot.Router.AddCommand(&bcr.Command{
		Name:    "unarchive",
		Aliases: []string{"unarchive-threads"},
		Summary: "Reopen all archived threads in the configured categories.",

		Command: bot.unarchive,
	})

	bot.Router.AddCommand(&bcr.Command{
		Name:    "ping",
		Summary: "Show the bot's latency and uptime.",

		Command: bot.ping,
	})
}
