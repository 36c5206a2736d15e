package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/starshine-sys/archiver/common"
	"github.com/starshine-sys/bcr"
)

const internalErrorMessage = "An internal error has occurred. The bot owner has been notified and will likely fix the issue soon."

// ReportError logs err, sends it to Sentry and the bot owner, and tells the user something went wrong.
func (bot *Bot) ReportError(ctx *bcr.Context, err error) error {
	cmd := strings.Join(ctx.FullCommandPath, " ")
	common.Log.Errorf("Error in command %v: %v", cmd, err)

	id := bot.capture(ctx, cmd, err)

	bot.dmOwner(ctx.State, fmt.Sprintf("Error in `%v` (code `%v`):\n```\n%v\n```", cmd, id, bcr.EscapeBackticks(err.Error())))

	_, mErr := ctx.Send(fmt.Sprintf("Error code: ``%v``", id), errorEmbed(internalErrorMessage, id))
	return mErr
}

// capture sends err to Sentry, if enabled, and returns the event ID.
// If Sentry is disabled a random ID is returned so the error can still be found in the logs.
func (bot *Bot) capture(ctx *bcr.Context, cmd string, err error) string {
	if bot.Hub == nil {
		id := uuid.New().String()
		common.Log.Errorf("Error code for %v: %v", cmd, id)
		return id
	}

	hub := bot.Hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: ctx.Message.Author.ID.String()})
		scope.SetTag("command", cmd)
	})

	data := map[string]interface{}{
		"command": cmd,
		"user":    ctx.Message.Author.ID,
	}
	if ctx.Message.GuildID.IsValid() {
		data["guild"] = ctx.Message.GuildID
	}

	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Data:      data,
		Level:     sentry.LevelError,
		Timestamp: time.Now().UTC(),
	}, nil)

	id := hub.CaptureException(err)
	if id == nil {
		return uuid.New().String()
	}
	return string(*id)
}

// errorEmbed returns an error embed. footer is optional.
func errorEmbed(desc string, footer string) discord.Embed {
	e := discord.Embed{
		Title:       "Error",
		Description: desc,
		Color:       bcr.ColourOrange,
		Timestamp:   discord.NowTimestamp(),
	}
	if footer != "" {
		e.Footer = &discord.EmbedFooter{Text: footer}
	}
	return e
}

func infoEmbed(desc string) discord.Embed {
	return discord.Embed{
		Description: desc,
		Color:       bcr.ColourBlue,
		Timestamp:   discord.NowTimestamp(),
	}
}
