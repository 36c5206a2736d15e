package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/starshine-sys/archiver/archive"
	"github.com/starshine-sys/archiver/common"
	"github.com/starshine-sys/bcr"
)

// typingInterval is how often the typing indicator is refreshed. It expires after 10 seconds.
const typingInterval = 8 * time.Second

func archiveFlags(fs *pflag.FlagSet) *pflag.FlagSet {
	fs.BoolP("dry-run", "n", false, "Only write the indexes, don't run the exporter.")
	return fs
}

// checkRun decides whether a run can start for a command from author in guildID.
// If it can't, reply is what the user is told; an empty reply means the command is silently ignored.
// A successful check marks a run in the guild as started.
func (bot *Bot) checkRun(guildID discord.GuildID, author discord.UserID) (reply string, ok bool) {
	// commands in DMs are ignored
	if !guildID.IsValid() {
		return "", false
	}

	if author != bot.Config.Auth.Owner {
		return "You do not have the proper permissions to use that command.", false
	}

	wait, ok := bot.limiter.acquire(guildID)
	if !ok {
		return cooldownMessage(wait), false
	}
	return "", true
}

// cooldownMessage is sent if a command is used while a run is going or the guild is on cooldown.
func cooldownMessage(wait time.Duration) string {
	return fmt.Sprintf("You're doing that command too fast! Try again in `%.2f` seconds.", wait.Seconds())
}

// startRun checks the owner and the guild's cooldown, and returns a function to finish the run.
func (bot *Bot) startRun(ctx *bcr.Context) (done func(), ok bool, err error) {
	guildID := ctx.Message.GuildID

	reply, ok := bot.checkRun(guildID, ctx.Message.Author.ID)
	if !ok {
		if reply != "" {
			_, err = ctx.Send("", errorEmbed(reply, ""))
		}
		return nil, false, err
	}

	return func() { bot.limiter.release(guildID) }, true, nil
}

func (bot *Bot) archiver(ctx *bcr.Context) *archive.Archiver {
	return archive.New(bot.Config, &archive.StateSource{State: ctx.State}, bot.Exporter)
}

func (bot *Bot) archive(ctx *bcr.Context) (err error) {
	done, ok, err := bot.startRun(ctx)
	if !ok || err != nil {
		return err
	}
	defer done()

	dryRun, _ := ctx.Flags.GetBool("dry-run")

	msg, err := ctx.Send("", infoEmbed("Here we go. This will take a *long* time."))
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(bot.ctx)
	defer cancel()
	go bot.typing(runCtx, ctx)

	res, err := bot.archiver(ctx).Run(runCtx, ctx.Message.GuildID, bot.Config.Categories, archive.Options{
		DryRun: dryRun,
		Progress: func(r archive.CategoryResult) {
			bot.progress(ctx, msg, r)
		},
	})
	if err != nil {
		return bot.ReportError(ctx, err)
	}

	_, err = ctx.Send("", infoEmbed("Done!"), summaryEmbed(res, dryRun))
	return err
}

func (bot *Bot) unarchive(ctx *bcr.Context) (err error) {
	done, ok, err := bot.startRun(ctx)
	if !ok || err != nil {
		return err
	}
	defer done()

	runCtx, cancel := context.WithCancel(bot.ctx)
	defer cancel()
	go bot.typing(runCtx, ctx)

	n, err := bot.archiver(ctx).Unarchive(runCtx, ctx.Message.GuildID, bot.Config.Categories)
	if err != nil {
		return bot.ReportError(ctx, err)
	}

	_, err = ctx.Send("", infoEmbed(fmt.Sprintf("Done! Reopened %v.", pluralize(n, "thread"))))
	return err
}

// typing keeps the typing indicator in the command's channel until ctx is cancelled.
func (bot *Bot) typing(ctx context.Context, cmd *bcr.Context) {
	t := time.NewTicker(typingInterval)
	defer t.Stop()

	for {
		err := cmd.State.Typing(cmd.Message.ChannelID)
		if err != nil {
			common.Log.Debugf("Error triggering typing indicator: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// progress updates the initial reply with the number of finished categories.
func (bot *Bot) progress(ctx *bcr.Context, msg *discord.Message, r archive.CategoryResult) {
	e := infoEmbed("Here we go. This will take a *long* time.")
	e.Footer = &discord.EmbedFooter{
		Text: fmt.Sprintf("Archived %v (%v/%v)", r.Category.Name, r.Index+1, r.Total),
	}

	_, err := ctx.State.EditMessageComplex(msg.ChannelID, msg.ID, api.EditMessageData{
		Embeds: &[]discord.Embed{e},
	})
	if err != nil {
		common.Log.Errorf("Error updating progress message: %v", err)
	}
}

func summaryEmbed(res *archive.Result, dryRun bool) discord.Embed {
	title := "Archive summary"
	if dryRun {
		title += " (dry run)"
	}

	return discord.Embed{
		Title: title,
		Color: bcr.ColourGreen,
		Fields: []discord.EmbedField{
			{
				Name:   "Categories",
				Value:  humanize.Comma(int64(len(res.Categories))),
				Inline: true,
			},
			{
				Name:   "Channels",
				Value:  humanize.Comma(int64(res.Channels)),
				Inline: true,
			},
			{
				Name:   "Threads",
				Value:  humanize.Comma(int64(res.Threads)),
				Inline: true,
			},
			{
				Name:   "Exporter runs",
				Value:  humanize.Comma(int64(res.Exports)),
				Inline: true,
			},
			{
				Name:   "Archive size",
				Value:  humanize.Bytes(uint64(res.Bytes)),
				Inline: true,
			},
			{
				Name:   "Time taken",
				Value:  bcr.HumanizeDuration(bcr.DurationPrecisionSeconds, res.Elapsed),
				Inline: true,
			},
		},
		Timestamp: discord.NowTimestamp(),
	}
}

func pluralize(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return humanize.Comma(int64(n)) + " " + word + "s"
}
