package archive

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emperror.dev/errors"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/dustin/go-humanize"
	"github.com/starshine-sys/archiver/archive"
	"github.com/starshine-sys/archiver/common"
	"github.com/starshine-sys/archiver/config"
	"github.com/starshine-sys/archiver/exporter"
	"github.com/urfave/cli/v2"
)

var Command = &cli.Command{
	Name:   "archive",
	Usage:  "Archive the configured categories without starting the bot",
	Action: run,
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:     "guild",
			Aliases:  []string{"g"},
			Usage:    "The server to archive",
			EnvVars:  []string{"GUILD_ID"},
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "unarchive",
			Usage: "Reopen all archived threads before archiving, so they are visible to the exporter",
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Aliases: []string{"n"},
			Usage:   "Only write the indexes, don't run the exporter",
		},
	},
}

func run(c *cli.Context) error {
	conf, err := config.Read(c.String("config"))
	if err != nil {
		return errors.Wrap(err, "reading config")
	}

	if conf.Auth.Token == "" {
		return cli.Exit("No token set, set $TOKEN to the bot's token.", 1)
	}

	guildID := discord.GuildID(discord.Snowflake(c.Uint64("guild")))
	if !guildID.IsValid() {
		return cli.Exit("Invalid server ID.", 1)
	}

	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer cancel()

	var exp archive.Exporter
	if !c.Bool("dry-run") {
		path, err := exporter.Path(ctx, conf)
		if err != nil {
			return errors.Wrap(err, "setting up exporter")
		}
		exp = archive.NewCLIExporter(conf, path)
	}

	s := state.New(conf.Auth.BotToken())
	a := archive.New(conf, &archive.StateSource{State: s}, exp)

	if c.Bool("unarchive") {
		n, err := a.Unarchive(ctx, guildID, conf.Categories)
		if err != nil {
			return errors.Wrap(err, "reopening threads")
		}
		fmt.Printf("Reopened %v threads.\n", humanize.Comma(int64(n)))
	}

	res, err := a.Run(ctx, guildID, conf.Categories, archive.Options{
		DryRun: c.Bool("dry-run"),
		Progress: func(r archive.CategoryResult) {
			fmt.Printf("[%v/%v] %v: %v channels\n", r.Index+1, r.Total, r.Category.Name, len(r.Category.Channels))
		},
	})
	if err != nil {
		return errors.Wrap(err, "archiving")
	}

	common.Log.Infof("Archive written to %v", conf.ArchiveLocation)
	fmt.Printf(
		"Archived %v channels and %v threads (%v, %v exporter runs) in %v.\n",
		humanize.Comma(int64(res.Channels)), humanize.Comma(int64(res.Threads)),
		humanize.Bytes(uint64(res.Bytes)), res.Exports, res.Elapsed.Round(time.Second),
	)
	return nil
}
