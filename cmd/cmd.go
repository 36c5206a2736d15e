package cmd

import (
	"fmt"
	"os"

	"github.com/starshine-sys/archiver/cmd/archive"
	"github.com/starshine-sys/archiver/cmd/bot"
	"github.com/starshine-sys/archiver/cmd/exporter"
	"github.com/starshine-sys/archiver/cmd/preview"
	"github.com/starshine-sys/archiver/common"
	"github.com/starshine-sys/archiver/config"
	"github.com/urfave/cli/v2"
)

var app = &cli.App{
	Name:    "archiver",
	Usage:   "Discord bot that archives servers to static pages",
	Version: common.Version(),

	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the configuration file",
			EnvVars: []string{"CONFIG_PATH"},
			Value:   config.DefaultPath,
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "Enable debug logging",
			EnvVars: []string{"DEBUG_LOGGING"},
		},
		&cli.StringFlag{
			Name:    "log-file",
			Usage:   "Also write logs to this file",
			EnvVars: []string{"LOG_FILE"},
		},
	},
	Before: setupLogging,

	// running without a subcommand starts the bot
	Action: bot.Run,

	Commands: []*cli.Command{
		bot.Command,
		archive.Command,
		exporter.Command,
		preview.Command,
	},
}

func setupLogging(c *cli.Context) error {
	var paths []string
	if p := c.String("log-file"); p != "" {
		paths = append(paths, p)
	}

	// the logger isn't usable yet, so the error is printed by the cli package and the process exits
	err := common.InitLog(c.Bool("debug"), paths...)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error setting up logging: %v", err), 1)
	}
	return nil
}

func Run() error {
	return app.Run(os.Args)
}
