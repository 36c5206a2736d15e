package preview

import (
	"os"
	"os/signal"
	"syscall"

	"emperror.dev/errors"
	"github.com/starshine-sys/archiver/common"
	"github.com/starshine-sys/archiver/config"
	"github.com/starshine-sys/archiver/web/preview"
	"github.com/urfave/cli/v2"
)

var Command = &cli.Command{
	Name:   "preview",
	Usage:  "Serve the archive directory locally",
	Action: run,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Aliases: []string{"a"},
			Usage:   "Address to listen on",
			EnvVars: []string{"PREVIEW_ADDR"},
			Value:   "localhost:8080",
		},
	},
}

func run(c *cli.Context) error {
	conf, err := config.Read(c.String("config"))
	if err != nil {
		return errors.Wrap(err, "reading config")
	}

	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer cancel()

	addr := c.String("addr")
	common.Log.Infof("Links in the archive point to %v, set WEBSITE_BASE=http://%v/ to follow them locally", conf.BaseURL(), addr)

	return preview.New(conf.ArchiveLocation, conf.GithubName).ListenAndServe(ctx, addr)
}
