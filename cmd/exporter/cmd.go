package exporter

import (
	"fmt"

	"emperror.dev/errors"
	"github.com/starshine-sys/archiver/config"
	"github.com/starshine-sys/archiver/exporter"
	"github.com/urfave/cli/v2"
)

var Command = &cli.Command{
	Name:   "exporter",
	Usage:  "Show the installed exporter version, or install the latest one",
	Action: run,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "update",
			Aliases: []string{"u"},
			Usage:   "Install or update the exporter",
		},
	},
}

func run(c *cli.Context) error {
	conf, err := config.Read(c.String("config"))
	if err != nil {
		return errors.Wrap(err, "reading config")
	}

	if conf.Exporter.Path != "" {
		fmt.Printf("Using the exporter at %v, set in the config file.\n", conf.Exporter.Path)
		return nil
	}

	i := exporter.New(conf.Exporter.InstallDir)

	if c.Bool("update") {
		_, err = i.Ensure(c.Context)
		if err != nil {
			return errors.Wrap(err, "updating exporter")
		}
	}

	installed, err := i.InstalledVersion(c.Context)
	if err != nil {
		return err
	}

	if installed == "" {
		fmt.Printf("No exporter installed in %v. Use --update to install it.\n", conf.Exporter.InstallDir)
		return nil
	}

	latest, err := i.LatestVersion(c.Context)
	if err != nil {
		fmt.Printf("Installed: %v (couldn't check for updates: %v)\n", installed, err)
		return nil
	}

	fmt.Printf("Installed: %v\nLatest: %v\n", installed, latest)
	return nil
}
