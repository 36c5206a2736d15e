package bot

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"emperror.dev/errors"
	"github.com/diamondburned/arikawa/v3/utils/ws"
	"github.com/getsentry/sentry-go"
	"github.com/starshine-sys/archiver/archive"
	"github.com/starshine-sys/archiver/bot"
	"github.com/starshine-sys/archiver/common"
	"github.com/starshine-sys/archiver/config"
	"github.com/starshine-sys/archiver/exporter"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var Command = &cli.Command{
	Name:   "bot",
	Usage:  "Run the bot",
	Action: Run,
}

func Run(c *cli.Context) (err error) {
	conf, err := config.Read(c.String("config"))
	if err != nil {
		return errors.Wrap(err, "reading config")
	}

	err = conf.ValidateAuth()
	if err != nil {
		return errors.Wrap(err, "reading environment")
	}

	desugared := common.Log.Desugar()

	ws.WSDebug = common.Log.Named("ws").Debug
	ws.WSError = func(err error) {
		desugared.WithOptions(zap.AddCallerSkip(1)).Sugar().Named("ws").Error(err)
	}

	// set up logger for this section
	log := common.Log.Named("init")

	// sentry, if enabled
	var hub *sentry.Hub
	if conf.Auth.Sentry != "" {
		err = sentry.Init(sentry.ClientOptions{
			Dsn:     conf.Auth.Sentry,
			Release: common.Version(),
		})
		if err != nil {
			return errors.Wrap(err, "initing Sentry")
		}
		hub = sentry.CurrentHub()
		defer sentry.Flush(2 * time.Second)
	} else {
		log.Debugf("Sentry DSN was not provided, not setting it up")
	}

	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer cancel()

	path, err := exporter.Path(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "setting up exporter")
	}
	log.Infof("Using exporter at %v", path)

	b, err := bot.New(ctx, conf, archive.NewCLIExporter(conf, path), hub)
	if err != nil {
		return errors.Wrap(err, "creating bot")
	}

	err = b.Open(ctx)
	if err != nil {
		return err
	}

	// Defer this to make sure that things are always cleanly shutdown even in the event of a crash
	defer func() {
		err := b.Close()
		if err != nil {
			log.Errorf("Error closing gateway connection: %v", err)
		}
		log.Info("Disconnected from Discord.")
	}()

	log.Info("Connected to Discord. Press Ctrl-C or send an interrupt signal to stop.")

	<-ctx.Done()

	log.Infof("Interrupt signal received. Shutting down...")
	return nil
}
