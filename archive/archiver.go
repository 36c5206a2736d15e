// Package archive maps a server's category/channel/thread hierarchy onto an archive directory,
// runs the exporter over it, and writes Markdown indexes linking everything together.
package archive

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"emperror.dev/errors"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/starshine-sys/archiver/common"
	"github.com/starshine-sys/archiver/config"
	"go.uber.org/zap"
)

// ErrCategoryNotFound is returned if a configured category doesn't exist in the guild.
const ErrCategoryNotFound = errors.Sentinel("category not found")

// Archiver archives configured categories.
type Archiver struct {
	Layout   Layout
	Source   Source
	Exporter Exporter

	// Season is prefixed to category index titles if non-zero.
	Season int
	// RenderHTML also writes HTML versions of the indexes.
	RenderHTML bool

	Log *zap.SugaredLogger
}

// New returns an Archiver for the given config.
func New(c config.Config, src Source, exp Exporter) *Archiver {
	return &Archiver{
		Layout: Layout{
			Root:    c.ArchiveLocation,
			BaseURL: c.BaseURL(),
		},
		Source:     src,
		Exporter:   exp,
		Season:     c.Season,
		RenderHTML: c.Index.RenderHTML,
		Log:        common.Log.Named("archive"),
	}
}

// Options change how a single run behaves.
type Options struct {
	// DryRun skips the exporter, only the directories and indexes are written.
	DryRun bool
	// Progress is called after every finished category.
	Progress func(CategoryResult)
}

// CategoryResult is the outcome of archiving a single category.
type CategoryResult struct {
	Category *Category
	Index    int
	Total    int
}

// Result is the outcome of a full run.
type Result struct {
	Categories []*Category

	Channels int
	Threads  int
	Exports  int
	// Bytes is the total size of the archive directory after the run.
	Bytes   int64
	Elapsed time.Duration
}

// Run archives every category in cats, in order, then writes the home index.
func (a *Archiver) Run(ctx context.Context, guildID discord.GuildID, cats []config.Category, opts Options) (*Result, error) {
	start := time.Now()
	res := &Result{}

	err := os.MkdirAll(a.Layout.Root, 0o755)
	if err != nil {
		return nil, errors.Wrap(err, "creating archive directory")
	}

	channels, err := a.Source.Channels(ctx, guildID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching channels")
	}

	active, err := a.Source.ActiveThreads(ctx, guildID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching active threads")
	}

	for i, conf := range cats {
		cat, err := a.category(ctx, guildID, conf, channels, active, opts, res)
		if err != nil {
			return nil, errors.WithDetails(err, "category", conf.InternalName)
		}
		res.Categories = append(res.Categories, cat)

		if opts.Progress != nil {
			opts.Progress(CategoryResult{Category: cat, Index: i, Total: len(cats)})
		}
	}

	err = writeIndex(a.Layout.HomeIndex(), "Home Page", RenderHomeIndex(a.Layout, res.Categories), a.RenderHTML)
	if err != nil {
		return nil, errors.Wrap(err, "writing home index")
	}

	res.Bytes, err = dirSize(a.Layout.Root)
	if err != nil {
		a.Log.Warnf("error calculating archive size: %v", err)
	}
	res.Elapsed = time.Since(start)

	a.Log.Infof("archived %d categories, %d channels and %d threads in %v",
		len(res.Categories), res.Channels, res.Threads, res.Elapsed.Round(time.Second))
	return res, nil
}

func (a *Archiver) category(
	ctx context.Context,
	guildID discord.GuildID,
	conf config.Category,
	channels []discord.Channel,
	active []ThreadInfo,
	opts Options,
	res *Result,
) (*Category, error) {
	err := a.resolveCategory(ctx, guildID, conf.ID)
	if err != nil {
		return nil, err
	}

	cat := &Category{
		ID:           conf.ID,
		Name:         conf.Name,
		InternalName: conf.InternalName,
	}

	err = os.MkdirAll(a.Layout.CategoryDir(cat), 0o755)
	if err != nil {
		return nil, errors.Wrap(err, "creating category directory")
	}

	for _, dch := range common.CategoryTextChannels(channels, cat.ID) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ch := &Channel{
			ID:       dch.ID,
			Name:     dch.Name,
			Category: cat,
		}

		threads, err := a.threads(ctx, ch.ID, active)
		if err != nil {
			return nil, errors.WithDetails(err, "channel", ch.ID)
		}

		if len(threads) > 0 {
			err = os.MkdirAll(a.Layout.ThreadDir(ch), 0o755)
			if err != nil {
				return nil, errors.Wrap(err, "creating thread directory")
			}

			ids := make([]discord.ChannelID, 0, len(threads))
			for _, t := range threads {
				ch.Threads = append(ch.Threads, &Thread{ID: t.ID, Name: t.Name, Channel: ch})
				ids = append(ids, t.ID)
			}

			err = a.export(ctx, ids, ExportPattern(a.Layout.ThreadDir(ch)), opts, res)
			if err != nil {
				return nil, errors.Wrap(err, "exporting threads")
			}
		}

		cat.Channels = append(cat.Channels, ch)
		res.Channels++
		res.Threads += len(ch.Threads)
	}

	ids := make([]discord.ChannelID, 0, len(cat.Channels))
	for _, ch := range cat.Channels {
		ids = append(ids, ch.ID)
	}

	err = a.export(ctx, ids, ExportPattern(a.Layout.CategoryDir(cat)), opts, res)
	if err != nil {
		return nil, errors.Wrap(err, "exporting channels")
	}

	err = writeIndex(
		a.Layout.CategoryIndex(cat),
		CategoryTitle(cat.Name, a.Season),
		RenderCategoryIndex(a.Layout, cat, a.Season),
		a.RenderHTML,
	)
	if err != nil {
		return nil, errors.Wrap(err, "writing category index")
	}

	a.Log.Infof("archived category %v with %d channels", cat.Name, len(cat.Channels))
	return cat, nil
}

// resolveCategory checks that id is a category in the guild.
func (a *Archiver) resolveCategory(ctx context.Context, guildID discord.GuildID, id discord.ChannelID) error {
	ch, err := a.Source.Channel(ctx, id)
	if err != nil {
		return errors.Wrapf(ErrCategoryNotFound, "fetching %v: %v", id, err)
	}

	if ch.Type != discord.GuildCategory || ch.GuildID != guildID {
		return errors.Wrapf(ErrCategoryNotFound, "%v is not a category in %v", id, guildID)
	}
	return nil
}

// threads returns all threads in a channel: active ones first, then archived public and private threads.
func (a *Archiver) threads(ctx context.Context, channelID discord.ChannelID, active []ThreadInfo) ([]ThreadInfo, error) {
	seen := common.NewSet[discord.ChannelID]()

	var threads []ThreadInfo
	add := func(ts []ThreadInfo) {
		for _, t := range ts {
			if t.ParentID == channelID && seen.Add(t.ID) {
				threads = append(threads, t)
			}
		}
	}

	add(active)

	for _, private := range []bool{false, true} {
		archived, err := a.Source.ArchivedThreads(ctx, channelID, private)
		if err != nil {
			return nil, err
		}
		add(archived)
	}

	return threads, nil
}

func (a *Archiver) export(ctx context.Context, ids []discord.ChannelID, output string, opts Options, res *Result) error {
	if len(ids) == 0 {
		return nil
	}

	if opts.DryRun {
		a.Log.Debugf("dry run, not exporting %d channel(s) to %v", len(ids), output)
		return nil
	}

	err := a.Exporter.Export(ctx, ids, output)
	if err != nil {
		return err
	}
	res.Exports++
	return nil
}

// Unarchive reopens and joins every archived public thread in the configured categories,
// so they show up for the exporter. It returns the number of reopened threads.
func (a *Archiver) Unarchive(ctx context.Context, guildID discord.GuildID, cats []config.Category) (n int, err error) {
	channels, err := a.Source.Channels(ctx, guildID)
	if err != nil {
		return 0, errors.Wrap(err, "fetching channels")
	}

	for _, conf := range cats {
		err = a.resolveCategory(ctx, guildID, conf.ID)
		if err != nil {
			return n, errors.WithDetails(err, "category", conf.InternalName)
		}

		for _, ch := range common.CategoryTextChannels(channels, conf.ID) {
			archived, err := a.Source.ArchivedThreads(ctx, ch.ID, false)
			if err != nil {
				return n, errors.WithDetails(err, "channel", ch.ID)
			}

			for _, t := range archived {
				if err := ctx.Err(); err != nil {
					return n, err
				}

				err = a.Source.ReopenThread(ctx, t.ID)
				if err != nil {
					return n, errors.WithDetails(err, "thread", t.ID)
				}
				n++
			}
		}
	}

	a.Log.Infof("reopened %d threads", n)
	return n, nil
}

// dirSize returns the total size of all files under root.
func dirSize(root string) (size int64, err error) {
	err = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	return size, err
}
