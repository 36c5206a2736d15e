package archive

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"emperror.dev/errors"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/starshine-sys/archiver/common"
	"github.com/starshine-sys/archiver/config"
	"go.uber.org/zap"
)

// Exporter exports the message history of a batch of channels or threads.
type Exporter interface {
	// Export exports all given channels. output is the exporter's output path template,
	// see ExportPattern. It blocks until the export is done.
	Export(ctx context.Context, ids []discord.ChannelID, output string) error
}

// CLIExporter runs the DiscordChatExporter command line tool.
type CLIExporter struct {
	// Path is the exporter executable, or a .dll to be run with dotnet.
	Path  string
	Token string

	Parallel   int
	Media      bool
	ReuseMedia bool
	ExtraArgs  []string

	Log *zap.SugaredLogger
}

var _ Exporter = (*CLIExporter)(nil)

// NewCLIExporter returns a CLIExporter running the executable at path with the configured options.
func NewCLIExporter(c config.Config, path string) *CLIExporter {
	return &CLIExporter{
		Path:       path,
		Token:      c.Auth.Token,
		Parallel:   c.Exporter.Parallel,
		Media:      c.Exporter.Media,
		ReuseMedia: c.Exporter.ReuseMedia,
		ExtraArgs:  c.Exporter.ExtraArgs,
		Log:        common.Log.Named("exporter"),
	}
}

// Args returns the arguments the exporter is called with, not including the executable.
func (e *CLIExporter) Args(ids []discord.ChannelID, output string) []string {
	args := []string{"export", "-t", e.Token, "-c"}
	for _, id := range ids {
		args = append(args, id.String())
	}

	args = append(args, "-o", output, "--utc")

	if e.Parallel > 0 {
		args = append(args, "--parallel", strconv.Itoa(e.Parallel))
	}

	if e.Media {
		args = append(args, "--media")
		if e.ReuseMedia {
			args = append(args, "--reuse-media")
		}
	}

	return append(args, e.ExtraArgs...)
}

// command returns the executable and full argument list for a run.
func (e *CLIExporter) command(args []string) (string, []string) {
	if strings.HasSuffix(strings.ToLower(e.Path), ".dll") {
		return "dotnet", append([]string{e.Path}, args...)
	}
	return e.Path, args
}

// Export runs the exporter once for all ids and waits for it to exit.
func (e *CLIExporter) Export(ctx context.Context, ids []discord.ChannelID, output string) error {
	if len(ids) == 0 {
		return nil
	}

	name, args := e.command(e.Args(ids, output))

	log := e.logger()
	log.Debugf("running %v %v", name, strings.Join(e.redact(args), " "))

	out := &lineLogger{log: log}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	out.Flush()
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "export cancelled")
		}
		return errors.Wrapf(err, "running exporter for %d channel(s)", len(ids))
	}

	log.Infof("exported %d channel(s) to %v", len(ids), output)
	return nil
}

func (e *CLIExporter) logger() *zap.SugaredLogger {
	if e.Log != nil {
		return e.Log
	}
	return zap.S()
}

// redact returns a copy of args with the token hidden, for logging.
func (e *CLIExporter) redact(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if e.Token != "" && arg == e.Token {
			arg = "[token]"
		}
		out[i] = arg
	}
	return out
}

// lineLogger logs everything written to it at debug level, one entry per line.
type lineLogger struct {
	log *zap.SugaredLogger

	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf.Write(p)
	for {
		i := bytes.IndexByte(l.buf.Bytes(), '\n')
		if i < 0 {
			break
		}

		line := strings.TrimSpace(string(l.buf.Next(i + 1)))
		if line != "" {
			l.log.Debug(line)
		}
	}
	return len(p), nil
}

// Flush logs any remaining partial line.
func (l *lineLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if line := strings.TrimSpace(l.buf.String()); line != "" {
		l.log.Debug(line)
	}
	l.buf.Reset()
}
