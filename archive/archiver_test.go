package archive

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"emperror.dev/errors"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/starshine-sys/archiver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testGuild discord.GuildID = 1

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

type fakeSource struct {
	channels []discord.Channel
	active   []ThreadInfo
	public   map[discord.ChannelID][]ThreadInfo
	private  map[discord.ChannelID][]ThreadInfo

	mu       sync.Mutex
	reopened []discord.ChannelID
}

func (s *fakeSource) Channel(_ context.Context, id discord.ChannelID) (*discord.Channel, error) {
	for _, ch := range s.channels {
		if ch.ID == id {
			ch := ch
			return &ch, nil
		}
	}
	return nil, errors.New("unknown channel")
}

func (s *fakeSource) Channels(context.Context, discord.GuildID) ([]discord.Channel, error) {
	return s.channels, nil
}

func (s *fakeSource) ActiveThreads(context.Context, discord.GuildID) ([]ThreadInfo, error) {
	return s.active, nil
}

func (s *fakeSource) ArchivedThreads(_ context.Context, id discord.ChannelID, private bool) ([]ThreadInfo, error) {
	if private {
		return s.private[id], nil
	}
	return s.public[id], nil
}

func (s *fakeSource) ReopenThread(_ context.Context, id discord.ChannelID) error {
	s.mu.Lock()
	s.reopened = append(s.reopened, id)
	s.mu.Unlock()
	return nil
}

type export struct {
	IDs    []discord.ChannelID
	Output string
}

type fakeExporter struct {
	exports []export
	err     error
}

func (e *fakeExporter) Export(_ context.Context, ids []discord.ChannelID, output string) error {
	if e.err != nil {
		return e.err
	}

	e.exports = append(e.exports, export{IDs: ids, Output: output})
	return nil
}

// testServer has two categories: "plaza" with two text channels (one with threads) and a voice channel,
// and "rooms" with a single channel without threads.
func testServer() *fakeSource {
	return &fakeSource{
		channels: []discord.Channel{
			{ID: 10, GuildID: testGuild, Type: discord.GuildCategory, Name: "Plaza", Position: 0},
			{ID: 11, GuildID: testGuild, Type: discord.GuildText, ParentID: 10, Name: "grand-hall", Position: 0},
			{ID: 12, GuildID: testGuild, Type: discord.GuildText, ParentID: 10, Name: "fountain", Position: 1},
			{ID: 13, GuildID: testGuild, Type: discord.GuildVoice, ParentID: 10, Name: "voice", Position: 2},
			{ID: 20, GuildID: testGuild, Type: discord.GuildCategory, Name: "Rooms", Position: 1},
			{ID: 21, GuildID: testGuild, Type: discord.GuildText, ParentID: 20, Name: "room-one", Position: 0},
			{ID: 30, GuildID: 2, Type: discord.GuildCategory, Name: "Elsewhere"},
		},
		active: []ThreadInfo{
			{ID: 111, Name: "Active thread", ParentID: 11},
			{ID: 999, Name: "Other channel", ParentID: 50},
		},
		public: map[discord.ChannelID][]ThreadInfo{
			11: {
				{ID: 112, Name: "Old thread", ParentID: 11, Archived: true},
				// also returned as active, must not be listed twice
				{ID: 111, Name: "Active thread", ParentID: 11},
			},
		},
		private: map[discord.ChannelID][]ThreadInfo{
			11: {{ID: 113, Name: "Secret thread", ParentID: 11, Archived: true}},
		},
	}
}

func testConfig(root string) config.Config {
	c := config.Default()
	c.ArchiveLocation = root
	c.WebsiteBase = "https://example.github.io/"
	c.GithubName = "archive"
	c.Categories = []config.Category{
		{ID: 10, Name: "The Plaza", InternalName: "plaza"},
		{ID: 20, Name: "Rooms", InternalName: "rooms"},
	}
	return c
}

func newTestArchiver(root string, src Source, exp Exporter) *Archiver {
	a := New(testConfig(root), src, exp)
	a.Log = testLogger()
	return a
}

func TestArchiverRun(t *testing.T) {
	root := t.TempDir()
	exp := &fakeExporter{}
	a := newTestArchiver(root, testServer(), exp)

	var progress []string
	res, err := a.Run(context.Background(), testGuild, testConfig(root).Categories, Options{
		Progress: func(r CategoryResult) {
			progress = append(progress, r.Category.InternalName)
			assert.Equal(t, 2, r.Total)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"plaza", "rooms"}, progress)
	assert.Equal(t, 3, res.Channels)
	assert.Equal(t, 3, res.Threads)
	assert.Equal(t, 3, res.Exports)
	require.Len(t, res.Categories, 2)

	// threads are exported before their category, in one batch per channel
	assert.Equal(t, []export{
		{IDs: []discord.ChannelID{111, 112, 113}, Output: filepath.Join(root, "plaza", "11", "%c.html")},
		{IDs: []discord.ChannelID{11, 12}, Output: filepath.Join(root, "plaza", "%c.html")},
		{IDs: []discord.ChannelID{21}, Output: filepath.Join(root, "rooms", "%c.html")},
	}, exp.exports)

	assert.DirExists(t, filepath.Join(root, "plaza", "11"))
	assert.NoDirExists(t, filepath.Join(root, "plaza", "12"))

	index, err := os.ReadFile(filepath.Join(root, "plaza", "plaza.md"))
	require.NoError(t, err)
	assert.Equal(t, "# The Plaza\n\nAll Locations:\n"+
		"* [Grand Hall](https://example.github.io/archive/plaza/11.html)\n"+
		"  * [Active thread](https://example.github.io/archive/plaza/11/111.html)\n"+
		"  * [Old thread](https://example.github.io/archive/plaza/11/112.html)\n"+
		"  * [Secret thread](https://example.github.io/archive/plaza/11/113.html)\n"+
		"* [Fountain](https://example.github.io/archive/plaza/12.html)\n"+
		"\n[Back to Home](https://example.github.io/archive)", string(index))

	home, err := os.ReadFile(filepath.Join(root, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Home Page\n\nAll Categories:\n"+
		"* [The Plaza](https://example.github.io/archive/plaza/plaza)\n"+
		"* [Rooms](https://example.github.io/archive/rooms/rooms)\n", string(home))

	assert.Positive(t, res.Bytes)
	assert.NoFileExists(t, filepath.Join(root, "index.html"))
}

func TestArchiverRunTwice(t *testing.T) {
	root := t.TempDir()
	a := newTestArchiver(root, testServer(), &fakeExporter{})

	_, err := a.Run(context.Background(), testGuild, testConfig(root).Categories, Options{})
	require.NoError(t, err)

	// existing directories are reused
	_, err = a.Run(context.Background(), testGuild, testConfig(root).Categories, Options{})
	require.NoError(t, err)
}

func TestArchiverRunHTML(t *testing.T) {
	root := t.TempDir()
	a := newTestArchiver(root, testServer(), &fakeExporter{})
	a.RenderHTML = true

	_, err := a.Run(context.Background(), testGuild, testConfig(root).Categories, Options{})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, "index.html"))
	assert.FileExists(t, filepath.Join(root, "plaza", "plaza.html"))
	assert.FileExists(t, filepath.Join(root, "rooms", "rooms.html"))
}

func TestArchiverRunDryRun(t *testing.T) {
	root := t.TempDir()
	exp := &fakeExporter{err: errors.New("should not be called")}
	a := newTestArchiver(root, testServer(), exp)

	res, err := a.Run(context.Background(), testGuild, testConfig(root).Categories, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Exports)
	assert.Equal(t, 3, res.Threads)
	assert.FileExists(t, filepath.Join(root, "plaza", "plaza.md"))
}

func TestArchiverRunSeason(t *testing.T) {
	root := t.TempDir()
	a := newTestArchiver(root, testServer(), &fakeExporter{})
	a.Season = 5

	_, err := a.Run(context.Background(), testGuild, testConfig(root).Categories[1:], Options{})
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(root, "rooms", "rooms.md"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "# Season 5 - Rooms\n")
}

func TestArchiverRunCategoryNotFound(t *testing.T) {
	root := t.TempDir()
	a := newTestArchiver(root, testServer(), &fakeExporter{})

	testCases := []struct {
		name string
		id   discord.ChannelID
	}{
		{"missing", 404},
		{"not a category", 11},
		{"other guild", 30},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cats := []config.Category{{ID: tc.id, Name: "Missing", InternalName: "missing"}}

			_, err := a.Run(context.Background(), testGuild, cats, Options{})
			assert.ErrorIs(t, err, ErrCategoryNotFound)
			assert.NoDirExists(t, filepath.Join(root, "missing"))
		})
	}
}

func TestArchiverRunExportError(t *testing.T) {
	root := t.TempDir()
	a := newTestArchiver(root, testServer(), &fakeExporter{err: errors.New("exporter crashed")})

	_, err := a.Run(context.Background(), testGuild, testConfig(root).Categories, Options{})
	assert.ErrorContains(t, err, "exporter crashed")
	assert.NoFileExists(t, filepath.Join(root, "README.md"))
}

func TestArchiverRunCancelled(t *testing.T) {
	root := t.TempDir()
	a := newTestArchiver(root, testServer(), &fakeExporter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Run(ctx, testGuild, testConfig(root).Categories, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchiverUnarchive(t *testing.T) {
	src := testServer()
	a := newTestArchiver(t.TempDir(), src, &fakeExporter{})

	n, err := a.Unarchive(context.Background(), testGuild, testConfig("").Categories)
	require.NoError(t, err)

	// only archived public threads are reopened
	assert.Equal(t, 2, n)
	assert.Equal(t, []discord.ChannelID{112, 111}, src.reopened)
}
