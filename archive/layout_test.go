package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testHierarchy() (Layout, *Category, *Channel, *Thread) {
	l := Layout{
		Root:    "/srv/archive",
		BaseURL: "https://example.github.io/kg-archive",
	}

	cat := &Category{ID: 100, Name: "Main Plaza", InternalName: "main plaza"}
	ch := &Channel{ID: 200, Name: "the-grand-hall", Category: cat}
	t := &Thread{ID: 300, Name: "Opening night", Channel: ch}

	cat.Channels = []*Channel{ch}
	ch.Threads = []*Thread{t}
	return l, cat, ch, t
}

func TestLayoutPaths(t *testing.T) {
	l, cat, ch, th := testHierarchy()

	assert.Equal(t, filepath.FromSlash("/srv/archive/main plaza"), l.CategoryDir(cat))
	assert.Equal(t, filepath.FromSlash("/srv/archive/main plaza/main plaza.md"), l.CategoryIndex(cat))
	assert.Equal(t, filepath.FromSlash("/srv/archive/main plaza/200.html"), l.ChannelPage(ch))
	assert.Equal(t, filepath.FromSlash("/srv/archive/main plaza/200"), l.ThreadDir(ch))
	assert.Equal(t, filepath.FromSlash("/srv/archive/main plaza/200/300.html"), l.ThreadPage(th))
	assert.Equal(t, filepath.FromSlash("/srv/archive/README.md"), l.HomeIndex())
}

func TestLayoutURLs(t *testing.T) {
	l, cat, ch, th := testHierarchy()

	assert.Equal(t, "https://example.github.io/kg-archive/main%20plaza/main%20plaza", l.CategoryURL(cat))
	assert.Equal(t, "https://example.github.io/kg-archive/main%20plaza/200.html", l.ChannelURL(ch))
	assert.Equal(t, "https://example.github.io/kg-archive/main%20plaza/200/300.html", l.ThreadURL(th))
	assert.Equal(t, "https://example.github.io/kg-archive", l.HomeURL())

	// a trailing slash on the base URL doesn't double up
	l.BaseURL += "/"
	assert.Equal(t, "https://example.github.io/kg-archive/main%20plaza/200.html", l.ChannelURL(ch))
}

func TestLayoutURLEscaping(t *testing.T) {
	l := Layout{BaseURL: "https://example.com"}
	cat := &Category{InternalName: "q&a?#1"}
	assert.Equal(t, "https://example.com/q%26a%3F%231/q%26a%3F%231", l.CategoryURL(cat))

	cat.InternalName = "a+b=c$:@ é_~.-"
	assert.Equal(t, "https://example.com/a%2Bb%3Dc%24%3A%40%20%C3%A9_~.-/a%2Bb%3Dc%24%3A%40%20%C3%A9_~.-", l.CategoryURL(cat))
}

func TestProperName(t *testing.T) {
	testCases := []struct {
		name     string
		expected string
	}{
		{"the-grand-hall", "The Grand Hall"},
		{"general", "General"},
		{"OOC-chat", "Ooc Chat"},
		{"kg_lounge", "Kg_Lounge"},
		{"don't-panic", "Don'T Panic"},
		{"room-2b", "Room 2B"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ch := &Channel{Name: tc.name}
			assert.Equal(t, tc.expected, ch.ProperName())
		})
	}
}

func TestExportPattern(t *testing.T) {
	assert.Equal(t, filepath.FromSlash("/srv/archive/main/%c.html"), ExportPattern(filepath.FromSlash("/srv/archive/main")))
}
