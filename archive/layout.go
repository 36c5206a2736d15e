package archive

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/diamondburned/arikawa/v3/discord"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// HomeIndexName is the file name of the top-level index.
const HomeIndexName = "README.md"

// Layout maps the category/channel/thread hierarchy onto the archive directory and the published website.
type Layout struct {
	// Root is the archive directory.
	Root string
	// BaseURL is the URL Root is published at.
	BaseURL string
}

// Category is an archived category.
type Category struct {
	ID           discord.ChannelID
	Name         string
	InternalName string

	Channels []*Channel
}

// Channel is an archived text channel.
type Channel struct {
	ID       discord.ChannelID
	Name     string
	Category *Category

	Threads []*Thread
}

// Thread is an archived thread.
type Thread struct {
	ID      discord.ChannelID
	Name    string
	Channel *Channel
}

// ProperName returns the channel name as a title, "the-grand-hall" becomes "The Grand Hall".
// Every run of letters is a word, so "kg_lounge" becomes "Kg_Lounge".
func (ch *Channel) ProperName() string {
	return titleWords(strings.ReplaceAll(ch.Name, "-", " "))
}

func titleWords(s string) string {
	// Casers are stateful, so one can't be shared between concurrent archive runs
	caser := cases.Title(language.English)

	var b strings.Builder
	start := -1
	for i, r := range s {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}

		if start >= 0 {
			b.WriteString(caser.String(s[start:i]))
			start = -1
		}
		b.WriteRune(r)
	}
	if start >= 0 {
		b.WriteString(caser.String(s[start:]))
	}
	return b.String()
}

// CategoryDir is the directory a category's channel pages are exported to.
func (l Layout) CategoryDir(cat *Category) string {
	return filepath.Join(l.Root, cat.InternalName)
}

// CategoryIndex is the path of a category's Markdown index.
func (l Layout) CategoryIndex(cat *Category) string {
	return filepath.Join(l.CategoryDir(cat), cat.InternalName+".md")
}

// CategoryURL links to a category's index page. The extension is left off so
// static site hosts can serve whichever rendering of the index they have.
func (l Layout) CategoryURL(cat *Category) string {
	return l.url(cat.InternalName, cat.InternalName)
}

// ChannelPage is the path of a channel's exported page.
func (l Layout) ChannelPage(ch *Channel) string {
	return filepath.Join(l.CategoryDir(ch.Category), ch.ID.String()+".html")
}

// ChannelURL links to a channel's exported page.
func (l Layout) ChannelURL(ch *Channel) string {
	return l.url(ch.Category.InternalName, ch.ID.String()+".html")
}

// ThreadDir is the directory a channel's threads are exported to.
func (l Layout) ThreadDir(ch *Channel) string {
	return strings.TrimSuffix(l.ChannelPage(ch), ".html")
}

// ThreadPage is the path of a thread's exported page.
func (l Layout) ThreadPage(t *Thread) string {
	return filepath.Join(l.ThreadDir(t.Channel), t.ID.String()+".html")
}

// ThreadURL links to a thread's exported page.
func (l Layout) ThreadURL(t *Thread) string {
	return l.url(t.Channel.Category.InternalName, t.Channel.ID.String(), t.ID.String()+".html")
}

// HomeIndex is the path of the top-level index.
func (l Layout) HomeIndex() string {
	return filepath.Join(l.Root, HomeIndexName)
}

// HomeURL links to the top-level index.
func (l Layout) HomeURL() string {
	return l.BaseURL
}

// ExportPattern returns the exporter output template for pages written to dir.
// %c is replaced with the channel ID by the exporter.
func ExportPattern(dir string) string {
	return filepath.Join(dir, "%c.html")
}

// url joins the escaped path segments onto the base URL.
func (l Layout) url(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = escapeSegment(s)
	}

	return strings.TrimSuffix(l.BaseURL, "/") + "/" + strings.Join(escaped, "/")
}

// escapeSegment percent-encodes everything but letters, digits and "-._~".
func escapeSegment(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return c == '-' || c == '.' || c == '_' || c == '~'
}
