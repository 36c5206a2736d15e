package archive

import (
	"fmt"
	"html"
	"os"
	"strings"

	"emperror.dev/errors"
	"github.com/russross/blackfriday/v2"
)

// linkTextEscaper escapes names so they can't end a link early or be read as raw HTML.
var linkTextEscaper = strings.NewReplacer(`[`, `\[`, `]`, `\]`, `<`, `\<`, `>`, `\>`, `&`, `\&`)

// htmlRenderer drops raw HTML in the Markdown, only Markdown syntax is rendered.
func htmlRenderer() blackfriday.Renderer {
	return blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML,
	})
}

// CategoryTitle returns the heading of a category's index page.
func CategoryTitle(name string, season int) string {
	if season > 0 {
		return fmt.Sprintf("Season %d - %s", season, name)
	}
	return name
}

// RenderCategoryIndex renders the Markdown index of a single category, listing its channels and their threads.
func RenderCategoryIndex(l Layout, cat *Category, season int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\nAll Locations:\n", CategoryTitle(cat.Name, season))
	for _, ch := range cat.Channels {
		fmt.Fprintf(&b, "* [%s](%s)\n", linkTextEscaper.Replace(ch.ProperName()), l.ChannelURL(ch))

		for _, t := range ch.Threads {
			fmt.Fprintf(&b, "  * [%s](%s)\n", linkTextEscaper.Replace(t.Name), l.ThreadURL(t))
		}
	}
	fmt.Fprintf(&b, "\n[Back to Home](%s)", l.HomeURL())

	return b.String()
}

// RenderHomeIndex renders the top-level Markdown index, listing every category.
func RenderHomeIndex(l Layout, cats []*Category) string {
	var b strings.Builder

	b.WriteString("# Home Page\n\nAll Categories:\n")
	for _, cat := range cats {
		fmt.Fprintf(&b, "* [%s](%s)\n", linkTextEscaper.Replace(cat.Name), l.CategoryURL(cat))
	}

	return b.String()
}

// RenderHTML renders a Markdown index page as a standalone HTML document.
func RenderHTML(title, markdown string) []byte {
	body := blackfriday.Run([]byte(markdown), blackfriday.WithRenderer(htmlRenderer()))

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("</head>\n<body>\n")
	b.Write(body)
	b.WriteString("</body>\n</html>\n")

	return []byte(b.String())
}

// HTMLPath returns the path the HTML rendering of the index at path is written to.
// The home index becomes index.html, so it is served for the base URL.
func HTMLPath(path string) string {
	if strings.HasSuffix(path, HomeIndexName) {
		return strings.TrimSuffix(path, HomeIndexName) + "index.html"
	}
	return strings.TrimSuffix(path, ".md") + ".html"
}

// writeIndex writes a Markdown index, and its HTML rendering if renderHTML is true.
func writeIndex(path, title, markdown string, renderHTML bool) error {
	err := os.WriteFile(path, []byte(markdown), 0o644)
	if err != nil {
		return errors.Wrap(err, "writing index")
	}

	if !renderHTML {
		return nil
	}

	err = os.WriteFile(HTMLPath(path), RenderHTML(title, markdown), 0o644)
	if err != nil {
		return errors.Wrap(err, "writing html index")
	}
	return nil
}
