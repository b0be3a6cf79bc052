// Package web serves the single flashcard page.
package web

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	_ "embed"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"

	"github.com/starford/flashdeck/internal/session"
)

const defaultTitle = "Flashcards"

var (
	//go:embed templates/index.html
	indexTemplate string

	//go:embed help.md
	helpMarkdown []byte
)

// Help is the front matter of the help panel.
type Help struct {
	Title string   `yaml:"title"`
	Keys  []string `yaml:"keys"`
}

type pageContext struct {
	Title     string
	Columns   int
	HelpTitle string
	HelpHTML  template.HTML
	Keys      []string
	BoundKeys []string
}

// Page renders the single page once and serves the cached bytes.
type Page struct {
	body []byte
}

// NewPage renders the page for a gallery with the given number of columns.
func NewPage(title string, columns int) (*Page, error) {
	return newPage(title, columns, helpMarkdown)
}

func newPage(title string, columns int, help []byte) (*Page, error) {
	if title == "" {
		title = defaultTitle
	}
	if columns <= 0 {
		columns = 8
	}

	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("cannot parse page template: %w", err)
	}

	meta, helpHTML, err := RenderHelp(help)
	if err != nil {
		return nil, err
	}
	if meta.Title == "" {
		meta.Title = "Help"
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, pageContext{
		Title:     title,
		Columns:   columns,
		HelpTitle: meta.Title,
		HelpHTML:  helpHTML,
		Keys:      meta.Keys,
		BoundKeys: session.BoundKeys(),
	}); err != nil {
		return nil, fmt.Errorf("cannot build page: %w", err)
	}
	return &Page{body: buf.Bytes()}, nil
}

// RenderHelp converts help markdown to HTML and decodes its front matter.
func RenderHelp(src []byte) (Help, template.HTML, error) {
	md := goldmark.New(
		goldmark.WithExtensions(&frontmatter.Extender{}),
		goldmark.WithRendererOptions(html.WithXHTML()),
	)

	ctx := parser.NewContext()
	var buf bytes.Buffer
	if err := md.Convert(src, &buf, parser.WithContext(ctx)); err != nil {
		return Help{}, "", fmt.Errorf("cannot convert help markdown: %w", err)
	}

	var meta Help
	if fm := frontmatter.Get(ctx); fm != nil {
		if err := fm.Decode(&meta); err != nil {
			return Help{}, "", fmt.Errorf("cannot decode help front matter: %w", err)
		}
	}
	return meta, template.HTML(buf.String()), nil
}

// ServeHTTP writes the page.
func (p *Page) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(p.body); err != nil {
		slog.Debug("page write failed", slog.String("error", err.Error()))
	}
}
