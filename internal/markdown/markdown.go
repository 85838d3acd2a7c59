// Package markdown renders preprocessed document source to HTML with goldmark.
package markdown

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/docvars/internal/plugin"
)

// Name is the registered renderer name.
const Name = "html"

// Options controls how Markdown is parsed and rendered.
type Options struct {
	// UnsafeHTML passes raw HTML blocks through instead of omitting them.
	UnsafeHTML bool
}

// Renderer converts Markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	plugin.BasePlugin
	md goldmark.Markdown
}

// NewRenderer creates a GFM renderer with automatic heading IDs.
func NewRenderer(opts Options) *Renderer {
	var rendererOpts []goldmark.Option
	if opts.UnsafeHTML {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(gmhtml.WithUnsafe()))
	}
	md := goldmark.New(append([]goldmark.Option{
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	}, rendererOpts...)...)
	return &Renderer{md: md}
}

// Metadata returns the plugin metadata for the HTML renderer.
func (r *Renderer) Metadata() plugin.PluginMetadata {
	return plugin.PluginMetadata{
		Name:         Name,
		Version:      "v1.0.0",
		Type:         plugin.PluginTypeRenderer,
		Description:  "Renders Markdown source to HTML pages with goldmark",
		Author:       "docvars",
		Capabilities: []string{string(plugin.CapabilityConcurrent)},
	}
}

// Render converts a Markdown body to an HTML fragment.
func (r *Renderer) Render(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// Page renders body and wraps it in a standalone HTML document. The title is
// the first heading, or fallback when the document has none.
func (r *Renderer) Page(body []byte, fallback string) ([]byte, error) {
	content, err := r.Render(body)
	if err != nil {
		return nil, err
	}
	title := r.Title(body)
	if title == "" {
		title = fallback
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("</head>\n<body>\n")
	b.Write(content)
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String()), nil
}

// Title returns the plain text of the first heading in body.
func (r *Renderer) Title(body []byte) string {
	root := r.md.Parser().Parse(text.NewReader(body))

	var title string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if heading, ok := n.(*gmast.Heading); ok {
			title = plainText(heading, body)
			return gmast.WalkStop, nil
		}
		return gmast.WalkContinue, nil
	})
	return strings.TrimSpace(title)
}

func plainText(n gmast.Node, source []byte) string {
	var b strings.Builder
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := c.(type) {
		case *gmast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *gmast.String:
			b.Write(node.Value)
		}
		return gmast.WalkContinue, nil
	})
	return b.String()
}

func init() {
	if err := plugin.Register(NewRenderer(Options{})); err != nil {
		_ = err
	}
}
