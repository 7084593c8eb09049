package content

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Body formats accepted on post writes.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// ImageResolver maps a local image reference found in markdown to the URL
// it is served under. Returning an error leaves the reference untouched.
type ImageResolver func(dest string) (string, error)

var imageResolverKey = parser.NewContextKey()

type MarkdownRenderer struct {
	engine goldmark.Markdown
}

func NewMarkdownRenderer() *MarkdownRenderer {
	engine := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
			extension.Linkify,
			extension.TaskList,
			emoji.Emoji,
			highlighting.NewHighlighting(
				highlighting.WithStyle("solarized-dark"),
				highlighting.WithGuessLanguage(true),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(util.Prioritized(imageTransformer{}, 100)),
		),
	)
	return &MarkdownRenderer{engine: engine}
}

func (m *MarkdownRenderer) Render(source []byte) ([]byte, error) {
	return m.RenderWith(source, nil)
}

// RenderWith renders source, passing every local image destination
// through resolve when it is not nil.
func (m *MarkdownRenderer) RenderWith(source []byte, resolve ImageResolver) ([]byte, error) {
	var buf bytes.Buffer
	// html output is larger than markdown add 50% to the buffer
	buf.Grow(len(source) + (len(source) / 2))

	pc := parser.NewContext()
	if resolve != nil {
		pc.Set(imageResolverKey, resolve)
	}

	if err := m.engine.Convert(source, &buf, parser.WithContext(pc)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMDConversion, err)
	}

	return buf.Bytes(), nil
}

type imageTransformer struct{}

func (imageTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	resolve, ok := pc.Get(imageResolverKey).(ImageResolver)
	if !ok {
		return
	}

	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}

		dest := string(img.Destination)
		if alreadyServed(dest) {
			return ast.WalkContinue, nil
		}

		if url, err := resolve(dest); err == nil {
			img.Destination = []byte(url)
		}

		return ast.WalkContinue, nil
	})
}

func alreadyServed(s string) bool {
	s = strings.ToLower(s)

	for _, prefix := range []string{"http:", "https:", "ftp:", "ftps:", "sftp:", "data:", "//", "/"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
