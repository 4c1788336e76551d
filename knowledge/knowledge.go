// Package knowledge turns uploaded documents into knowledge sentences for a
// character.
package knowledge

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// ErrUnsupported is returned by FromFile for file types that are not text.
var ErrUnsupported = errors.New("unsupported file type")

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".json": true,
	".yml": true, ".yaml": true, ".csv": true,
}

// IsTextFile reports whether name has a plain-text extension.
func IsTextFile(name string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(name))]
}

var sentenceBreak = regexp.MustCompile(`[.!?]+`)

// FromText splits text on runs of sentence punctuation. Pieces are trimmed,
// empty pieces and pieces starting with "-" are dropped, and each sentence
// is terminated with a period.
func FromText(s string) []string {
	out := []string{}
	for _, piece := range sentenceBreak.Split(s, -1) {
		piece = strings.TrimSpace(piece)
		if piece == "" || strings.HasPrefix(piece, "-") {
			continue
		}
		out = append(out, piece+".")
	}
	return out
}

// FromFile extracts sentences from an uploaded file. Markdown is parsed so
// code and markup stay out of the knowledge.
func FromFile(name string, data []byte) ([]string, error) {
	if !IsTextFile(name) {
		return nil, ErrUnsupported
	}
	if strings.EqualFold(filepath.Ext(name), ".md") {
		return FromMarkdown(data), nil
	}
	return FromText(string(data)), nil
}

var (
	markdownParserInstance goldmark.Markdown
	markdownParserOnce     sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParserInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownParserInstance
}

// FromMarkdown collects the prose of each paragraph and list item and splits
// it into sentences. Headings, code blocks, HTML and tables are skipped.
func FromMarkdown(source []byte) []string {
	document := getMarkdownParser().Parser().Parse(text.NewReader(source))

	c := &collector{source: source, out: []string{}}
	ast.Walk(document, c.walk)
	return c.out
}

type collector struct {
	source []byte
	block  strings.Builder
	out    []string
}

func (c *collector) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindHeading, ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock,
		ast.KindImage, ast.KindRawHTML, extast.KindTable:
		return ast.WalkSkipChildren, nil

	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			c.block.Reset()
		} else {
			c.out = append(c.out, FromText(c.block.String())...)
			c.block.Reset()
		}

	case ast.KindText:
		if entering {
			t := node.(*ast.Text)
			c.block.Write(t.Segment.Value(c.source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				c.block.WriteByte(' ')
			}
		}

	case ast.KindString:
		if entering {
			c.block.Write(node.(*ast.String).Value)
		}
	}
	return ast.WalkContinue, nil
}
