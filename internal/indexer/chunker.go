package indexer

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"policy-rag/internal/policy"
)

const (
	// maxChunkTokens bounds the whitespace token count of a chunk,
	// sized for the embedding model's context window.
	maxChunkTokens = 500
	// minSectionRunes drops near-empty sections such as bare cross-links.
	minSectionRunes = 20
)

// MarkdownChunker cuts policy documents into section chunks using
// goldmark AST parsing. H2 headings open top-level sections, H3 headings
// open subsections, and deeper headings fold into the enclosing body.
type MarkdownChunker struct {
	parser goldmark.Markdown
}

// NewMarkdownChunker creates a new markdown chunker.
func NewMarkdownChunker() *MarkdownChunker {
	return &MarkdownChunker{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// ChunkDocument parses markdown content and returns the chunks plus the
// number of sections skipped for being too short. Intro text before the
// first H2 belongs to no section and is dropped.
func (c *MarkdownChunker) ChunkDocument(content []byte) (chunks []Chunk, skipped int, err error) {
	chunks = []Chunk{}
	if len(content) == 0 {
		return chunks, 0, nil
	}

	chunkIndex := 0
	for _, sec := range c.extractSections(content) {
		body := strings.TrimSpace(strings.Join(sec.blocks, "\n\n"))
		if utf8.RuneCountInString(body) < minSectionRunes {
			skipped++
			continue
		}

		path := joinHierarchy(sec.hierarchy)
		for _, chunkText := range packSection(path, body) {
			chunks = append(chunks, Chunk{
				Index:   chunkIndex,
				Section: sec.title,
				Level:   sec.level,
				Path:    path,
				Text:    chunkText,
			})
			chunkIndex++
		}
	}

	return chunks, skipped, nil
}

// section accumulates the body blocks of one H2 or H3 section.
type section struct {
	title     string
	level     policy.SectionLevel
	hierarchy []string
	blocks    []string
}

// extractSections walks the document's top-level blocks and groups them
// under the most recent H2 or H3 heading.
func (c *MarkdownChunker) extractSections(content []byte) []section {
	reader := text.NewReader(content)
	doc := c.parser.Parser().Parse(reader)

	var sections []section
	var current *section
	topLevel := ""

	flush := func() {
		if current != nil && len(current.blocks) > 0 {
			sections = append(sections, *current)
		}
		current = nil
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		heading, ok := node.(*ast.Heading)
		if !ok {
			if current == nil {
				continue
			}
			if block := renderBlock(node, content); block != "" {
				current.blocks = append(current.blocks, block)
			}
			continue
		}

		title := inlineText(heading, content)
		switch {
		case heading.Level == 1:
			// Document title, not a section
		case heading.Level == 2:
			flush()
			topLevel = title
			current = &section{
				title:     title,
				level:     policy.SectionLevelH2,
				hierarchy: []string{title},
			}
		case heading.Level == 3:
			flush()
			current = &section{
				title:     title,
				level:     policy.SectionLevelH3,
				hierarchy: []string{topLevel, title},
			}
		default:
			// H4 and deeper stay inside the enclosing section
			if current != nil && title != "" {
				current.blocks = append(current.blocks, title)
			}
		}
	}
	flush()

	return sections
}

// packSection renders a section into one or more chunk texts, each
// prefixed with the bracketed hierarchy path. Sections over the token
// budget are split on paragraph boundaries; a single oversized paragraph
// is kept whole rather than cut mid-sentence.
func packSection(path, body string) []string {
	full := "[" + path + "]\n\n" + body
	if tokenCount(full) <= maxChunkTokens {
		return []string{full}
	}

	var texts []string
	var group []string
	groupTokens := 0

	for _, para := range strings.Split(body, "\n\n") {
		paraTokens := tokenCount(para)
		if groupTokens+paraTokens > maxChunkTokens && len(group) > 0 {
			texts = append(texts, "["+path+"]\n\n"+strings.Join(group, "\n\n"))
			group = []string{para}
			groupTokens = paraTokens
			continue
		}
		group = append(group, para)
		groupTokens += paraTokens
	}
	if len(group) > 0 {
		texts = append(texts, "["+path+"]\n\n"+strings.Join(group, "\n\n"))
	}

	return texts
}

// tokenCount estimates tokens as whitespace-delimited fields.
func tokenCount(s string) int {
	return len(strings.Fields(s))
}

// joinHierarchy builds the section path, dropping empty levels (an H3
// before any H2 has no parent).
func joinHierarchy(hierarchy []string) string {
	parts := make([]string, 0, len(hierarchy))
	for _, h := range hierarchy {
		if h != "" {
			parts = append(parts, h)
		}
	}
	return strings.Join(parts, " > ")
}

// renderBlock renders one top-level block to plain text.
func renderBlock(node ast.Node, source []byte) string {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return inlineText(node, source)
	case *ast.List:
		return renderList(n, source)
	case *ast.Blockquote:
		var parts []string
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if block := renderBlock(child, source); block != "" {
				parts = append(parts, block)
			}
		}
		return strings.Join(parts, "\n\n")
	case *ast.FencedCodeBlock:
		return rawLines(n, source)
	case *ast.CodeBlock:
		return rawLines(n, source)
	case *ast.ThematicBreak, *ast.HTMLBlock:
		return ""
	default:
		if strings.Contains(node.Kind().String(), "Table") {
			return renderTable(node, source)
		}
		return inlineText(node, source)
	}
}

// renderList flattens list items into "- " prefixed lines.
func renderList(list *ast.List, source []byte) string {
	var items []string
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		if itemText := inlineText(item, source); itemText != "" {
			items = append(items, "- "+itemText)
		}
	}
	return strings.Join(items, "\n")
}

// renderTable flattens table rows into pipe-separated lines.
func renderTable(table ast.Node, source []byte) string {
	var rows []string
	_ = ast.Walk(table, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		kind := node.Kind().String()
		if kind == "TableRow" || kind == "TableHeader" {
			var cells []string
			for cell := node.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, inlineText(cell, source))
			}
			rows = append(rows, strings.Join(cells, " | "))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(rows, "\n")
}

// rawLines returns the literal lines of a code block.
func rawLines(n ast.Node, source []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return strings.TrimRight(b.String(), "\n")
}

// inlineText extracts the plain text of a node and its children. Soft
// line breaks become newlines so multi-line paragraphs keep their word
// boundaries.
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
