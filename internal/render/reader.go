// Package render contains the two renderers over the content model: the
// read-only reader renderer consuming persisted document trees, and the
// editor renderer consuming content units. Both must agree on shared
// node semantics; they diverge only for interactive node types.
package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/lessonforge/lessonforge/internal/document"
	"github.com/lessonforge/lessonforge/internal/sanitize"
)

var (
	fontSizePattern   = regexp.MustCompile(`^\d{1,3}(?:px|pt|em|rem|%)$`)
	fontFamilyPattern = regexp.MustCompile(`^[A-Za-z0-9 ,'\-]{1,80}$`)
	languagePattern   = regexp.MustCompile(`^[a-z0-9+#.\-]{1,30}$`)
)

var textAlignments = map[string]struct{}{
	"left": {}, "center": {}, "right": {}, "justify": {},
}

// ReaderConfig describes the dependencies of a Reader.
type ReaderConfig struct {
	Sanitizer *sanitize.Sanitizer
}

// Reader renders persisted document trees to sanitized, non-interactive
// markup for the read-only learner surface. Unknown node types degrade
// to rendering their children so no persisted content is lost.
type Reader struct {
	sanitizer *sanitize.Sanitizer
}

// NewReader builds a Reader. A nil Sanitizer falls back to the default
// allow-list sanitizer.
func NewReader(cfg ReaderConfig) *Reader {
	sanitizer := cfg.Sanitizer
	if sanitizer == nil {
		sanitizer = sanitize.NewSanitizer()
	}
	return &Reader{sanitizer: sanitizer}
}

// RenderNodes renders a node list to markup in source order. Quiz nodes
// are never inlined here; use SegmentContent to interleave them as
// interactive segments.
func (r *Reader) RenderNodes(nodes []document.Node) string {
	var builder strings.Builder
	for _, node := range nodes {
		r.renderNode(&builder, node)
	}
	return builder.String()
}

func (r *Reader) renderNode(builder *strings.Builder, node document.Node) {
	switch node.Type {
	case document.NodeTypeDoc:
		for _, child := range node.Content {
			r.renderNode(builder, child)
		}
	case document.NodeTypeParagraph:
		r.renderContainer(builder, node, "p", `class="reader-paragraph"`)
	case document.NodeTypeHeading:
		level := node.AttrInt("level", 2)
		if level < 1 {
			level = 1
		}
		if level > 6 {
			level = 6
		}
		tag := fmt.Sprintf("h%d", level)
		r.renderContainer(builder, node, tag, `class="reader-heading"`)
	case document.NodeTypeText:
		builder.WriteString(r.renderText(node))
	case document.NodeTypeBulletList:
		r.renderContainer(builder, node, "ul", `class="reader-list reader-list-bulleted"`)
	case document.NodeTypeOrderedList:
		r.renderContainer(builder, node, "ol", `class="reader-list reader-list-numbered"`)
	case document.NodeTypeListItem:
		r.renderContainer(builder, node, "li", "")
	case document.NodeTypeBlockquote:
		r.renderContainer(builder, node, "blockquote", `class="reader-blockquote"`)
	case document.NodeTypeCodeBlock:
		r.renderCodeBlock(builder, node)
	case document.NodeTypeHorizontalRule:
		builder.WriteString(`<hr class="reader-divider">`)
	case document.NodeTypeHardBreak:
		builder.WriteString("<br>")
	case document.NodeTypeTable:
		r.renderContainer(builder, node, "table", `class="reader-table"`)
	case document.NodeTypeTableRow:
		r.renderContainer(builder, node, "tr", "")
	case document.NodeTypeTableHeader:
		r.renderContainer(builder, node, "th", "")
	case document.NodeTypeTableCell:
		r.renderContainer(builder, node, "td", "")
	case document.NodeTypeCustomImage:
		r.renderImage(builder, node)
	case document.NodeTypeCustomVideo, document.NodeTypeCustomYoutube:
		r.renderVideo(builder, node)
	case document.NodeTypeCustomQuiz:
		// Interactive content is handed off through segmentation, never
		// flattened into markup.
	default:
		r.renderUnknown(builder, node)
	}
}

func (r *Reader) renderContainer(builder *strings.Builder, node document.Node, tag, baseAttrs string) {
	builder.WriteString("<")
	builder.WriteString(tag)
	if baseAttrs != "" {
		builder.WriteString(" ")
		builder.WriteString(baseAttrs)
	}
	alignment := node.AttrString("textAlign", "")
	if _, ok := textAlignments[alignment]; ok {
		builder.WriteString(` style="text-align: ` + alignment + `"`)
	}
	builder.WriteString(">")
	for _, child := range node.Content {
		r.renderNode(builder, child)
	}
	builder.WriteString("</")
	builder.WriteString(tag)
	builder.WriteString(">")
}

// renderText emits a text leaf with its marks applied in the fixed
// precedence code, bold, italic, underline, strike, link, textStyle —
// each later mark wrapping the earlier ones.
func (r *Reader) renderText(node document.Node) string {
	content := r.textContent(node.Text)

	marks := make(map[string]document.Mark, len(node.Marks))
	for _, mark := range node.Marks {
		marks[mark.Type] = mark
	}

	if _, ok := marks[document.MarkTypeCode]; ok {
		content = "<code>" + content + "</code>"
	}
	if _, ok := marks[document.MarkTypeBold]; ok {
		content = "<strong>" + content + "</strong>"
	}
	if _, ok := marks[document.MarkTypeItalic]; ok {
		content = "<em>" + content + "</em>"
	}
	if _, ok := marks[document.MarkTypeUnderline]; ok {
		content = "<u>" + content + "</u>"
	}
	if _, ok := marks[document.MarkTypeStrike]; ok {
		content = "<s>" + content + "</s>"
	}
	if mark, ok := marks[document.MarkTypeLink]; ok {
		if href, valid := usableLink(mark.MarkAttrString("href")); valid {
			content = `<a href="` + html.EscapeString(href) + `" rel="noopener noreferrer">` + content + "</a>"
		}
	}
	if mark, ok := marks[document.MarkTypeTextStyle]; ok {
		if style := r.textStyleValue(mark); style != "" {
			content = `<span style="` + style + `">` + content + "</span>"
		}
	}
	return content
}

// textContent escapes plain text, routing fragments that carry legacy
// encoding artifacts through the repair-then-sanitize pipeline instead.
func (r *Reader) textContent(text string) string {
	repaired := sanitize.RepairLegacyMarkup(text)
	if repaired != text {
		return r.sanitizer.CleanReader(repaired)
	}
	return html.EscapeString(text)
}

func (r *Reader) textStyleValue(mark document.Mark) string {
	parts := make([]string, 0, 3)
	if color, ok := usableReaderColor(mark.MarkAttrString("color")); ok {
		parts = append(parts, "color: "+color)
	}
	if size := mark.MarkAttrString("fontSize"); fontSizePattern.MatchString(size) {
		parts = append(parts, "font-size: "+size)
	}
	if family := mark.MarkAttrString("fontFamily"); fontFamilyPattern.MatchString(family) {
		parts = append(parts, "font-family: "+family)
	}
	return strings.Join(parts, "; ")
}

func (r *Reader) renderCodeBlock(builder *strings.Builder, node document.Node) {
	builder.WriteString(`<pre class="reader-code"><code`)
	if language := node.AttrString("language", ""); languagePattern.MatchString(language) {
		builder.WriteString(` class="language-` + language + `"`)
	}
	builder.WriteString(">")
	for _, child := range node.Content {
		builder.WriteString(html.EscapeString(child.Text))
	}
	builder.WriteString("</code></pre>")
}

func (r *Reader) renderImage(builder *strings.Builder, node document.Node) {
	source, ok := usableLink(node.AttrString("src", ""))
	if !ok {
		return
	}
	builder.WriteString(`<figure class="reader-image"><img src="`)
	builder.WriteString(html.EscapeString(source))
	builder.WriteString(`" alt="`)
	builder.WriteString(html.EscapeString(node.AttrString("alt", "")))
	builder.WriteString(`">`)
	if caption := node.AttrString("caption", ""); caption != "" {
		builder.WriteString("<figcaption>")
		builder.WriteString(html.EscapeString(caption))
		builder.WriteString("</figcaption>")
	}
	builder.WriteString("</figure>")
}

func (r *Reader) renderVideo(builder *strings.Builder, node document.Node) {
	source := node.AttrString("src", "")
	if source == "" {
		source = node.AttrString("url", "")
	}
	videoID, ok := ResolveYouTubeID(source)
	if !ok {
		return
	}
	builder.WriteString(`<div class="reader-video reader-video-` + aspectRatioClass(node.AttrString("aspectRatio", "16:9")) + `">`)
	builder.WriteString(`<iframe src="https://www.youtube.com/embed/` + videoID + `" allowfullscreen></iframe>`)
	builder.WriteString("</div>")
}

func aspectRatioClass(ratio string) string {
	switch ratio {
	case "4:3":
		return "4x3"
	case "1:1":
		return "1x1"
	default:
		return "16x9"
	}
}

// renderUnknown preserves round-trip fidelity for node types this
// renderer does not recognize: children and text still render, the
// unknown wrapper itself is dropped.
func (r *Reader) renderUnknown(builder *strings.Builder, node document.Node) {
	if node.Text != "" {
		builder.WriteString(r.textContent(node.Text))
	}
	for _, child := range node.Content {
		r.renderNode(builder, child)
	}
}

func usableLink(rawURL string) (string, bool) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", false
	}
	lowered := strings.ToLower(trimmed)
	for _, scheme := range []string{"http://", "https://", "mailto:"} {
		if strings.HasPrefix(lowered, scheme) {
			return trimmed, true
		}
	}
	if strings.HasPrefix(trimmed, "/") && !strings.HasPrefix(trimmed, "//") {
		return trimmed, true
	}
	return "", false
}
