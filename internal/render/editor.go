package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/lessonforge/lessonforge/internal/content"
	"github.com/lessonforge/lessonforge/internal/sanitize"
)

// EditorConfig describes the dependencies of an Editor.
type EditorConfig struct {
	Sanitizer *sanitize.Sanitizer
}

// Editor renders content units for the interactive authoring surface.
// It displays current values and marks editable fields, but owns no
// persistence logic; edits flow back through ApplyEdit and the caller's
// callbacks. The switch over variants is exhaustive: a new variant
// without a case here fails rendering loudly instead of half-working.
type Editor struct {
	sanitizer *sanitize.Sanitizer
}

// NewEditor builds an Editor. A nil Sanitizer falls back to the default
// allow-list sanitizer.
func NewEditor(cfg EditorConfig) *Editor {
	sanitizer := cfg.Sanitizer
	if sanitizer == nil {
		sanitizer = sanitize.NewSanitizer()
	}
	return &Editor{sanitizer: sanitizer}
}

// RenderUnit renders one content unit to its interactive representation.
func (e *Editor) RenderUnit(unit content.Unit) (string, error) {
	if unit == nil {
		return "", fmt.Errorf("%w: nil unit", content.ErrInvalidUnitPayload)
	}

	var builder strings.Builder
	builder.WriteString(`<div class="editor-unit" data-unit-id="`)
	builder.WriteString(html.EscapeString(unit.UnitID()))
	builder.WriteString(`" data-unit-type="`)
	builder.WriteString(string(unit.Kind()))
	builder.WriteString(`"`)
	if margin := marginStyle(unit); margin != "" {
		builder.WriteString(` style="` + margin + `"`)
	}
	builder.WriteString(">")

	switch typed := unit.(type) {
	case *content.Header:
		e.renderHeader(&builder, typed)
	case *content.Text:
		e.renderTextUnit(&builder, typed)
	case *content.Image:
		e.renderImageUnit(&builder, typed)
	case *content.Video:
		e.renderVideoUnit(&builder, typed)
	case *content.Code:
		e.renderCodeUnit(&builder, typed)
	case *content.MultiFileCode:
		e.renderMultiFileCodeUnit(&builder, typed)
	case *content.CTA:
		e.renderCTAUnit(&builder, typed)
	case *content.Divider:
		e.renderDividerUnit(&builder, typed)
	case *content.Spacer:
		e.renderSpacerUnit(&builder, typed)
	case *content.Syllabus:
		e.renderSyllabusUnit(&builder, typed)
	default:
		return "", fmt.Errorf("%w: %T", content.ErrUnknownUnitType, unit)
	}

	builder.WriteString("</div>")
	return builder.String(), nil
}

func marginStyle(unit content.Unit) string {
	return spacingStyle(marginOf(unit))
}

func marginOf(unit content.Unit) *content.Spacing {
	switch typed := unit.(type) {
	case *content.Header:
		return typed.Margin
	case *content.Text:
		return typed.Margin
	case *content.Image:
		return typed.Margin
	case *content.Video:
		return typed.Margin
	case *content.Code:
		return typed.Margin
	case *content.MultiFileCode:
		return typed.Margin
	case *content.CTA:
		return typed.Margin
	case *content.Divider:
		return typed.Margin
	case *content.Spacer:
		return typed.Margin
	case *content.Syllabus:
		return typed.Margin
	}
	return nil
}

func spacingStyle(spacing *content.Spacing) string {
	if spacing == nil {
		return ""
	}
	parts := make([]string, 0, 4)
	if spacing.Top != nil {
		parts = append(parts, fmt.Sprintf("margin-top: %gpx", *spacing.Top))
	}
	if spacing.Right != nil {
		parts = append(parts, fmt.Sprintf("margin-right: %gpx", *spacing.Right))
	}
	if spacing.Bottom != nil {
		parts = append(parts, fmt.Sprintf("margin-bottom: %gpx", *spacing.Bottom))
	}
	if spacing.Left != nil {
		parts = append(parts, fmt.Sprintf("margin-left: %gpx", *spacing.Left))
	}
	return strings.Join(parts, "; ")
}

func (e *Editor) renderHeader(builder *strings.Builder, header *content.Header) {
	level := header.Level
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	styles := make([]string, 0, 3)
	if _, ok := textAlignments[header.Align]; ok {
		styles = append(styles, "text-align: "+header.Align)
	}
	if color, ok := normalizeColor(header.Color); ok {
		styles = append(styles, "color: "+color)
	}
	if header.FontSize != nil {
		styles = append(styles, fmt.Sprintf("font-size: %dpx", *header.FontSize))
	}
	fmt.Fprintf(builder, `<h%d contenteditable="true" data-field="text"`, level)
	if len(styles) > 0 {
		fmt.Fprintf(builder, ` style="%s"`, strings.Join(styles, "; "))
	}
	fmt.Fprintf(builder, ">%s</h%d>", html.EscapeString(header.Text), level)
}

func (e *Editor) renderTextUnit(builder *strings.Builder, text *content.Text) {
	styles := make([]string, 0, 4)
	if _, ok := textAlignments[text.Align]; ok {
		styles = append(styles, "text-align: "+text.Align)
	}
	if color, ok := normalizeColor(text.Color); ok {
		styles = append(styles, "color: "+color)
	}
	if text.FontSize != nil {
		styles = append(styles, fmt.Sprintf("font-size: %dpx", *text.FontSize))
	}
	if text.LineHeight != nil {
		styles = append(styles, fmt.Sprintf("line-height: %g", *text.LineHeight))
	}
	builder.WriteString(`<div contenteditable="true" data-field="content"`)
	if len(styles) > 0 {
		builder.WriteString(` style="` + strings.Join(styles, "; ") + `"`)
	}
	builder.WriteString(">")
	builder.WriteString(e.sanitizer.CleanEditor(text.Content))
	builder.WriteString("</div>")
}

func (e *Editor) renderImageUnit(builder *strings.Builder, image *content.Image) {
	source, ok := usableLink(image.URL)
	if !ok {
		builder.WriteString(`<div class="editor-image-placeholder" data-field="url">Add an image</div>`)
		return
	}
	styles := make([]string, 0, 2)
	if image.BorderRadius != nil {
		styles = append(styles, fmt.Sprintf("border-radius: %dpx", *image.BorderRadius))
	}
	if image.Width != "" && image.Width != "auto" {
		styles = append(styles, "width: "+html.EscapeString(image.Width)+"px")
	}
	builder.WriteString(`<img src="` + html.EscapeString(source) + `" alt="` + html.EscapeString(image.Alt) + `"`)
	if len(styles) > 0 {
		builder.WriteString(` style="` + strings.Join(styles, "; ") + `"`)
	}
	builder.WriteString(">")
	builder.WriteString(`<div contenteditable="true" data-field="caption">` + html.EscapeString(image.Caption) + "</div>")
}

func (e *Editor) renderVideoUnit(builder *strings.Builder, video *content.Video) {
	videoID, ok := ResolveYouTubeID(video.URL)
	if !ok {
		builder.WriteString(`<div class="editor-video-placeholder" data-field="url">Add a video URL</div>`)
		return
	}
	builder.WriteString(`<div class="editor-video editor-video-` + aspectRatioClass(video.AspectRatio) + `">`)
	builder.WriteString(`<iframe src="https://www.youtube.com/embed/` + videoID + `" allowfullscreen></iframe>`)
	builder.WriteString("</div>")
	builder.WriteString(`<div contenteditable="true" data-field="caption">` + html.EscapeString(video.Caption) + "</div>")
}

func (e *Editor) renderCodeUnit(builder *strings.Builder, code *content.Code) {
	builder.WriteString(`<pre class="editor-code"`)
	if code.ShowLineNumbers != nil && *code.ShowLineNumbers {
		builder.WriteString(` data-line-numbers="true"`)
	}
	builder.WriteString(`><code contenteditable="true" data-field="code"`)
	if languagePattern.MatchString(code.Language) {
		builder.WriteString(` class="language-` + code.Language + `"`)
	}
	builder.WriteString(">")
	builder.WriteString(html.EscapeString(code.Code))
	builder.WriteString("</code></pre>")
}

func (e *Editor) renderMultiFileCodeUnit(builder *strings.Builder, multi *content.MultiFileCode) {
	builder.WriteString(`<div class="editor-code-tabs" role="tablist">`)
	for _, file := range multi.Files {
		active := ""
		if file.ID == multi.ActiveFileID {
			active = ` data-active="true"`
		}
		builder.WriteString(`<button role="tab" data-file-id="` + html.EscapeString(file.ID) + `"` + active + ">")
		builder.WriteString(html.EscapeString(file.Filename))
		builder.WriteString("</button>")
	}
	builder.WriteString("</div>")
	for _, file := range multi.Files {
		if file.ID != multi.ActiveFileID {
			continue
		}
		builder.WriteString(`<pre class="editor-code"><code contenteditable="true" data-file-id="` + html.EscapeString(file.ID) + `"`)
		if languagePattern.MatchString(file.Language) {
			builder.WriteString(` class="language-` + file.Language + `"`)
		}
		builder.WriteString(">")
		builder.WriteString(html.EscapeString(file.Code))
		builder.WriteString("</code></pre>")
	}
}

func (e *Editor) renderCTAUnit(builder *strings.Builder, cta *content.CTA) {
	styles := make([]string, 0, 3)
	if color, ok := normalizeColor(cta.BgColor); ok {
		styles = append(styles, "background-color: "+color)
	}
	if color, ok := normalizeColor(cta.TextColor); ok {
		styles = append(styles, "color: "+color)
	}
	if cta.BorderRadius != nil {
		styles = append(styles, fmt.Sprintf("border-radius: %dpx", *cta.BorderRadius))
	}
	size := cta.Size
	switch size {
	case "small", "medium", "large":
	default:
		size = content.DefaultCTASize
	}
	builder.WriteString(`<a class="editor-cta editor-cta-` + size + `"`)
	if href, ok := usableLink(cta.URL); ok {
		builder.WriteString(` href="` + html.EscapeString(href) + `"`)
	}
	if len(styles) > 0 {
		builder.WriteString(` style="` + strings.Join(styles, "; ") + `"`)
	}
	builder.WriteString(` contenteditable="true" data-field="text">`)
	builder.WriteString(html.EscapeString(cta.Text))
	builder.WriteString("</a>")
}

func (e *Editor) renderDividerUnit(builder *strings.Builder, divider *content.Divider) {
	style := divider.Style
	switch style {
	case "solid", "dashed", "dotted":
	default:
		style = content.DefaultDividerStyle
	}
	styles := []string{"border-style: " + style}
	if color, ok := normalizeColor(divider.Color); ok {
		styles = append(styles, "border-color: "+color)
	}
	if divider.Width != nil {
		styles = append(styles, fmt.Sprintf("width: %d%%", *divider.Width))
	}
	if divider.Thickness != nil {
		styles = append(styles, fmt.Sprintf("border-width: %dpx", *divider.Thickness))
	}
	builder.WriteString(`<hr class="editor-divider" style="` + strings.Join(styles, "; ") + `">`)
}

func (e *Editor) renderSpacerUnit(builder *strings.Builder, spacer *content.Spacer) {
	fmt.Fprintf(builder, `<div class="editor-spacer" data-field="height" style="height: %dpx"></div>`, spacer.Height)
}

func (e *Editor) renderSyllabusUnit(builder *strings.Builder, syllabus *content.Syllabus) {
	style := syllabus.Style
	switch style {
	case "accordion", "numbered", "cards":
	default:
		style = content.DefaultSyllabusStyle
	}
	builder.WriteString(`<div class="editor-syllabus editor-syllabus-` + style + `"`)
	if color, ok := normalizeColor(syllabus.AccentColor); ok {
		builder.WriteString(` style="--accent-color: ` + color + `"`)
	}
	builder.WriteString(">")
	if syllabus.Title != "" {
		builder.WriteString(`<div contenteditable="true" data-field="title">` + html.EscapeString(syllabus.Title) + "</div>")
	}
	builder.WriteString("<ol>")
	for _, item := range syllabus.Items {
		builder.WriteString(`<li data-item-id="` + html.EscapeString(item.ID) + `">`)
		builder.WriteString(`<span contenteditable="true" data-field="title">` + html.EscapeString(item.Title) + "</span>")
		if item.Description != "" {
			builder.WriteString(`<p contenteditable="true" data-field="description">` + html.EscapeString(item.Description) + "</p>")
		}
		if syllabus.ShowDuration != nil && *syllabus.ShowDuration && item.Duration != "" {
			builder.WriteString(`<span class="editor-syllabus-duration">` + html.EscapeString(item.Duration) + "</span>")
		}
		builder.WriteString("</li>")
	}
	builder.WriteString("</ol></div>")
}
