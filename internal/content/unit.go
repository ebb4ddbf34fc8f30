package content

import (
	"errors"
	"fmt"
	"strings"
)

// UnitType discriminates the closed set of content unit variants.
type UnitType string

const (
	// UnitTypeHeader is a section heading with a level between 1 and 6.
	UnitTypeHeader UnitType = "header"
	// UnitTypeText is a rich-text fragment stored as sanitizable markup.
	UnitTypeText UnitType = "text"
	// UnitTypeImage is a single image with optional caption.
	UnitTypeImage UnitType = "image"
	// UnitTypeVideo is an embedded video referenced by URL.
	UnitTypeVideo UnitType = "video"
	// UnitTypeCode is a single-file code listing.
	UnitTypeCode UnitType = "code"
	// UnitTypeMultiFileCode is an ordered set of named code files.
	UnitTypeMultiFileCode UnitType = "multiFileCode"
	// UnitTypeCTA is a call-to-action button.
	UnitTypeCTA UnitType = "cta"
	// UnitTypeDivider is a horizontal separator line.
	UnitTypeDivider UnitType = "divider"
	// UnitTypeSpacer is vertical whitespace with a mandatory height.
	UnitTypeSpacer UnitType = "spacer"
	// UnitTypeSyllabus is an ordered list of course sections.
	UnitTypeSyllabus UnitType = "syllabus"
)

// ErrUnknownUnitType indicates a unit type outside the closed variant set.
// Requesting one is a programmer error and must never reach persisted content.
var ErrUnknownUnitType = errors.New("content: unknown unit type")

// ParseUnitType validates raw input against the closed variant set.
func ParseUnitType(rawInput string) (UnitType, error) {
	candidate := UnitType(strings.TrimSpace(rawInput))
	switch candidate {
	case UnitTypeHeader, UnitTypeText, UnitTypeImage, UnitTypeVideo,
		UnitTypeCode, UnitTypeMultiFileCode, UnitTypeCTA, UnitTypeDivider,
		UnitTypeSpacer, UnitTypeSyllabus:
		return candidate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUnitType, rawInput)
}

// Unit is the common surface of every content unit variant. The concrete
// type is always one of the ten variant structs in this package.
type Unit interface {
	// UnitID returns the identifier assigned at creation. It is never
	// regenerated; diffing, list reconciliation and storage keys all rely
	// on it as the sole identity signal.
	UnitID() string
	// Kind returns the variant discriminator.
	Kind() UnitType
}

// BaseUnit carries the fields shared by every variant.
type BaseUnit struct {
	ID     string   `json:"id"`
	Type   UnitType `json:"type"`
	Margin *Spacing `json:"margin,omitempty"`
}

// UnitID returns the stable unit identifier.
func (base BaseUnit) UnitID() string {
	return base.ID
}

// Kind returns the variant discriminator.
func (base BaseUnit) Kind() UnitType {
	return base.Type
}

// Header is a section heading.
type Header struct {
	BaseUnit
	Text       string `json:"text"`
	Level      int    `json:"level"`
	Align      string `json:"align,omitempty"`
	FontSize   *int   `json:"fontSize,omitempty"`
	FontWeight string `json:"fontWeight,omitempty"`
	Color      string `json:"color,omitempty"`
}

// Text is a rich-text fragment. Content holds markup that is sanitized
// before it reaches any reader surface.
type Text struct {
	BaseUnit
	Content    string   `json:"content"`
	Align      string   `json:"align,omitempty"`
	FontSize   *int     `json:"fontSize,omitempty"`
	LineHeight *float64 `json:"lineHeight,omitempty"`
	Color      string   `json:"color,omitempty"`
}

// Image embeds a single image. Width is either "auto" or a pixel count
// rendered as a string, mirroring the persisted shape.
type Image struct {
	BaseUnit
	URL          string `json:"url"`
	Alt          string `json:"alt,omitempty"`
	Caption      string `json:"caption,omitempty"`
	Align        string `json:"align,omitempty"`
	BorderRadius *int   `json:"borderRadius,omitempty"`
	Width        string `json:"width,omitempty"`
}

// Video embeds a video referenced by a YouTube-style URL that is resolved
// to a canonical video identifier at render time.
type Video struct {
	BaseUnit
	URL         string `json:"url"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// Code is a single-file code listing.
type Code struct {
	BaseUnit
	Code            string `json:"code"`
	Language        string `json:"language,omitempty"`
	ShowLineNumbers *bool  `json:"showLineNumbers,omitempty"`
	FontSize        *int   `json:"fontSize,omitempty"`
}

// CodeFile is one named file inside a MultiFileCode unit.
type CodeFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Language string `json:"language"`
	Code     string `json:"code"`
}

// MultiFileCode is an ordered set of code files with one active tab.
type MultiFileCode struct {
	BaseUnit
	Files        []CodeFile `json:"files"`
	ActiveFileID string     `json:"activeFileId,omitempty"`
}

// CTA is a call-to-action button.
type CTA struct {
	BaseUnit
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	Size         string `json:"size,omitempty"`
	Align        string `json:"align,omitempty"`
	BgColor      string `json:"bgColor,omitempty"`
	TextColor    string `json:"textColor,omitempty"`
	BorderRadius *int   `json:"borderRadius,omitempty"`
}

// Divider is a horizontal separator. Width is a percentage of the
// available width, Thickness a pixel count.
type Divider struct {
	BaseUnit
	Style     string `json:"style,omitempty"`
	Color     string `json:"color,omitempty"`
	Width     *int   `json:"width,omitempty"`
	Thickness *int   `json:"thickness,omitempty"`
}

// Spacer is vertical whitespace. Height is mandatory and always positive,
// which distinguishes a spacer from an empty margin.
type Spacer struct {
	BaseUnit
	Height int `json:"height"`
}

// SyllabusItem is one ordered entry inside a Syllabus unit.
type SyllabusItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

// Syllabus is an ordered list of course sections.
type Syllabus struct {
	BaseUnit
	Title        string         `json:"title,omitempty"`
	Style        string         `json:"style,omitempty"`
	ShowDuration *bool          `json:"showDuration,omitempty"`
	AccentColor  string         `json:"accentColor,omitempty"`
	Items        []SyllabusItem `json:"items"`
}
