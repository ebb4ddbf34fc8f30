package content

import (
	"fmt"
)

// Metadata is the read-only presentation description of a unit variant.
// It carries no behavior; the editing surface uses it to populate its
// insert palette.
type Metadata struct {
	Name        string
	Description string
	IconKey     string
}

// CatalogEntry pairs a variant with its presentation metadata.
type CatalogEntry struct {
	Type     UnitType
	Metadata Metadata
}

var unitCatalog = []CatalogEntry{
	{Type: UnitTypeHeader, Metadata: Metadata{Name: "Heading", Description: "Section title with adjustable level", IconKey: "heading"}},
	{Type: UnitTypeText, Metadata: Metadata{Name: "Text", Description: "Rich text paragraph", IconKey: "text"}},
	{Type: UnitTypeImage, Metadata: Metadata{Name: "Image", Description: "Image with optional caption", IconKey: "image"}},
	{Type: UnitTypeVideo, Metadata: Metadata{Name: "Video", Description: "Embedded video player", IconKey: "video"}},
	{Type: UnitTypeCode, Metadata: Metadata{Name: "Code", Description: "Syntax highlighted code listing", IconKey: "code"}},
	{Type: UnitTypeMultiFileCode, Metadata: Metadata{Name: "Code files", Description: "Multiple code files with tabs", IconKey: "code-files"}},
	{Type: UnitTypeCTA, Metadata: Metadata{Name: "Button", Description: "Call to action button", IconKey: "button"}},
	{Type: UnitTypeDivider, Metadata: Metadata{Name: "Divider", Description: "Horizontal separator line", IconKey: "divider"}},
	{Type: UnitTypeSpacer, Metadata: Metadata{Name: "Spacer", Description: "Vertical whitespace", IconKey: "spacer"}},
	{Type: UnitTypeSyllabus, Metadata: Metadata{Name: "Syllabus", Description: "Ordered course outline", IconKey: "syllabus"}},
}

// RegistryConfig describes the dependencies of a unit registry.
type RegistryConfig struct {
	IDProvider IDProvider
}

// Registry constructs default-valued content units and exposes the
// variant catalog. Construction is pure apart from id generation.
type Registry struct {
	idProvider IDProvider
}

// NewRegistry builds a Registry. A nil IDProvider falls back to UUIDv7.
func NewRegistry(cfg RegistryConfig) *Registry {
	provider := cfg.IDProvider
	if provider == nil {
		provider = NewUUIDProvider()
	}
	return &Registry{idProvider: provider}
}

// Describe returns the presentation metadata for a variant.
func (r *Registry) Describe(unitType UnitType) (Metadata, error) {
	for _, entry := range unitCatalog {
		if entry.Type == unitType {
			return entry.Metadata, nil
		}
	}
	return Metadata{}, fmt.Errorf("%w: %q", ErrUnknownUnitType, unitType)
}

// Catalog returns every variant with its metadata in palette order.
func (r *Registry) Catalog() []CatalogEntry {
	entries := make([]CatalogEntry, len(unitCatalog))
	copy(entries, unitCatalog)
	return entries
}

// Default presentation values applied by NewUnit. Kept as named constants
// so the editor and tests agree on them.
const (
	DefaultHeaderLevel      = 2
	DefaultSpacerHeight     = 40
	DefaultCTASize          = "medium"
	DefaultCTABgColor       = "#1f2937"
	DefaultCTATextColor     = "#ffffff"
	DefaultVideoAspectRatio = "16:9"
	DefaultDividerStyle     = "solid"
	DefaultDividerColor     = "#e5e7eb"
	DefaultDividerWidth     = 100
	DefaultDividerThickness = 1
	DefaultCodeLanguage     = "javascript"
	DefaultSyllabusStyle    = "accordion"
)

// NewUnit returns a fresh unit of the requested variant with a newly
// generated identifier and variant-appropriate defaults. An unknown type
// is a programmer error and is reported immediately.
func (r *Registry) NewUnit(unitType UnitType) (Unit, error) {
	id, err := r.idProvider.NewID()
	if err != nil {
		return nil, fmt.Errorf("content: id generation failed: %w", err)
	}
	base := BaseUnit{ID: id, Type: unitType}

	switch unitType {
	case UnitTypeHeader:
		return &Header{BaseUnit: base, Text: "", Level: DefaultHeaderLevel}, nil
	case UnitTypeText:
		return &Text{BaseUnit: base, Content: ""}, nil
	case UnitTypeImage:
		return &Image{BaseUnit: base, Width: "auto"}, nil
	case UnitTypeVideo:
		return &Video{BaseUnit: base, AspectRatio: DefaultVideoAspectRatio}, nil
	case UnitTypeCode:
		showLineNumbers := true
		return &Code{BaseUnit: base, Language: DefaultCodeLanguage, ShowLineNumbers: &showLineNumbers}, nil
	case UnitTypeMultiFileCode:
		fileID, err := r.idProvider.NewID()
		if err != nil {
			return nil, fmt.Errorf("content: id generation failed: %w", err)
		}
		initial := CodeFile{ID: fileID, Filename: "index.js", Language: DefaultCodeLanguage}
		return &MultiFileCode{BaseUnit: base, Files: []CodeFile{initial}, ActiveFileID: fileID}, nil
	case UnitTypeCTA:
		return &CTA{
			BaseUnit:  base,
			Text:      "Get started",
			Size:      DefaultCTASize,
			BgColor:   DefaultCTABgColor,
			TextColor: DefaultCTATextColor,
		}, nil
	case UnitTypeDivider:
		width := DefaultDividerWidth
		thickness := DefaultDividerThickness
		return &Divider{
			BaseUnit:  base,
			Style:     DefaultDividerStyle,
			Color:     DefaultDividerColor,
			Width:     &width,
			Thickness: &thickness,
		}, nil
	case UnitTypeSpacer:
		return &Spacer{BaseUnit: base, Height: DefaultSpacerHeight}, nil
	case UnitTypeSyllabus:
		showDuration := true
		return &Syllabus{
			BaseUnit:     base,
			Style:        DefaultSyllabusStyle,
			ShowDuration: &showDuration,
			Items:        []SyllabusItem{},
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownUnitType, unitType)
}
