// Package document defines the editable structured document that sits between
// extraction, translation and rendering, and its on-disk persistence.
package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnitKind 文本单元类型
type UnitKind string

const (
	KindParagraph UnitKind = "paragraph"
	KindHeading   UnitKind = "heading"
	// KindImage units carry PNG bytes and no text, so they are never translated
	KindImage UnitKind = "image"
)

// RGB 字体颜色
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex returns the color as RRGGBB
func (c RGB) Hex() string {
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}

// FormattingRun is a span of text sharing one set of style attributes.
// Nil attribute pointers mean "unset" (inherit from the paragraph/renderer).
type FormattingRun struct {
	Text      string   `json:"text"`
	Bold      *bool    `json:"bold,omitempty"`
	Italic    *bool    `json:"italic,omitempty"`
	Underline *bool    `json:"underline,omitempty"`
	FontSize  *float64 `json:"font_size,omitempty"`
	FontName  *string  `json:"font_name,omitempty"`
	Color     *RGB     `json:"color,omitempty"`
}

// WithText returns a run holding text and a deep copy of r's attributes
func (r FormattingRun) WithText(text string) FormattingRun {
	return FormattingRun{
		Text:      text,
		Bold:      clonePtr(r.Bold),
		Italic:    clonePtr(r.Italic),
		Underline: clonePtr(r.Underline),
		FontSize:  clonePtr(r.FontSize),
		FontName:  clonePtr(r.FontName),
		Color:     clonePtr(r.Color),
	}
}

// SameStyle reports whether two runs have equal attribute values
func (r FormattingRun) SameStyle(o FormattingRun) bool {
	return eqPtr(r.Bold, o.Bold) &&
		eqPtr(r.Italic, o.Italic) &&
		eqPtr(r.Underline, o.Underline) &&
		eqPtr(r.FontSize, o.FontSize) &&
		eqPtr(r.FontName, o.FontName) &&
		eqPtr(r.Color, o.Color)
}

// Ptr returns a pointer to v; handy for building runs
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// TextUnit 一个段落级文本单元
type TextUnit struct {
	Index int             `json:"index"`
	Kind  UnitKind        `json:"kind"`
	Page  int             `json:"page"`
	Text  string          `json:"text"`
	Runs  []FormattingRun `json:"runs,omitempty"`
	Image []byte          `json:"image,omitempty"`
}

// IsBlank reports whether the unit has no translatable text
func (u *TextUnit) IsBlank() bool {
	return strings.TrimSpace(u.Text) == ""
}

// ReplaceText swaps the unit's content for text. When the unit has runs they
// collapse into a single run carrying the first run's formatting; otherwise
// only Text changes.
func (u *TextUnit) ReplaceText(text string) {
	if len(u.Runs) > 0 {
		first := u.Runs[0]
		u.Runs = []FormattingRun{first.WithText(text)}
	}
	u.Text = text
}

// Clone returns a deep copy of the unit
func (u *TextUnit) Clone() *TextUnit {
	c := *u
	if u.Runs != nil {
		c.Runs = make([]FormattingRun, len(u.Runs))
		for i, r := range u.Runs {
			c.Runs[i] = r.WithText(r.Text)
		}
	}
	if u.Image != nil {
		c.Image = append([]byte(nil), u.Image...)
	}
	return &c
}

// NewParagraph builds a paragraph unit from runs, deriving Text from them
func NewParagraph(page int, runs ...FormattingRun) *TextUnit {
	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(r.Text)
	}
	return &TextUnit{Kind: KindParagraph, Page: page, Text: sb.String(), Runs: runs}
}

// StructuredDocument 可编辑的结构化文档
type StructuredDocument struct {
	ID        string      `json:"id"`
	Title     string      `json:"title,omitempty"`
	Source    string      `json:"source"`
	Strategy  string      `json:"strategy"`
	CreatedAt time.Time   `json:"created_at"`
	Units     []*TextUnit `json:"units"`
}

// New creates an empty document for the given source file
func New(source, strategy string) *StructuredDocument {
	return &StructuredDocument{
		ID:        uuid.NewString(),
		Source:    source,
		Strategy:  strategy,
		CreatedAt: time.Now().UTC(),
		Units:     make([]*TextUnit, 0),
	}
}

// Add appends a unit and assigns its index
func (d *StructuredDocument) Add(u *TextUnit) {
	u.Index = len(d.Units)
	d.Units = append(d.Units, u)
}

// Renumber reassigns indices 0..n-1 in current order
func (d *StructuredDocument) Renumber() {
	for i, u := range d.Units {
		u.Index = i
	}
}

// Texts returns unit texts in document order
func (d *StructuredDocument) Texts() []string {
	texts := make([]string, len(d.Units))
	for i, u := range d.Units {
		texts[i] = u.Text
	}
	return texts
}

// CountNonBlank returns how many units will be sent for translation
func (d *StructuredDocument) CountNonBlank() int {
	n := 0
	for _, u := range d.Units {
		if !u.IsBlank() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the document
func (d *StructuredDocument) Clone() *StructuredDocument {
	c := *d
	c.Units = make([]*TextUnit, len(d.Units))
	for i, u := range d.Units {
		c.Units[i] = u.Clone()
	}
	return &c
}
