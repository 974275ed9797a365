// Package mapper transforms raw MODS records per digital-object model.
// Each model resolves to one Mapper; shared behavior lives in free helper
// functions invoked explicitly by each variant.
package mapper

import (
	"strings"

	"github.com/proarc/proarc-api/pkg/ident"
	"github.com/proarc/proarc-api/pkg/mods"
)

// Context carries the object identity a mapper may need. Mappers never reach
// into storage themselves.
type Context struct {
	PID   string
	Model ModelID
}

// Mapper is the capability set of one model family.
//
// Normalize mutates the record in place and returns it; it is idempotent and
// repairs missing optional elements with defaults instead of failing.
// ToSummary is a pure projection and must not touch the input.
type Mapper interface {
	Normalize(r *mods.Record, ctx Context) *mods.Record
	ToSummary(r *mods.Record, ctx Context) *mods.Summary
	ToLabel(r *mods.Record) string
	ToEditView(r *mods.Record) *EditView
	FromEditView(view *EditView, raw *mods.Record) *mods.Record
}

// EditView is the JSON shape the edit UI works with. Page numbering and the
// description standard are pulled out of the part/recordInfo substructures;
// the rest of the record passes through untouched.
type EditView struct {
	PageType            string       `json:"pageType,omitempty"`
	PageNumber          string       `json:"pageNumber,omitempty"`
	PageIndex           string       `json:"pageIndex,omitempty"`
	DescriptionStandard string       `json:"descriptionStandard,omitempty"`
	Record              *mods.Record `json:"mods,omitempty"`
}

// EnsureGenre guarantees a non-empty genre list, injecting the model default.
// Empty genre values are dropped first so repeated runs converge.
func EnsureGenre(r *mods.Record, def string) {
	kept := r.Genres[:0]
	for _, g := range r.Genres {
		if strings.TrimSpace(g.Value) != "" {
			kept = append(kept, g)
		}
	}
	r.Genres = kept
	if len(r.Genres) == 0 {
		r.Genres = append(r.Genres, mods.Genre{Value: def})
	}
}

// EnsureDigitalOrigin guarantees a physical description with a digital origin
// for born-digital models.
func EnsureDigitalOrigin(r *mods.Record) {
	if len(r.PhysicalDescriptions) == 0 {
		r.PhysicalDescriptions = append(r.PhysicalDescriptions, mods.PhysicalDescription{})
	}
	if r.PhysicalDescriptions[0].DigitalOrigin == "" {
		r.PhysicalDescriptions[0].DigitalOrigin = mods.BornDigital
	}
}

// EnsureDescriptionStandard guarantees recordInfo/descriptionStandard,
// defaulting everything that is not explicitly RDA to AACR.
func EnsureDescriptionStandard(r *mods.Record) {
	if r.RecordInfo == nil {
		r.RecordInfo = &mods.RecordInfo{}
	}
	if strings.EqualFold(r.RecordInfo.DescriptionStandard, mods.DescriptionRDA) {
		r.RecordInfo.DescriptionStandard = mods.DescriptionRDA
	} else {
		r.RecordInfo.DescriptionStandard = mods.DescriptionAACR
	}
}

// CanonicalizePart collapses all part elements of a page record into exactly
// one carrying the first-seen pageNumber and pageIndex. Duplicates are
// discarded. When forceTypeDefault is set an absent page type becomes the
// normalPage sentinel; the legacy page family keeps it empty instead.
func CanonicalizePart(r *mods.Record, forceTypeDefault bool) {
	pageType := PartType(r)
	number := r.Detail(mods.DetailPageNumber)
	index := r.Detail(mods.DetailPageIndex)

	if forceTypeDefault && pageType == "" {
		pageType = mods.PageTypeNormal
	}

	if pageType == "" && number == "" && index == "" {
		r.Parts = nil
		return
	}

	part := mods.Part{Type: pageType}
	if number != "" {
		part.Details = append(part.Details, mods.Detail{Type: mods.DetailPageNumber, Number: number})
	}
	if index != "" {
		part.Details = append(part.Details, mods.Detail{Type: mods.DetailPageIndex, Number: index})
	}
	r.Parts = []mods.Part{part}
}

// PartType returns the first non-empty part type.
func PartType(r *mods.Record) string {
	for _, p := range r.Parts {
		if p.Type != "" {
			return p.Type
		}
	}
	return ""
}

// buildSummary derives the Dublin Core projection shared by all mappers.
func buildSummary(r *mods.Record, ctx Context) *mods.Summary {
	s := &mods.Summary{
		Title: r.MainTitle(),
		Type:  string(ctx.Model),
	}
	for _, oi := range r.OriginInfos {
		if s.Publisher == "" {
			s.Publisher = oi.Publisher
		}
		for _, d := range oi.DatesIssued {
			if s.Date == "" && d.Value != "" {
				s.Date = d.Value
			}
		}
	}
	for _, p := range r.Parts {
		for _, e := range p.Extents {
			if s.Coverage == "" && e.Start != "" {
				s.Coverage = e.Start
			}
		}
	}
	for _, n := range r.Notes {
		if n.Value != "" {
			s.Description = append(s.Description, n.Value)
		}
	}
	for _, id := range r.Identifiers {
		if v := ident.Normalize(id.Type, id.Value); v != "" {
			s.Identifiers = append(s.Identifiers, v)
		}
	}
	return s
}

// extractView pulls the edit-view fields out of a record. The returned
// remainder record has those fields removed.
func extractView(r *mods.Record, withPageFields bool) *EditView {
	view := &EditView{}
	if withPageFields {
		view.PageType = PartType(r)
		view.PageNumber = r.Detail(mods.DetailPageNumber)
		view.PageIndex = r.Detail(mods.DetailPageIndex)
	}
	if r.RecordInfo != nil {
		view.DescriptionStandard = r.RecordInfo.DescriptionStandard
	}

	rest := r.Clone()
	if withPageFields {
		rest.Parts = nil
	}
	if rest.RecordInfo != nil {
		rest.RecordInfo.DescriptionStandard = ""
		if *rest.RecordInfo == (mods.RecordInfo{}) {
			rest.RecordInfo = nil
		}
	}
	view.Record = rest
	return view
}

// applyView reinserts edit-view fields at their canonical location. Values
// set in the view win over values found in the raw companion record; when
// both are empty the field is omitted. Intermediate structures (part,
// recordInfo) are created on demand.
func applyView(view *EditView, raw *mods.Record, withPageFields bool) *mods.Record {
	var out *mods.Record
	switch {
	case view.Record != nil:
		out = view.Record.Clone()
	case raw != nil:
		out = raw.Clone()
	default:
		out = &mods.Record{}
	}

	pick := func(explicit, fallback string) string {
		if explicit != "" {
			return explicit
		}
		return fallback
	}

	if withPageFields {
		var rawType, rawNumber, rawIndex string
		if raw != nil {
			rawType = PartType(raw)
			rawNumber = raw.Detail(mods.DetailPageNumber)
			rawIndex = raw.Detail(mods.DetailPageIndex)
		}
		pageType := pick(view.PageType, rawType)
		number := pick(view.PageNumber, rawNumber)
		index := pick(view.PageIndex, rawIndex)

		out.Parts = nil
		if pageType != "" || number != "" || index != "" {
			part := mods.Part{Type: pageType}
			if number != "" {
				part.Details = append(part.Details, mods.Detail{Type: mods.DetailPageNumber, Number: number})
			}
			if index != "" {
				part.Details = append(part.Details, mods.Detail{Type: mods.DetailPageIndex, Number: index})
			}
			out.Parts = []mods.Part{part}
		}
	}

	var rawStandard string
	if raw != nil && raw.RecordInfo != nil {
		rawStandard = raw.RecordInfo.DescriptionStandard
	}
	if standard := pick(view.DescriptionStandard, rawStandard); standard != "" {
		if out.RecordInfo == nil {
			out.RecordInfo = &mods.RecordInfo{}
		}
		out.RecordInfo.DescriptionStandard = standard
	}

	return out
}
