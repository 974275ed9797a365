package mapper

import (
	"github.com/proarc/proarc-api/pkg/mods"
)

// pageMapper serves all page-like models. The legacy page and old-print page
// keep an absent page type empty while the NDK native pages force the
// normalPage sentinel; both policies are mandated by the respective
// cataloguing conventions.
type pageMapper struct {
	genre            string
	forceTypeDefault bool
}

func (m *pageMapper) Normalize(r *mods.Record, ctx Context) *mods.Record {
	EnsureGenre(r, m.genre)
	CanonicalizePart(r, m.forceTypeDefault)
	EnsureDescriptionStandard(r)
	return r
}

func (m *pageMapper) ToSummary(r *mods.Record, ctx Context) *mods.Summary {
	s := buildSummary(r, ctx)
	if s.Title == "" {
		s.Title = m.ToLabel(r)
	}
	return s
}

// ToLabel derives the short object label: the page number, suffixed by the
// page type when it is not the default, or "?" without a number.
func (m *pageMapper) ToLabel(r *mods.Record) string {
	number := r.Detail(mods.DetailPageNumber)
	if number == "" {
		return "?"
	}
	if t := PartType(r); t != "" && t != mods.PageTypeNormal {
		return number + ", " + t
	}
	return number
}

func (m *pageMapper) ToEditView(r *mods.Record) *EditView {
	return extractView(r, true)
}

func (m *pageMapper) FromEditView(view *EditView, raw *mods.Record) *mods.Record {
	return applyView(view, raw, true)
}
