package mapper

import (
	"github.com/proarc/proarc-api/pkg/mods"
)

// descMapper serves the descriptive (non-page) models: titles, volumes,
// issues, supplements, articles, chapters and the audio hierarchy. Instances
// differ only in default genre, label source and the born-digital flag.
type descMapper struct {
	genre string
	// labelDetail selects the part detail used for the label (volume, issue);
	// empty means the main title.
	labelDetail string
	bornDigital bool
}

func (m *descMapper) Normalize(r *mods.Record, ctx Context) *mods.Record {
	EnsureGenre(r, m.genre)
	if m.bornDigital {
		EnsureDigitalOrigin(r)
	}
	EnsureDescriptionStandard(r)
	return r
}

func (m *descMapper) ToSummary(r *mods.Record, ctx Context) *mods.Summary {
	return buildSummary(r, ctx)
}

func (m *descMapper) ToLabel(r *mods.Record) string {
	if m.labelDetail != "" {
		if n := r.Detail(m.labelDetail); n != "" {
			return n
		}
	}
	if t := r.MainTitle(); t != "" {
		return t
	}
	return "?"
}

func (m *descMapper) ToEditView(r *mods.Record) *EditView {
	return extractView(r, false)
}

func (m *descMapper) FromEditView(view *EditView, raw *mods.Record) *mods.Record {
	return applyView(view, raw, false)
}
