package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proarc/proarc-api/pkg/mods"
)

func messyRecord() *mods.Record {
	return &mods.Record{
		Titles: []mods.TitleInfo{{Title: "Zlatá Praha"}},
		Parts: []mods.Part{
			{
				Type: "titlePage",
				Details: []mods.Detail{
					{Type: mods.DetailPageNumber, Number: "3"},
					{Type: mods.DetailPageNumber, Number: "99"},
				},
			},
			{
				Details: []mods.Detail{
					{Type: mods.DetailPageIndex, Number: "4"},
					{Type: mods.DetailPageIndex, Number: "100"},
				},
			},
		},
		Notes:       []mods.Note{{Value: "damaged corner"}},
		Identifiers: []mods.Identifier{{Type: "isbn", Value: "0-306-40615-2"}},
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	reg := NewRegistry()
	for _, model := range reg.Models() {
		m, err := reg.Get(model)
		require.NoError(t, err)

		ctx := Context{PID: "uuid:1", Model: model}
		once := m.Normalize(messyRecord(), ctx)
		twice := m.Normalize(once.Clone(), ctx)
		assert.Equal(t, once, twice, "normalize must be idempotent for %s", model)
	}
}

func TestNormalizeInjectsDefaults(t *testing.T) {
	reg := NewRegistry()
	for _, model := range reg.Models() {
		m, err := reg.Get(model)
		require.NoError(t, err)

		r := m.Normalize(&mods.Record{}, Context{PID: "uuid:1", Model: model})
		assert.NotEmpty(t, r.Genres, "genre list must be non-empty for %s", model)
		require.NotNil(t, r.RecordInfo, "recordInfo must exist for %s", model)
		assert.Equal(t, mods.DescriptionAACR, r.RecordInfo.DescriptionStandard)
	}
}

func TestNormalizeKeepsRDA(t *testing.T) {
	reg := NewRegistry()
	m, err := reg.Get(NdkMonographVolume)
	require.NoError(t, err)

	r := &mods.Record{RecordInfo: &mods.RecordInfo{DescriptionStandard: "RDA"}}
	m.Normalize(r, Context{Model: NdkMonographVolume})
	assert.Equal(t, mods.DescriptionRDA, r.RecordInfo.DescriptionStandard)
}

func TestNormalizeCollapsesDuplicateParts(t *testing.T) {
	reg := NewRegistry()
	m, err := reg.Get(NdkPage)
	require.NoError(t, err)

	r := m.Normalize(messyRecord(), Context{Model: NdkPage})
	require.Len(t, r.Parts, 1)
	assert.Equal(t, "titlePage", r.Parts[0].Type)
	assert.Equal(t, "3", r.Detail(mods.DetailPageNumber))
	assert.Equal(t, "4", r.Detail(mods.DetailPageIndex))
}

func TestPageTypeDefaultingPolicies(t *testing.T) {
	reg := NewRegistry()

	legacy, err := reg.Get(Page)
	require.NoError(t, err)
	r := legacy.Normalize(&mods.Record{
		Parts: []mods.Part{{Details: []mods.Detail{{Type: mods.DetailPageNumber, Number: "1"}}}},
	}, Context{Model: Page})
	assert.Equal(t, "", PartType(r), "legacy page keeps an absent type empty")

	ndk, err := reg.Get(NdkPage)
	require.NoError(t, err)
	r = ndk.Normalize(&mods.Record{
		Parts: []mods.Part{{Details: []mods.Detail{{Type: mods.DetailPageNumber, Number: "1"}}}},
	}, Context{Model: NdkPage})
	assert.Equal(t, mods.PageTypeNormal, PartType(r), "ndk page forces the default sentinel")
}

func TestBornDigitalModels(t *testing.T) {
	reg := NewRegistry()
	for _, model := range []ModelID{NdkEMonographVolume, NdkEPeriodical, NdkEArticle} {
		m, err := reg.Get(model)
		require.NoError(t, err)
		r := m.Normalize(&mods.Record{}, Context{Model: model})
		require.NotEmpty(t, r.PhysicalDescriptions, "physical description must exist for %s", model)
		assert.Equal(t, mods.BornDigital, r.PhysicalDescriptions[0].DigitalOrigin)
	}
}

func TestToSummaryDoesNotMutate(t *testing.T) {
	reg := NewRegistry()
	m, err := reg.Get(NdkPage)
	require.NoError(t, err)

	r := messyRecord()
	before := r.Clone()
	s := m.ToSummary(r, Context{PID: "uuid:1", Model: NdkPage})
	assert.Equal(t, before, r, "ToSummary must not mutate its input")

	assert.Equal(t, "Zlatá Praha", s.Title)
	assert.Equal(t, string(NdkPage), s.Type)
	assert.Equal(t, []string{"damaged corner"}, s.Description)
	assert.Equal(t, []string{"9780306406157"}, s.Identifiers)
}

func TestPageLabel(t *testing.T) {
	reg := NewRegistry()
	m, err := reg.Get(NdkPage)
	require.NoError(t, err)

	assert.Equal(t, "?", m.ToLabel(&mods.Record{}))
	assert.Equal(t, "12", m.ToLabel(&mods.Record{
		Parts: []mods.Part{{Type: mods.PageTypeNormal, Details: []mods.Detail{{Type: mods.DetailPageNumber, Number: "12"}}}},
	}))
	assert.Equal(t, "12, titlePage", m.ToLabel(&mods.Record{
		Parts: []mods.Part{{Type: "titlePage", Details: []mods.Detail{{Type: mods.DetailPageNumber, Number: "12"}}}},
	}))
}

func TestVolumeLabel(t *testing.T) {
	reg := NewRegistry()
	m, err := reg.Get(NdkMonographVolume)
	require.NoError(t, err)

	assert.Equal(t, "2", m.ToLabel(&mods.Record{
		Titles: []mods.TitleInfo{{Title: "Dějiny"}},
		Parts:  []mods.Part{{Details: []mods.Detail{{Type: "volume", Number: "2"}}}},
	}))
	assert.Equal(t, "Dějiny", m.ToLabel(&mods.Record{Titles: []mods.TitleInfo{{Title: "Dějiny"}}}))
	assert.Equal(t, "?", m.ToLabel(&mods.Record{}))
}

func TestEditViewRoundTrip(t *testing.T) {
	reg := NewRegistry()
	m, err := reg.Get(NdkPage)
	require.NoError(t, err)

	r := m.Normalize(messyRecord(), Context{Model: NdkPage})
	view := m.ToEditView(r)
	assert.Equal(t, "titlePage", view.PageType)
	assert.Equal(t, "3", view.PageNumber)
	assert.Equal(t, "4", view.PageIndex)
	assert.Equal(t, mods.DescriptionAACR, view.DescriptionStandard)
	assert.Empty(t, view.Record.Parts, "part fields are extracted out of the passthrough record")

	back := m.FromEditView(view, nil)
	assert.Equal(t, "titlePage", PartType(back))
	assert.Equal(t, "3", back.Detail(mods.DetailPageNumber))
	assert.Equal(t, "4", back.Detail(mods.DetailPageIndex))
	require.NotNil(t, back.RecordInfo)
	assert.Equal(t, mods.DescriptionAACR, back.RecordInfo.DescriptionStandard)
	assert.Equal(t, r.Titles, back.Titles)
}

func TestFromEditViewPrecedence(t *testing.T) {
	reg := NewRegistry()
	m, err := reg.Get(NdkPage)
	require.NoError(t, err)

	raw := &mods.Record{
		Parts: []mods.Part{{Type: "index", Details: []mods.Detail{{Type: mods.DetailPageNumber, Number: "7"}}}},
	}

	// explicit view values win over the raw companion payload
	out := m.FromEditView(&EditView{PageNumber: "8"}, raw)
	assert.Equal(t, "8", out.Detail(mods.DetailPageNumber))
	assert.Equal(t, "index", PartType(out), "missing view value falls back to the raw payload")

	// both empty: the field is omitted
	out = m.FromEditView(&EditView{}, &mods.Record{})
	assert.Empty(t, out.Parts)
	assert.Nil(t, out.RecordInfo)
}

func TestRegistryUnknownModel(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("model:bogus")
	assert.ErrorIs(t, err, ErrUnknownModel)
}
