package mapper

import (
	"errors"
	"fmt"
	"sort"
)

// ModelID classifies the structural role of a digital object and selects the
// mapper that rewrites its metadata.
type ModelID string

const (
	Page         ModelID = "model:page"
	NdkPage      ModelID = "model:ndkpage"
	NdkAudioPage ModelID = "model:ndkaudiopage"

	NdkPeriodical           ModelID = "model:ndkperiodical"
	NdkPeriodicalVolume     ModelID = "model:ndkperiodicalvolume"
	NdkPeriodicalIssue      ModelID = "model:ndkperiodicalissue"
	NdkPeriodicalSupplement ModelID = "model:ndkperiodicalsupplement"
	NdkArticle              ModelID = "model:ndkarticle"

	NdkMonographVolume     ModelID = "model:ndkmonographvolume"
	NdkMonographTitle      ModelID = "model:ndkmonographtitle"
	NdkMonographSupplement ModelID = "model:ndkmonographsupplement"
	NdkChapter             ModelID = "model:ndkchapter"
	NdkPicture             ModelID = "model:ndkpicture"
	NdkMap                 ModelID = "model:ndkmap"
	NdkSheetMusic          ModelID = "model:ndksheetmusic"

	NdkSong                ModelID = "model:ndksong"
	NdkTrack               ModelID = "model:ndktrack"
	NdkPhonographCylinder  ModelID = "model:ndkphonographcylinder"
	NdkMusicDocument       ModelID = "model:ndkmusicdocument"

	NdkEMonographVolume ModelID = "model:ndkemonographvolume"
	NdkEMonographTitle  ModelID = "model:ndkemonographtitle"
	NdkEPeriodical      ModelID = "model:ndkeperiodical"
	NdkEPeriodicalIssue ModelID = "model:ndkeperiodicalissue"
	NdkEArticle         ModelID = "model:ndkearticle"
	NdkEChapter         ModelID = "model:ndkechapter"

	OldPrintPage       ModelID = "model:oldprintpage"
	OldPrintVolume     ModelID = "model:oldprintvolume"
	OldPrintSupplement ModelID = "model:oldprintsupplement"
	OldPrintChapter    ModelID = "model:oldprintchapter"
	OldPrintGraphics   ModelID = "model:oldprintgraphics"
	OldPrintMap        ModelID = "model:oldprintmap"
	OldPrintSheetMusic ModelID = "model:oldprintsheetmusic"
)

// IsPage reports whether the model describes a page-like leaf carrying
// scanned or recorded content.
func IsPage(m ModelID) bool {
	switch m {
	case Page, NdkPage, NdkAudioPage, OldPrintPage:
		return true
	}
	return false
}

// IsOldPrint reports whether the model belongs to the old-print family.
func IsOldPrint(m ModelID) bool {
	switch m {
	case OldPrintPage, OldPrintVolume, OldPrintSupplement, OldPrintChapter,
		OldPrintGraphics, OldPrintMap, OldPrintSheetMusic:
		return true
	}
	return false
}

// ErrUnknownModel marks a model without a registered mapper. This is a
// configuration error, operations hitting it must abort.
var ErrUnknownModel = errors.New("unknown model")

// Registry resolves a ModelID to its mapper. Every supported model has
// exactly one entry; the deep inheritance of mapper families is flattened
// into shared mapper values registered under several ids.
type Registry struct {
	mappers map[ModelID]Mapper
}

// NewRegistry builds the registry with all supported models.
func NewRegistry() *Registry {
	page := &pageMapper{genre: "page"}
	ndkPage := &pageMapper{genre: "page", forceTypeDefault: true}

	r := &Registry{mappers: map[ModelID]Mapper{
		Page:         page,
		OldPrintPage: page,
		NdkPage:      ndkPage,
		NdkAudioPage: ndkPage,

		NdkPeriodical:           &descMapper{genre: "title"},
		NdkPeriodicalVolume:     &descMapper{genre: "volume", labelDetail: "volume"},
		NdkPeriodicalIssue:      &descMapper{genre: "issue", labelDetail: "issue"},
		NdkPeriodicalSupplement: &descMapper{genre: "supplement"},
		NdkArticle:              &descMapper{genre: "article"},

		NdkMonographVolume:     &descMapper{genre: "volume", labelDetail: "volume"},
		NdkMonographTitle:      &descMapper{genre: "title"},
		NdkMonographSupplement: &descMapper{genre: "supplement"},
		NdkChapter:             &descMapper{genre: "chapter"},
		NdkPicture:             &descMapper{genre: "picture"},
		NdkMap:                 &descMapper{genre: "cartographic"},
		NdkSheetMusic:          &descMapper{genre: "sheetmusic"},

		NdkSong:               &descMapper{genre: "song"},
		NdkTrack:              &descMapper{genre: "track"},
		NdkPhonographCylinder: &descMapper{genre: "soundrecording"},
		NdkMusicDocument:      &descMapper{genre: "soundrecording"},

		NdkEMonographVolume: &descMapper{genre: "volume", labelDetail: "volume", bornDigital: true},
		NdkEMonographTitle:  &descMapper{genre: "title", bornDigital: true},
		NdkEPeriodical:      &descMapper{genre: "title", bornDigital: true},
		NdkEPeriodicalIssue: &descMapper{genre: "issue", labelDetail: "issue", bornDigital: true},
		NdkEArticle:         &descMapper{genre: "article", bornDigital: true},
		NdkEChapter:         &descMapper{genre: "chapter", bornDigital: true},

		OldPrintVolume:     &descMapper{genre: "volume", labelDetail: "volume"},
		OldPrintSupplement: &descMapper{genre: "supplement"},
		OldPrintChapter:    &descMapper{genre: "chapter"},
		OldPrintGraphics:   &descMapper{genre: "graphics"},
		OldPrintMap:        &descMapper{genre: "cartographic"},
		OldPrintSheetMusic: &descMapper{genre: "sheetmusic"},
	}}
	return r
}

// Get returns the mapper for the model or ErrUnknownModel.
func (r *Registry) Get(m ModelID) (Mapper, error) {
	mp, ok := r.mappers[m]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, m)
	}
	return mp, nil
}

// Models lists registered model ids in stable order.
func (r *Registry) Models() []ModelID {
	ids := make([]ModelID, 0, len(r.mappers))
	for id := range r.mappers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
