package migrate

import (
	"context"
	"fmt"

	"github.com/proarc/proarc-api/pkg/mapper"
	"github.com/proarc/proarc-api/pkg/mods"
	"github.com/proarc/proarc-api/pkg/storage"
)

// defaultDateIssued fills the forced origin date of migrated monographs when
// the record has no date at all.
const defaultDateIssued = "1501-1800"

// fixFunc reshapes a record for its target model before renormalization.
type fixFunc func(ctx context.Context, e *Engine, r *mods.Record, parentPID string) error

// fixForModel selects the fix-up for the target model. An unknown target is
// a configuration error aborting the whole migration.
func fixForModel(target mapper.ModelID) (fixFunc, error) {
	switch target {
	case mapper.Page, mapper.OldPrintPage:
		return fixLegacyPage, nil
	case mapper.NdkPage, mapper.NdkAudioPage:
		return fixNdkPage, nil
	case mapper.NdkMonographVolume, mapper.NdkMonographTitle,
		mapper.NdkEMonographVolume, mapper.NdkEMonographTitle,
		mapper.OldPrintVolume:
		return fixMonograph, nil
	case mapper.NdkPeriodical, mapper.NdkPeriodicalVolume, mapper.NdkPeriodicalIssue,
		mapper.NdkPeriodicalSupplement, mapper.NdkMonographSupplement,
		mapper.NdkArticle, mapper.NdkEArticle, mapper.NdkChapter, mapper.NdkEChapter,
		mapper.OldPrintSupplement, mapper.OldPrintChapter, mapper.OldPrintGraphics,
		mapper.OldPrintMap, mapper.OldPrintSheetMusic:
		return fixDescriptive, nil
	default:
		return nil, fmt.Errorf("%w: no metadata fix for target %s", mapper.ErrUnknownModel, target)
	}
}

// fixLegacyPage canonicalizes page numbering and clears the page type when it
// equals the default sentinel; legacy page records omit the default.
func fixLegacyPage(ctx context.Context, e *Engine, r *mods.Record, parentPID string) error {
	mapper.CanonicalizePart(r, false)
	if len(r.Parts) > 0 && r.Parts[0].Type == mods.PageTypeNormal {
		r.Parts[0].Type = ""
	}
	return nil
}

// fixNdkPage canonicalizes page numbering and forces the default sentinel
// when the type is absent; NDK-native pages state the default explicitly.
func fixNdkPage(ctx context.Context, e *Engine, r *mods.Record, parentPID string) error {
	mapper.CanonicalizePart(r, true)
	return nil
}

// fixMonograph adopts the parent's title when a parent is supplied: the
// current title moves to partName and the parent title takes its place. A
// missing origin date is forced to the default range.
func fixMonograph(ctx context.Context, e *Engine, r *mods.Record, parentPID string) error {
	if parentPID != "" {
		parent, err := e.readRecord(ctx, parentPID)
		if err != nil {
			return fmt.Errorf("cannot read parent %s: %w", parentPID, err)
		}
		if parentTitle := parent.MainTitle(); parentTitle != "" {
			own := r.MainTitle()
			r.SetMainTitle(parentTitle)
			if own != "" {
				for i := range r.Titles {
					if r.Titles[i].Type == "" {
						r.Titles[i].PartName = own
						break
					}
				}
			}
		}
	}

	hasDate := false
	for _, oi := range r.OriginInfos {
		for _, d := range oi.DatesIssued {
			if d.Value != "" {
				hasDate = true
			}
		}
	}
	if !hasDate {
		if len(r.OriginInfos) == 0 {
			r.OriginInfos = append(r.OriginInfos, mods.OriginInfo{})
		}
		r.OriginInfos[0].DatesIssued = append(r.OriginInfos[0].DatesIssued,
			mods.Date{Qualifier: "approximate", Value: defaultDateIssued})
	}

	mapper.EnsureDescriptionStandard(r)
	return nil
}

// fixDescriptive only guarantees the description standard; the mapper's
// Normalize does the rest.
func fixDescriptive(ctx context.Context, e *Engine, r *mods.Record, parentPID string) error {
	mapper.EnsureDescriptionStandard(r)
	return nil
}

// readRecord loads the MODS record of an arbitrary pid.
func (e *Engine) readRecord(ctx context.Context, pid string) (*mods.Record, error) {
	obj, err := e.store.Find(ctx, pid)
	if err != nil {
		return nil, err
	}
	data, _, err := obj.Datastream(storage.DsMods)
	if err != nil {
		return nil, err
	}
	return mods.Unmarshal(data)
}
