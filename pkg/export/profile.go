package export

import (
	"github.com/proarc/proarc-api/pkg/mapper"
	"github.com/proarc/proarc-api/pkg/tree"
)

// Profile selects which tree nodes enter a package and how their files are
// named. Profiles are pluggable strategies over the full tree.
type Profile interface {
	Name() string
	// Select returns the nodes to export in manifest order.
	Select(root *tree.Element) []*tree.Element
	// HasContent reports whether objects of the model carry an original
	// content file.
	HasContent(m mapper.ModelID) bool
	// FileRole returns the token used in metadata file names.
	FileRole(m mapper.ModelID) string
}

// fileRole maps a model to its metadata file token, e.g. mods_volume.xml.
func fileRole(m mapper.ModelID) string {
	switch m {
	case mapper.Page, mapper.NdkPage, mapper.NdkAudioPage, mapper.OldPrintPage:
		return "page"
	case mapper.NdkMonographVolume, mapper.NdkEMonographVolume,
		mapper.NdkPeriodicalVolume, mapper.OldPrintVolume:
		return "volume"
	case mapper.NdkMonographTitle, mapper.NdkEMonographTitle,
		mapper.NdkPeriodical, mapper.NdkEPeriodical:
		return "title"
	case mapper.NdkPeriodicalIssue, mapper.NdkEPeriodicalIssue:
		return "issue"
	case mapper.NdkPeriodicalSupplement, mapper.NdkMonographSupplement, mapper.OldPrintSupplement:
		return "supplement"
	case mapper.NdkArticle, mapper.NdkEArticle:
		return "article"
	case mapper.NdkChapter, mapper.NdkEChapter, mapper.OldPrintChapter:
		return "chapter"
	default:
		return "object"
	}
}

// NDKProfile is the standard package profile: every tree node is exported,
// content files come from page-like leaves.
type NDKProfile struct{}

func (NDKProfile) Name() string { return "ndk" }

func (NDKProfile) Select(root *tree.Element) []*tree.Element {
	var selected []*tree.Element
	_ = tree.Walk(root, func(e *tree.Element) error {
		selected = append(selected, e)
		return nil
	})
	return selected
}

func (NDKProfile) HasContent(m mapper.ModelID) bool { return mapper.IsPage(m) }

func (NDKProfile) FileRole(m mapper.ModelID) string { return fileRole(m) }

// OldPrintProfile exports only the old-print subset of a tree (plus the root
// so a package is never empty of structure).
type OldPrintProfile struct{}

func (OldPrintProfile) Name() string { return "oldprint" }

func (OldPrintProfile) Select(root *tree.Element) []*tree.Element {
	var selected []*tree.Element
	_ = tree.Walk(root, func(e *tree.Element) error {
		if e == root || mapper.IsOldPrint(e.Model) {
			selected = append(selected, e)
		}
		return nil
	})
	return selected
}

func (OldPrintProfile) HasContent(m mapper.ModelID) bool {
	return m == mapper.OldPrintPage || m == mapper.Page
}

func (OldPrintProfile) FileRole(m mapper.ModelID) string { return fileRole(m) }

// ProfileByName resolves a profile token from the API or a stored job.
func ProfileByName(name string) (Profile, bool) {
	switch name {
	case "", "ndk":
		return NDKProfile{}, true
	case "oldprint":
		return OldPrintProfile{}, true
	default:
		return nil, false
	}
}
