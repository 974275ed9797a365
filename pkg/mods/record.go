// Package mods models the MODS subset manipulated by the mapping and export
// pipeline. Records are built fresh from storage, transformed in memory and
// either written back or serialized into a package; they are never cached.
package mods

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
)

// Well-known metadata values.
const (
	DescriptionAACR = "aacr"
	DescriptionRDA  = "rda"

	BornDigital = "born digital"

	PageTypeNormal = "normalPage"

	DetailPageNumber = "pageNumber"
	DetailPageIndex  = "pageIndex"
)

// Record is one bibliographic description. Field order follows the MODS
// element order so serialized packages stay stable.
type Record struct {
	XMLName              xml.Name              `xml:"mods" json:"-"`
	Titles               []TitleInfo           `xml:"titleInfo" json:"titleInfo,omitempty"`
	TypeOfResource       string                `xml:"typeOfResource,omitempty" json:"typeOfResource,omitempty"`
	Genres               []Genre               `xml:"genre" json:"genre,omitempty"`
	OriginInfos          []OriginInfo          `xml:"originInfo" json:"originInfo,omitempty"`
	PhysicalDescriptions []PhysicalDescription `xml:"physicalDescription" json:"physicalDescription,omitempty"`
	Notes                []Note                `xml:"note" json:"note,omitempty"`
	Identifiers          []Identifier          `xml:"identifier" json:"identifier,omitempty"`
	Parts                []Part                `xml:"part" json:"part,omitempty"`
	RecordInfo           *RecordInfo           `xml:"recordInfo,omitempty" json:"recordInfo,omitempty"`
}

type TitleInfo struct {
	Type       string `xml:"type,attr,omitempty" json:"type,omitempty"`
	NonSort    string `xml:"nonSort,omitempty" json:"nonSort,omitempty"`
	Title      string `xml:"title,omitempty" json:"title,omitempty"`
	SubTitle   string `xml:"subTitle,omitempty" json:"subTitle,omitempty"`
	PartNumber string `xml:"partNumber,omitempty" json:"partNumber,omitempty"`
	PartName   string `xml:"partName,omitempty" json:"partName,omitempty"`
}

type Genre struct {
	Type  string `xml:"type,attr,omitempty" json:"type,omitempty"`
	Value string `xml:",chardata" json:"value"`
}

type OriginInfo struct {
	EventType   string `xml:"eventType,attr,omitempty" json:"eventType,omitempty"`
	Publisher   string `xml:"publisher,omitempty" json:"publisher,omitempty"`
	Place       string `xml:"place>placeTerm,omitempty" json:"place,omitempty"`
	DatesIssued []Date `xml:"dateIssued" json:"dateIssued,omitempty"`
}

type Date struct {
	Encoding  string `xml:"encoding,attr,omitempty" json:"encoding,omitempty"`
	Qualifier string `xml:"qualifier,attr,omitempty" json:"qualifier,omitempty"`
	Value     string `xml:",chardata" json:"value"`
}

type PhysicalDescription struct {
	Forms         []Form `xml:"form" json:"form,omitempty"`
	Extent        string `xml:"extent,omitempty" json:"extent,omitempty"`
	DigitalOrigin string `xml:"digitalOrigin,omitempty" json:"digitalOrigin,omitempty"`
}

type Form struct {
	Authority string `xml:"authority,attr,omitempty" json:"authority,omitempty"`
	Value     string `xml:",chardata" json:"value"`
}

type Note struct {
	Type  string `xml:"type,attr,omitempty" json:"type,omitempty"`
	Value string `xml:",chardata" json:"value"`
}

type Identifier struct {
	Type  string `xml:"type,attr,omitempty" json:"type,omitempty"`
	Value string `xml:",chardata" json:"value"`
}

// Part carries page and issue numbering. A page object has at most one part
// after normalization.
type Part struct {
	Type    string   `xml:"type,attr,omitempty" json:"type,omitempty"`
	Details []Detail `xml:"detail" json:"detail,omitempty"`
	Extents []Extent `xml:"extent" json:"extent,omitempty"`
}

type Detail struct {
	Type    string `xml:"type,attr,omitempty" json:"type,omitempty"`
	Number  string `xml:"number,omitempty" json:"number,omitempty"`
	Caption string `xml:"caption,omitempty" json:"caption,omitempty"`
}

type Extent struct {
	Unit  string `xml:"unit,attr,omitempty" json:"unit,omitempty"`
	Start string `xml:"start,omitempty" json:"start,omitempty"`
	End   string `xml:"end,omitempty" json:"end,omitempty"`
}

type RecordInfo struct {
	DescriptionStandard string `xml:"descriptionStandard,omitempty" json:"descriptionStandard,omitempty"`
	RecordOrigin        string `xml:"recordOrigin,omitempty" json:"recordOrigin,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		// the record is a plain data tree, marshalling cannot fail
		panic(err)
	}
	c := &Record{}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}
	return c
}

// MainTitle returns the first untyped title or an empty string.
func (r *Record) MainTitle() string {
	for _, t := range r.Titles {
		if t.Type == "" {
			return t.Title
		}
	}
	return ""
}

// SetMainTitle replaces the first untyped title, creating the titleInfo
// element when missing.
func (r *Record) SetMainTitle(title string) {
	for i, t := range r.Titles {
		if t.Type == "" {
			r.Titles[i].Title = title
			return
		}
	}
	r.Titles = append(r.Titles, TitleInfo{Title: title})
}

// Detail returns the number of the first detail of the given type across all
// parts, or an empty string.
func (r *Record) Detail(detailType string) string {
	for _, p := range r.Parts {
		for _, d := range p.Details {
			if d.Type == detailType && d.Number != "" {
				return d.Number
			}
		}
	}
	return ""
}

// Marshal serializes the record as a standalone XML document.
func Marshal(r *Record) ([]byte, error) {
	data, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mods: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

// Unmarshal parses a MODS document. An empty payload yields an empty record
// so objects created without a description stay processable.
func Unmarshal(data []byte) (*Record, error) {
	r := &Record{}
	if len(data) == 0 {
		return r, nil
	}
	if err := xml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to parse mods: %w", err)
	}
	return r, nil
}
