package mods

import (
	"encoding/xml"
	"fmt"
)

// Summary is the Dublin Core projection derived from a record. It is written
// to the DC datastream and pushed to the search feeder.
type Summary struct {
	XMLName     xml.Name `xml:"dc" json:"-"`
	Title       string   `xml:"title,omitempty" json:"title,omitempty"`
	Type        string   `xml:"type,omitempty" json:"type,omitempty"`
	Date        string   `xml:"date,omitempty" json:"date,omitempty"`
	Coverage    string   `xml:"coverage,omitempty" json:"coverage,omitempty"`
	Publisher   string   `xml:"publisher,omitempty" json:"publisher,omitempty"`
	Description []string `xml:"description" json:"description,omitempty"`
	Identifiers []string `xml:"identifier" json:"identifier,omitempty"`
}

// MarshalSummary serializes the summary as a standalone XML document.
func MarshalSummary(s *Summary) ([]byte, error) {
	data, err := xml.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dc summary: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}
