package export

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MetadataVersion is the package metadata format version. Downstream systems
// require at least 2.2.
const MetadataVersion = "2.2"

// Info is the package manifest written as info_<packageid>.xml. The item
// order mirrors the declared relation order of the exported tree.
type Info struct {
	XMLName         xml.Name `xml:"info"`
	Created         string   `xml:"created"`
	PackageID       string   `xml:"packageid"`
	MetadataVersion string   `xml:"metadataversion"`
	TitleID         string   `xml:"titleid,omitempty"`
	Creator         string   `xml:"creator,omitempty"`
	ItemList        ItemList `xml:"itemlist"`
}

type ItemList struct {
	ItemTotal int      `xml:"itemtotal,attr"`
	Items     []string `xml:"item"`
}

func newInfo(packageID, titleID, creator string, items []string) *Info {
	return &Info{
		Created:         time.Now().Format(time.RFC3339),
		PackageID:       packageID,
		MetadataVersion: MetadataVersion,
		TitleID:         titleID,
		Creator:         creator,
		ItemList: ItemList{
			ItemTotal: len(items),
			Items:     items,
		},
	}
}

func marshalInfo(info *Info) ([]byte, error) {
	data, err := xml.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal package info: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

// validateInfo checks the manifest against the info schema constraints.
// Violations are collected, not raised.
func validateInfo(info *Info) []string {
	var problems []string
	if strings.TrimSpace(info.PackageID) == "" {
		problems = append(problems, "info: packageid is empty")
	}
	if v, err := strconv.ParseFloat(info.MetadataVersion, 64); err != nil || v < 2.2 {
		problems = append(problems, fmt.Sprintf("info: metadataversion %q is below 2.2", info.MetadataVersion))
	}
	if info.ItemList.ItemTotal != len(info.ItemList.Items) {
		problems = append(problems, fmt.Sprintf("info: itemtotal %d does not match %d items",
			info.ItemList.ItemTotal, len(info.ItemList.Items)))
	}
	if len(info.ItemList.Items) == 0 {
		problems = append(problems, "info: itemlist is empty")
	}
	return problems
}
