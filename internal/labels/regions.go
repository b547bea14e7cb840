// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package labels

import "github.com/zouly-group/tadf-workbench/pkg/types"

// Assignment pairs a figure region with the label it was mapped to. Label
// is empty when no label was available for the region.
type Assignment struct {
	Region types.Region
	Label  string
}

// RegionMapper assigns caption labels to segmented figure regions.
type RegionMapper interface {
	Map(regions []types.Region, labels []string) []Assignment
}

// Positional maps the Nth region to the Nth label in sorted order. It
// assumes segmentation order follows caption enumeration order, which
// nothing verifies. Regions beyond the last label stay unmapped; labels
// beyond the last region are unused.
type Positional struct{}

// Map implements RegionMapper.
func (Positional) Map(regions []types.Region, labels []string) []Assignment {
	out := make([]Assignment, len(regions))
	for i, r := range regions {
		out[i].Region = r
		if i < len(labels) {
			out[i].Label = labels[i]
		}
	}
	return out
}
