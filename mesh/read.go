package mesh

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"

	"github.com/uclimate/gorad/geometry"
)

// caseFile is the on-disk yaml schema of a partition's mesh.
type caseFile struct {
	Patches []struct {
		Name  string         `json:"name"`
		Type  string         `json:"type"`
		Faces [][][3]float64 `json:"faces"`
	} `json:"patches"`
	Volume struct {
		CellCenters [][3]float64 `json:"cellCenters"`
		CellVolumes []float64    `json:"cellVolumes"`
		LAD         []float64    `json:"LAD"`
	} `json:"volume"`
}

// Read loads a partition boundary mesh and its volume region from a yaml
// case file.
func Read(path string) (b *Boundary, vr *VolumeRegion, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading mesh %s: %w", path, err)
	}
	var cf caseFile
	if err = yaml.Unmarshal(data, &cf); err != nil {
		return nil, nil, fmt.Errorf("parsing mesh %s: %w", path, err)
	}
	b = &Boundary{}
	for _, p := range cf.Patches {
		patch := Patch{Name: p.Name, Type: p.Type}
		for fi, pts := range p.Faces {
			if len(pts) < 3 {
				return nil, nil, fmt.Errorf("mesh %s: patch %s face %d has %d points",
					path, p.Name, fi, len(pts))
			}
			face := make([]geometry.Vec, len(pts))
			for i, q := range pts {
				face[i] = geometry.Vec(q)
			}
			patch.Faces = append(patch.Faces, NewFace(face))
		}
		b.Patches = append(b.Patches, patch)
	}
	nc := len(cf.Volume.CellCenters)
	if nc != len(cf.Volume.CellVolumes) {
		return nil, nil, fmt.Errorf("mesh %s: %d cell centers but %d volumes",
			path, nc, len(cf.Volume.CellVolumes))
	}
	vr = &VolumeRegion{
		CellVolumes: cf.Volume.CellVolumes,
		LAD:         cf.Volume.LAD,
	}
	for _, c := range cf.Volume.CellCenters {
		vr.CellCenters = append(vr.CellCenters, geometry.Vec(c))
	}
	if vr.LAD == nil {
		vr.LAD = make([]float64, nc)
	} else if len(vr.LAD) != nc {
		return nil, nil, fmt.Errorf("mesh %s: LAD field has %d values, %d cells",
			path, len(vr.LAD), nc)
	}
	return
}
