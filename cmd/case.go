/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"
	"github.com/spf13/cobra"

	"github.com/uclimate/gorad/geometry"
	"github.com/uclimate/gorad/mesh"
	"github.com/uclimate/gorad/parallel"
	"github.com/uclimate/gorad/solar"
	"github.com/uclimate/gorad/trace"
)

// partition is one rank's share of the case: its boundary, volume region and
// face agglomeration.
type partition struct {
	B   *mesh.Boundary
	VR  *mesh.VolumeRegion
	Agg *mesh.Agglomeration
}

// caseFlags reads the persistent case flags of a subcommand.
func caseFlags(cmd *cobra.Command) (dir string, np int) {
	dir, _ = cmd.Flags().GetString("case")
	np, _ = cmd.Flags().GetInt("partitions")
	return
}

// partitionDir is the rank's subdirectory for decomposed cases; single
// partition cases live in the case root.
func partitionDir(dir string, rank, np int) string {
	if np == 1 {
		return dir
	}
	return filepath.Join(dir, fmt.Sprintf("processor%d", rank))
}

// agglomFile maps fine boundary faces onto coarse radiative elements.
type agglomFile struct {
	NCoarse      int   `json:"nCoarse"`
	FineToCoarse []int `json:"fineToCoarse"`
}

// loadPartition reads the rank's mesh and agglomeration. A missing
// agglomeration file means every fine face is its own coarse element.
func loadPartition(dir string, rank, np int) (*partition, error) {
	pdir := partitionDir(dir, rank, np)
	b, vr, err := mesh.Read(filepath.Join(pdir, "mesh.yaml"))
	if err != nil {
		return nil, err
	}
	p := &partition{B: b, VR: vr}

	aggPath := filepath.Join(pdir, "agglomeration.yaml")
	data, err := ioutil.ReadFile(aggPath)
	if os.IsNotExist(err) {
		p.Agg = mesh.Identity(b)
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	var af agglomFile
	if err = yaml.Unmarshal(data, &af); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", aggPath, err)
	}
	if p.Agg, err = mesh.Agglomerate(b, af.FineToCoarse, af.NCoarse); err != nil {
		return nil, fmt.Errorf("%s: %w", aggPath, err)
	}
	return p, nil
}

// loadTables reads the solar environment time tables of the case. The cloud
// cover table is optional.
func loadTables(dir string) (*solar.Tables, error) {
	var (
		sdir = filepath.Join(dir, "solar")
		tb   = &solar.Tables{}
		err  error
	)
	if tb.SunPos, err = solar.LoadVectorTable(filepath.Join(sdir, "sunPos.csv")); err != nil {
		return nil, err
	}
	if tb.IDN, err = solar.LoadScalarTable(filepath.Join(sdir, "IDN.csv")); err != nil {
		return nil, err
	}
	if tb.Idif, err = solar.LoadScalarTable(filepath.Join(sdir, "Idif.csv")); err != nil {
		return nil, err
	}
	if tb.Tambient, err = solar.LoadScalarTable(filepath.Join(sdir, "Tambient.csv")); err != nil {
		return nil, err
	}
	ccPath := filepath.Join(sdir, "cloudCover.csv")
	if _, statErr := os.Stat(ccPath); statErr == nil {
		if tb.CloudCover, err = solar.LoadScalarTable(ccPath); err != nil {
			return nil, err
		}
	}
	return tb, nil
}

// wallFieldEntry sets uniform surface properties on one patch.
type wallFieldEntry struct {
	Patch      string   `json:"patch"`
	Emissivity *float64 `json:"emissivity"`
	Albedo     *float64 `json:"albedo"`
	T          *float64 `json:"T"`
	QrExt      *float64 `json:"qrExt"`
}

// loadWallFields builds the surface property fields of the partition,
// optionally overridden per patch by wallFields.yaml.
func loadWallFields(dir string, rank, np int, b *mesh.Boundary) (*mesh.WallFields, error) {
	wf := mesh.NewWallFields(b.NRadiationFaces())
	path := filepath.Join(partitionDir(dir, rank, np), "wallFields.yaml")
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return wf, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []wallFieldEntry
	if err = yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for _, e := range entries {
		set := func(field string, v *float64) error {
			if v == nil {
				return nil
			}
			return wf.SetPatchUniform(b, e.Patch, field, *v)
		}
		if err = set("emissivity", e.Emissivity); err != nil {
			return nil, err
		}
		if err = set("albedo", e.Albedo); err != nil {
			return nil, err
		}
		if err = set("T", e.T); err != nil {
			return nil, err
		}
		if err = set("qrExt", e.QrExt); err != nil {
			return nil, err
		}
	}
	return wf, nil
}

func artifactsDir(dir string) string { return filepath.Join(dir, "artifacts") }

func tracePath(dir string, rank int) string {
	return filepath.Join(artifactsDir(dir), fmt.Sprintf("trace_%d.gob", rank))
}

func laiPath(dir string, rank int) string {
	return filepath.Join(artifactsDir(dir), fmt.Sprintf("lai_%d.gob", rank))
}

// buildIndex gathers the per-rank coarse element counts into a global index.
func buildIndex(c *parallel.Comm, rank, nLocal int) *parallel.GlobalIndex {
	var (
		parts = parallel.AllGather(c, rank, []int{nLocal})
		sizes = make([]int, len(parts))
	)
	for r := range parts {
		sizes[r] = parts[r][0]
	}
	return parallel.NewGlobalIndex(sizes)
}

// gatherSurface triangulates every rank's wall faces and assembles the
// global obstruction surface, remapping patch indices so the gathered
// triangles address one concatenated patch-name list.
func gatherSurface(c *parallel.Comm, rank int, gi *parallel.GlobalIndex,
	p *partition) *geometry.TriSurface {

	names := make([]string, len(p.B.Patches))
	for i := range p.B.Patches {
		names[i] = p.B.Patches[i].Name
	}
	var (
		tris     = trace.Triangulate(p.B, p.Agg, gi.ToGlobal(rank, 0))
		allNames = parallel.AllGather(c, rank, names)
		allTris  = parallel.AllGather(c, rank, tris)

		global     []geometry.Triangle
		globalName []string
		offset     int
	)
	for r := range allTris {
		for _, t := range allTris[r] {
			t.Patch += offset
			global = append(global, t)
		}
		globalName = append(globalName, allNames[r]...)
		offset += len(allNames[r])
	}
	return geometry.NewTriSurface(global, globalName)
}

// gatherElements concatenates the coarse elements of all ranks in global
// order.
func gatherElements(c *parallel.Comm, rank int, local []mesh.CoarseElement) []mesh.CoarseElement {
	var (
		parts  = parallel.AllGather(c, rank, local)
		global []mesh.CoarseElement
	)
	for _, p := range parts {
		global = append(global, p...)
	}
	return global
}

// gatherDomain is the union of all partition boundary bounds.
func gatherDomain(c *parallel.Comm, rank int, b *mesh.Boundary) geometry.BBox {
	local := b.Bounds()
	return geometry.BBox{
		Min: geometry.Vec(parallel.Reduce(c, rank, [3]float64(local.Min), parallel.MinVec3)),
		Max: geometry.Vec(parallel.Reduce(c, rank, [3]float64(local.Max), parallel.MaxVec3)),
	}
}
