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
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/uclimate/gorad/geometry"
	"github.com/uclimate/gorad/mesh"
	"github.com/uclimate/gorad/parallel"
	"github.com/uclimate/gorad/properties"
	"github.com/uclimate/gorad/vegetation"
)

// laiCmd represents the lai command
var laiCmd = &cobra.Command{
	Use:   "lai",
	Short: "Pre-compute leaf area index fields along the sun direction",
	Long: `
Builds the Cartesian leaf-area-density grid of the vegetation regions and,
for every timestamp of the sun table, integrates the optical depth along the
sun direction: cumulative LAI per cell, the short-wave flux divergence inside
the canopy and the attenuation reaching each coarse boundary element.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, np := caseFlags(cmd)
		return runLAI(dir, np)
	},
}

func init() {
	rootCmd.AddCommand(laiCmd)
}

func runLAI(dir string, np int) error {
	vp, err := properties.LoadVegetation(filepath.Join(dir, "vegetationProperties.yaml"))
	if err != nil {
		return err
	}
	if vp.Model == "none" {
		log.Info("vegetation model is none, skipping LAI pre-pass")
		return nil
	}
	tb, err := loadTables(dir)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(artifactsDir(dir), 0755); err != nil {
		return err
	}
	cfg := vegetation.PassConfig{
		Kc:                vp.Kc,
		MinCellSizeFactor: vp.MinCellSizeFactor,
		Up:                geometry.Vec{0, 0, 1},
	}

	return parallel.Run(np, func(rank int, c *parallel.Comm) error {
		p, err := loadPartition(dir, rank, np)
		if err != nil {
			return err
		}
		var (
			gi     = buildIndex(c, rank, len(p.Agg.Elements))
			surf   = gatherSurface(c, rank, gi, p)
			domain = gatherDomain(c, rank, p.B)

			// The grid pipeline runs once, on the coordinator; the other
			// ranks only contribute their region and receive their rows.
			parts = parallel.Gather(c, rank, []*mesh.VolumeRegion{p.VR})
			elems = parallel.Gather(c, rank, p.Agg.Elements)
			all   [][]*vegetation.PassResult
		)
		if c.IsCoordinator(rank) {
			regions := make([]*mesh.VolumeRegion, len(parts))
			for r := range parts {
				regions[r] = parts[r][0]
			}
			log.WithFields(log.Fields{
				"partitions": len(regions),
				"times":      len(tb.SunPos.Times()),
			}).Info("running LAI pre-pass")

			results, err := vegetation.ComputeLAI(regions, elems, surf, domain, tb, cfg)
			if err != nil {
				return err
			}
			all = make([][]*vegetation.PassResult, len(results))
			for r, res := range results {
				all[r] = []*vegetation.PassResult{res}
			}
		}
		res := parallel.Scatter(c, rank, all)[0]
		return res.Save(laiPath(dir, rank))
	})
}
