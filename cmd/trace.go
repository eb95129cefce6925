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
	"errors"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/uclimate/gorad/geometry"
	"github.com/uclimate/gorad/parallel"
	"github.com/uclimate/gorad/properties"
	"github.com/uclimate/gorad/trace"
	"github.com/uclimate/gorad/vegetation"
)

// traceCmd represents the trace command
var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Ray-trace view factors and solar coupling coefficients",
	Long: `
Triangulates the boundary, gathers the global obstruction surface and traces
the coarse-element view factors and the per-timestamp sun and sky coupling
coefficients of every partition. Results are written to the case artifacts
directory for the solve step.

Run 'gorad lai' first when the case carries vegetation, so that canopy
attenuation enters the solar coefficients.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, np := caseFlags(cmd)
		return runTrace(dir, np)
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
}

func runTrace(dir string, np int) error {
	props, err := properties.LoadRadiation(filepath.Join(dir, "radiationProperties.yaml"))
	if err != nil {
		return err
	}
	tb, err := loadTables(dir)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(artifactsDir(dir), 0755); err != nil {
		return err
	}
	skyPos := geometry.Vec(props.SkyPosVector)

	return parallel.Run(np, func(rank int, c *parallel.Comm) error {
		p, err := loadPartition(dir, rank, np)
		if err != nil {
			return err
		}
		var (
			gi     = buildIndex(c, rank, len(p.Agg.Elements))
			surf   = gatherSurface(c, rank, gi, p)
			domain = gatherDomain(c, rank, p.B)
			global = gatherElements(c, rank, p.Agg.Elements)
		)
		log.WithFields(log.Fields{
			"rank":      rank,
			"elements":  len(p.Agg.Elements),
			"global":    gi.TotalSize(),
			"triangles": len(surf.Tris),
		}).Info("tracing view factors")

		F := trace.ViewFactors(rank, gi, p.Agg.Elements, global, surf)

		// Canopy attenuation from the LAI pre-pass, when one was run.
		var kcLAI [][]float64
		if pre, err := vegetation.LoadPassResult(laiPath(dir, rank)); err == nil {
			kcLAI = pre.KcLAIBoundary
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}

		sc, err := trace.ComputeSolar(p.B, p.Agg, surf, domain, tb, skyPos, kcLAI)
		if err != nil {
			return err
		}
		art := &trace.Artifacts{F: trace.NewFFragment(F), Solar: sc}
		return art.Save(tracePath(dir, rank))
	})
}
