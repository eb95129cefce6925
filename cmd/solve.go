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

	"github.com/gocarina/gocsv"
	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/uclimate/gorad/parallel"
	"github.com/uclimate/gorad/properties"
	"github.com/uclimate/gorad/radiosity"
	"github.com/uclimate/gorad/trace"
	"github.com/uclimate/gorad/vegetation"
)

// solveCmd represents the solve command
var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve the radiative exchange over the solar time table",
	Long: `
Loads the traced view factors and solar coefficients, assembles the global
exchange system on the coordinator and solves the short-wave and long-wave
radiosity balance at every timestamp of the sun table. Grass-covered patches
resolve a leaf energy balance that feeds its temperature back into the
long-wave exchange; vegetated volumes resolve the canopy balance from the
LAI pre-pass. Per-face fluxes are written as CSV to the case output
directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			dir, np  = caseFlags(cmd)
			wind, _  = cmd.Flags().GetFloat64("windSpeed")
			hum, _   = cmd.Flags().GetFloat64("humidity")
			delta, _ = cmd.Flags().GetFloat64("deltaCoeffs")
			prof, _  = cmd.Flags().GetBool("profile")
		)
		if prof {
			defer profile.Start(profile.ProfilePath(dir)).Stop()
		}
		return runSolve(dir, np, wind, hum, delta)
	},
}

func init() {
	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().Float64("windSpeed", 1.0, "ambient wind speed near the surfaces, m/s")
	solveCmd.Flags().Float64("humidity", 0.008, "ambient specific humidity, kg/kg")
	solveCmd.Flags().Float64("deltaCoeffs", 10.0, "inverse wall distance of the near-wall cells, 1/m")
	solveCmd.Flags().Bool("profile", false, "write a CPU profile to the case directory")
}

// fluxRecord is one face at one timestamp in the output table.
type fluxRecord struct {
	Time  float64 `csv:"time"`
	Rank  int     `csv:"rank"`
	Patch string  `csv:"patch"`
	Face  int     `csv:"face"`
	Qr    float64 `csv:"qr"`
	Qs    float64 `csv:"qs"`
	Tg    float64 `csv:"Tg"`
}

func runSolve(dir string, np int, wind, humidity, deltaCoeffs float64) error {
	radProps, err := properties.LoadRadiation(filepath.Join(dir, "radiationProperties.yaml"))
	if err != nil {
		return err
	}
	vegProps, err := properties.LoadVegetation(filepath.Join(dir, "vegetationProperties.yaml"))
	if err != nil {
		return err
	}
	grassProps, err := properties.LoadGrass(filepath.Join(dir, "grassProperties.yaml"))
	if err != nil {
		return err
	}
	tb, err := loadTables(dir)
	if err != nil {
		return err
	}
	outDir := filepath.Join(dir, "output")
	if err = os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	return parallel.Run(np, func(rank int, c *parallel.Comm) error {
		p, err := loadPartition(dir, rank, np)
		if err != nil {
			return err
		}
		fields, err := loadWallFields(dir, rank, np, p.B)
		if err != nil {
			return err
		}
		gi := buildIndex(c, rank, len(p.Agg.Elements))

		art, err := trace.LoadArtifacts(tracePath(dir, rank))
		if err != nil {
			return err
		}
		var (
			parts = parallel.AllGather(c, rank, []*trace.FFragment{art.F})
			frags = make([]*trace.FFragment, len(parts))
		)
		for r := range parts {
			frags[r] = parts[r][0]
		}

		var sys *radiosity.System
		if c.IsCoordinator(rank) {
			if sys, err = radiosity.NewSystem(radProps, gi, frags); err != nil {
				return err
			}
			log.WithField("elements", sys.N()).Info("assembled exchange system")
		}

		grassModel, err := vegetation.NewGrassModel(grassProps)
		if err != nil {
			return err
		}
		grassFaces := markGrassFaces(p, grassModel.Patches())

		var vegModel vegetation.Model
		if vegProps.Model != "none" && vegProps.Model != "" {
			pre, err := vegetation.LoadPassResult(laiPath(dir, rank))
			if err != nil {
				return err
			}
			if vegModel, err = vegetation.NewModel(vegProps, p.VR, pre); err != nil {
				return err
			}
		}

		part := &radiosity.Partition{
			B: p.B, A: p.Agg, Fields: fields, Solar: art.Solar,
		}
		if len(grassFaces) > 0 {
			part.GrassFace = make([]bool, p.B.NRadiationFaces())
			part.GrassTg = make([]float64, p.B.NRadiationFaces())
			for _, fi := range grassFaces {
				part.GrassFace[fi] = true
				part.GrassTg[fi] = fields.T[fi]
			}
		}
		ex := radiosity.NewExchange(rank, c, gi, part, sys, tb)

		var (
			_, pids = p.B.RadiationFaces()
			step    = radProps.UpdateInterval
			records []*fluxRecord
		)
		if step < 1 {
			step = 1
		}
		times := tb.SunPos.Times()
		for ti := 0; ti < len(times); ti += step {
			tm := times[ti]
			env, err := tb.At(tm)
			if err != nil {
				return err
			}

			qs, err := ex.UpdateShortWave(tm, nil)
			if err != nil {
				return err
			}
			qr, err := ex.UpdateLongWave(tm)
			if err != nil {
				return err
			}

			if len(grassFaces) > 0 {
				in := vegetation.GrassInput{
					Tc:          uniform(len(grassFaces), env.Tambient),
					Wc:          uniform(len(grassFaces), humidity),
					MagU:        uniform(len(grassFaces), wind),
					DeltaCoeffs: uniform(len(grassFaces), deltaCoeffs),
					Ts:          make([]float64, len(grassFaces)),
					Qs:          make([]float64, len(grassFaces)),
					Qr:          make([]float64, len(grassFaces)),
				}
				for k, fi := range grassFaces {
					in.Ts[k] = fields.T[fi]
					in.Qs[k] = qs[fi]
					in.Qr[k] = qr[fi]
				}
				res, err := grassModel.Calculate(in)
				if err != nil {
					return err
				}
				for k, fi := range grassFaces {
					part.GrassTg[fi] = res.Tg[k]
				}
				// The grass layer radiates at its own temperature.
				if qr, err = ex.UpdateLongWave(tm); err != nil {
					return err
				}
			}

			if vegModel != nil {
				n := len(p.VR.CellCenters)
				err = vegModel.Calculate(vegetation.CalcInput{
					Time: tm,
					MagU: uniform(n, wind),
					T:    uniform(n, env.Tambient),
					Q:    uniform(n, humidity),
				})
				if err != nil {
					return err
				}
			}

			for fi := range qr {
				rec := &fluxRecord{
					Time:  tm,
					Rank:  rank,
					Patch: p.B.Patches[pids[fi]].Name,
					Face:  fi,
					Qr:    qr[fi],
					Qs:    qs[fi],
				}
				if part.GrassFace != nil && part.GrassFace[fi] {
					rec.Tg = part.GrassTg[fi]
				}
				records = append(records, rec)
			}
			log.WithFields(log.Fields{"rank": rank, "time": tm}).Debug("radiation updated")
		}

		// The coordinator owns the output table.
		gathered := parallel.Gather(c, rank, records)
		if !c.IsCoordinator(rank) {
			return nil
		}
		var all []*fluxRecord
		for _, g := range gathered {
			all = append(all, g...)
		}
		f, err := os.Create(filepath.Join(outDir, "radiation.csv"))
		if err != nil {
			return err
		}
		defer f.Close()
		return gocsv.MarshalFile(&all, f)
	})
}

// markGrassFaces returns the indices of wall faces on the named patches.
func markGrassFaces(p *partition, patches []string) (faces []int) {
	if len(patches) == 0 {
		return nil
	}
	names := make(map[string]bool, len(patches))
	for _, n := range patches {
		names[n] = true
	}
	_, pids := p.B.RadiationFaces()
	for fi, pi := range pids {
		if names[p.B.Patches[pi].Name] && p.B.Patches[pi].IsWall() {
			faces = append(faces, fi)
		}
	}
	return
}

func uniform(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}
