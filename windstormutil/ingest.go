/*
Copyright © 2019 the windstorm authors.
This file is part of windstorm.

windstorm is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

windstorm is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with windstorm.  If not, see <http://www.gnu.org/licenses/>.
*/


package windstormutil

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/windstorm"
	"github.com/spatialmodel/windstorm/internal/hash"
)

// Ingest reads the footprint files specified in cfg, stacks them into a
// hazard and saves it to OutputFile. A run report and the ingestion
// metrics are written to ReportFile and MetricsFile when they are set.
func Ingest(ctx context.Context, cfg *viper.Viper, log logrus.FieldLogger) (*windstorm.Hazard, error) {
	c, err := AssemblerConfig(cfg)
	if err != nil {
		return nil, err
	}
	outputFile, err := checkOutputFile(cfg.GetString("OutputFile"))
	if err != nil {
		return nil, err
	}
	reportFile, err := checkAuxFile(cfg.GetString("ReportFile"))
	if err != nil {
		return nil, err
	}
	metricsFile, err := checkAuxFile(cfg.GetString("MetricsFile"))
	if err != nil {
		return nil, err
	}

	d := newDownloader(log)
	defer d.cleanup()
	files, err := footprintPaths(ctx, d, cfg.GetStringSlice("Footprints"))
	if err != nil {
		return nil, err
	}
	var centroids *windstorm.GeoGrid
	if p := os.ExpandEnv(cfg.GetString("Centroids")); p != "" {
		local, err := d.maybeDownload(ctx, p)
		if err != nil {
			return nil, err
		}
		if centroids, err = windstorm.OpenCentroids(local); err != nil {
			return nil, err
		}
	}
	refRaster := os.ExpandEnv(cfg.GetString("RefRaster"))
	if refRaster != "" {
		if refRaster, err = d.maybeDownload(ctx, refRaster); err != nil {
			return nil, err
		}
	}

	reg := prometheus.NewRegistry()
	a, err := windstorm.NewAssembler(c,
		windstorm.WithLogger(log),
		windstorm.WithMetrics(windstorm.NewMetrics(reg)),
	)
	if err != nil {
		return nil, err
	}
	h, err := a.Ingest(ctx, files, centroids, refRaster)
	if err != nil {
		return nil, err
	}

	u := new(uploader)
	if err := h.Save(u.maybeUpload(outputFile)); err != nil {
		return nil, err
	}
	if reportFile != "" {
		r := NewReport(h, c.IntensityThreshold)
		r.ConfigKey = hash.Hash(c)
		if err := writeReportFile(u.maybeUpload(reportFile), r); err != nil {
			return nil, err
		}
	}
	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(u.maybeUpload(metricsFile), reg); err != nil {
			return nil, fmt.Errorf("windstormutil: writing metrics: %v", err)
		}
	}
	if err := u.upload(ctx); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"output":   outputFile,
		"events":   h.NumEvents(),
		"warnings": len(h.Warnings),
	}).Info("saved hazard")
	return h, nil
}

// Report summarizes an ingestion run.
type Report struct {
	HazType     string
	Units       string
	Strategy    string
	Events      int
	Centroids   int
	StoredCells int
	Warnings    []string

	// ConfigKey identifies the ingestion settings. Runs with the same
	// key and the same input files produce the same hazard.
	ConfigKey string

	Event []EventReport
}

// EventReport summarizes one event of a hazard.
type EventReport struct {
	ID   int
	Name string
	Date string
	File string

	// MaxIntensity is the largest stored intensity.
	MaxIntensity float64

	// SSI is the storm severity index, counting the centroids where
	// the intensity is at least the ingestion threshold.
	SSI float64

	Cells int
}

// NewReport summarizes h. threshold is used for the storm severity
// index.
func NewReport(h *windstorm.Hazard, threshold float64) *Report {
	r := &Report{
		HazType:     h.HazType,
		Units:       h.Units,
		Strategy:    string(h.Strategy),
		Events:      h.NumEvents(),
		Centroids:   h.Centroids.Size(),
		StoredCells: len(h.Intensity.Elements),
		Warnings:    h.Warnings,
	}
	ssi := h.SSI(threshold)
	for e, row := range h.Rows() {
		var max float64
		for _, v := range row.Intensity {
			if v > max {
				max = v
			}
		}
		r.Event = append(r.Event, EventReport{
			ID:           h.EventID[e],
			Name:         h.EventName[e],
			Date:         windstorm.FromOrdinal(h.Date[e]).Format("2006-01-02"),
			File:         h.Files[e],
			MaxIntensity: max,
			SSI:          ssi[e],
			Cells:        len(row.Cols),
		})
	}
	return r
}

// Write writes r to w in TOML format.
func (r *Report) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(r)
}

func writeReportFile(path string, r *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("windstormutil: creating report: %v", err)
	}
	if err := r.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("windstormutil: writing report: %v", err)
	}
	return f.Close()
}

// ExportCentroids writes the grid of the footprint file at
// footprint, as read using the variable names in cfg, to w as a
// centroids table.
func ExportCentroids(ctx context.Context, cfg *viper.Viper, footprint string, w io.Writer, log logrus.FieldLogger) error {
	c, err := AssemblerConfig(cfg)
	if err != nil {
		return err
	}
	d := newDownloader(log)
	defer d.cleanup()
	local, err := d.maybeDownload(ctx, os.ExpandEnv(footprint))
	if err != nil {
		return err
	}
	p, err := windstorm.NewParser(c.Vars, c.DefaultUnits, log)
	if err != nil {
		return err
	}
	g, err := p.ParseGrid(local)
	if err != nil {
		return err
	}
	return windstorm.WriteCentroidsCSV(w, g)
}

// Inspect reads and checks the saved hazard at path and writes a report
// on it to w.
func Inspect(ctx context.Context, path string, threshold float64, w io.Writer, log logrus.FieldLogger) error {
	d := newDownloader(log)
	defer d.cleanup()
	local, err := d.maybeDownload(ctx, os.ExpandEnv(path))
	if err != nil {
		return err
	}
	h, err := windstorm.ReadHazard(local)
	if err != nil {
		return err
	}
	return NewReport(h, threshold).Write(w)
}
