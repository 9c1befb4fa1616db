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


// Package windstormutil contains the command-line interface and the
// configuration handling for windstorm footprint ingestion.
package windstormutil

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/windstorm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is the version of the windstorm tools.
const Version = "0.3.0"

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	def := windstorm.DefaultConfig()

	// Options are the configuration options available to the windstorm
	// commands.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages to print
              (debug, info, warning, or error).`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Footprints",
			usage: `
              Footprints lists the storm footprint netCDF files to ingest, in
              event order. Entries can be local files, directories (all
              .nc files within are used), glob patterns, http(s) URLs, or
              blob storage locations (gs://, s3://, file://).`,
			shorthand:  "f",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags()},
		},
		{
			name: "Centroids",
			usage: `
              Centroids is the path to a CSV file of target centroids with
              lon, lat, and (optionally) region_id columns. If it is set,
              all footprints are aligned to these centroids.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags()},
		},
		{
			name: "RefRaster",
			usage: `
              RefRaster is the path to a footprint file whose grid is used as
              the target grid. If neither Centroids nor RefRaster is set,
              the grid of the first footprint is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path where the hazard should be saved, in
              netCDF format. It can be a blob storage location.`,
			shorthand:  "o",
			defaultVal: "hazard.nc",
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags()},
		},
		{
			name: "ReportFile",
			usage: `
              ReportFile is the path where a TOML summary of the ingestion
              should be written. It is not written if empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags()},
		},
		{
			name: "MetricsFile",
			usage: `
              MetricsFile is the path where ingestion metrics should be
              written in the Prometheus text format. It is not written if empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags()},
		},
		{
			name: "Omit",
			usage: `
              Omit lists footprint files, by base name or full path, to leave out.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags()},
		},
		{
			name: "SkipInvalid",
			usage: `
              SkipInvalid specifies whether malformed footprints and
              footprints that can't be aligned to the target grid should be
              skipped with a warning rather than stopping the ingestion.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of footprints to process at the same
              time. Zero means one per processor.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags()},
		},
		{
			name: "HazType",
			usage: `
              HazType is the hazard type code of the output.`,
			defaultVal: def.HazType,
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags()},
		},
		{
			name: "DefaultUnits",
			usage: `
              DefaultUnits are the intensity units assumed for footprints
              that don't specify them.`,
			defaultVal: def.DefaultUnits,
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags(), centroidsCmd.Flags()},
		},
		{
			name: "IntensityThreshold",
			usage: `
              IntensityThreshold is the gust speed at or below which
              intensities are not stored. It is also the lower limit of the
              storm severity index in reports.`,
			defaultVal: def.IntensityThreshold,
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags(), inspectCmd.Flags()},
		},
		{
			name: "Tolerance",
			usage: `
              Tolerance is the largest coordinate difference [degrees] at which
              two grid points are treated as the same location.`,
			defaultVal: def.Tolerance,
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags()},
		},
		{
			name: "MaxDistanceFactor",
			usage: `
              MaxDistanceFactor limits nearest-neighbor alignment to this
              multiple of the target grid cell size.`,
			defaultVal: def.MaxDistanceFactor,
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags()},
		},
		{
			name: "Vars.Intensity",
			usage: `
              Vars.Intensity is the name of the gust speed variable.`,
			defaultVal: def.Vars.Intensity,
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags(), centroidsCmd.Flags()},
		},
		{
			name: "Vars.Lon",
			usage: `
              Vars.Lon is the name of the longitude variable.`,
			defaultVal: def.Vars.Lon,
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags(), centroidsCmd.Flags()},
		},
		{
			name: "Vars.Lat",
			usage: `
              Vars.Lat is the name of the latitude variable.`,
			defaultVal: def.Vars.Lat,
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags(), centroidsCmd.Flags()},
		},
		{
			name: "Vars.Time",
			usage: `
              Vars.Time is the name of the time variable.`,
			defaultVal: def.Vars.Time,
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags(), centroidsCmd.Flags()},
		},
		{
			name: "Vars.Fraction",
			usage: `
              Vars.Fraction is the name of an optional variable holding the
              fraction of each cell affected. If it is empty or missing from
              a file, a fraction of 1 is used.`,
			defaultVal: def.Vars.Fraction,
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags(), centroidsCmd.Flags()},
		},
		{
			name: "Vars.NameAttr",
			usage: `
              Vars.NameAttr is the global attribute holding the storm name.`,
			defaultVal: def.Vars.NameAttr,
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags(), centroidsCmd.Flags()},
		},
		{
			name: "Vars.UnitsAttr",
			usage: `
              Vars.UnitsAttr is the attribute of the gust speed variable
              holding its units.`,
			defaultVal: def.Vars.UnitsAttr,
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags(), centroidsCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("WINDSTORM")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				set.Bool(option.name, option.defaultVal.(bool), option.usage)
			case int:
				set.Int(option.name, option.defaultVal.(int), option.usage)
			case float64:
				set.Float64(option.name, option.defaultVal.(float64), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(ingestCmd)
	Root.AddCommand(centroidsCmd)
	Root.AddCommand(inspectCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("windstormutil: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "windstorm",
	Short: "Ingest windstorm footprints into a hazard set.",
	Long: `windstorm converts gridded footprints of historical European windstorms,
stored as netCDF files with one storm per file, into a single hazard set of
event intensities on a common set of centroids.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'WINDSTORM_var' where 'var' is the
name of the variable to be set, with '.' replaced by '_'. Many configuration
variables are additionally allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
	SilenceUsage:      true,
	SilenceErrors:     true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of windstorm.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("windstorm v%s\n", Version)
	},
	DisableAutoGenTag: true,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Stack storm footprints into a hazard",
	Long: `ingest reads the footprint files in the order given, aligns them to a
common target grid, and saves the resulting hazard to OutputFile.
The target grid is taken from Centroids if it is set, otherwise from
RefRaster if it is set, otherwise from the first footprint.`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(Cfg.GetString("LogLevel"))
		if err != nil {
			return err
		}
		log.Out = cmd.OutOrStderr()
		_, err = Ingest(context.Background(), Cfg, log)
		return err
	},
}

var centroidsCmd = &cobra.Command{
	Use:   "centroids FOOTPRINT [OUTPUT]",
	Short: "Write the grid of a footprint as centroids",
	Long: `centroids reads the grid of the footprint file FOOTPRINT and writes it as
a CSV table of centroids to OUTPUT, or to standard output if OUTPUT
is not given. The table can be edited, for example to add region
identifiers, and used as the Centroids input of the ingest command.`,
	Args:              cobra.RangeArgs(1, 2),
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(Cfg.GetString("LogLevel"))
		if err != nil {
			return err
		}
		log.Out = cmd.OutOrStderr()
		if len(args) == 1 {
			return ExportCentroids(context.Background(), Cfg, args[0], cmd.OutOrStdout(), log)
		}
		u := new(uploader)
		out, err := checkOutputFile(args[1])
		if err != nil {
			return err
		}
		w, err := os.Create(u.maybeUpload(out))
		if err != nil {
			return err
		}
		if err := ExportCentroids(context.Background(), Cfg, args[0], w, log); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		return u.upload(context.Background())
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect HAZARD",
	Short: "Check a saved hazard and summarize it",
	Long: `inspect reads the hazard file HAZARD, checks that it is consistent,
and prints a TOML summary of its events to standard output.`,
	Args:              cobra.ExactArgs(1),
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(Cfg.GetString("LogLevel"))
		if err != nil {
			return err
		}
		log.Out = cmd.OutOrStderr()
		return Inspect(context.Background(), args[0], Cfg.GetFloat64("IntensityThreshold"), cmd.OutOrStdout(), log)
	},
}
