package main

import (
	"log"
	"os"

	_ "net/http/pprof"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/urfave/cli/v3"
	_ "go.uber.org/automaxprocs"
)

func main() {
	app := &cli.App{
		Name:        "fieldgrid",
		Description: "Field boundary analysis: projection, hull, grid cells and inscribed rectangle",
		Commands: []*cli.Command{
			{
				Name:    "analyze",
				Aliases: []string{"a"},
				Usage:   "runs the full analysis of a field boundary",
				Flags: flags(ioFlags, analysisFlags, []cli.Flag{
					&cli.StringFlag{
						Name:      "stats",
						Usage:     "write a cpu and memory report to this file",
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:        "pprof.listen",
						DefaultText: "",
					},
					&cli.BoolFlag{
						Name:        "pprof.profile",
						DefaultText: "",
					},
					&cli.BoolFlag{
						Name:        "pprof.heap",
						DefaultText: "",
					},
				}),
				Action: analyze,
			},
			{
				Name:   "hull",
				Usage:  "prints the convex hull of a field boundary as geojson",
				Flags:  flags(inputFlags, analysisFlags),
				Action: printHull,
			},
			{
				Name:   "bbox",
				Usage:  "prints the bounding box of a field boundary as geojson",
				Flags:  flags(inputFlags, analysisFlags),
				Action: printBBox,
			},
			{
				Name:    "rect",
				Aliases: []string{"rectangle"},
				Usage:   "prints the inscribed rectangle of a field boundary as geojson",
				Flags:   flags(inputFlags, analysisFlags),
				Action:  printRectangle,
			},
			{
				Name:  "serve",
				Usage: "serve a fieldgrid api",
				Flags: flags(commonFlags, analysisFlags, []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "overrides server.listen",
					},
				}),
				Action: serve,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var commonFlags = []cli.Flag{
	&cli.StringFlag{
		Name:      "config",
		Aliases:   []string{"c"},
		Usage:     "yaml config file, fieldgrid.yaml in the working directory is read when omitted",
		TakesFile: true,
	},
	&cli.StringFlag{
		Name:  "log-level",
		Usage: "overrides telemetry.log_level",
	},
	&cli.StringFlag{
		Name:  "otlp-endpoint",
		Usage: "overrides telemetry.otlp_endpoint",
	},
}

var inputFlags = flags(commonFlags, []cli.Flag{
	&cli.StringFlag{
		Name:      "input",
		Aliases:   []string{"i"},
		Usage:     "field boundary, .geojson or .kml, optionally .zst compressed",
		Required:  true,
		TakesFile: true,
	},
})

var ioFlags = flags(inputFlags, []cli.Flag{
	&cli.StringFlag{
		Name:      "output",
		Aliases:   []string{"o"},
		Usage:     "analysis result, .geojson or .kml, optionally .zst compressed",
		Required:  true,
		TakesFile: true,
	},
})

// analysisFlags override the analysis section of the config when set.
var analysisFlags = []cli.Flag{
	&cli.IntFlag{
		Name:        "zone",
		Usage:       "UTM zone 1-60",
		DefaultText: "auto",
	},
	&cli.BoolFlag{
		Name:  "south",
		Usage: "southern hemisphere UTM zone",
	},
	&cli.Float64Flag{
		Name:  "cell-size",
		Usage: "grid cell size in metres",
	},
	&cli.Float64Flag{
		Name:  "margin",
		Usage: "bounding box margin in metres",
	},
	&cli.StringFlag{
		Name:  "mode",
		Usage: "cell classification: center or boundary-vertex",
	},
	&cli.BoolFlag{
		Name:  "boundary-inclusive",
		Usage: "cells with a center on the boundary are inside",
	},
	&cli.BoolFlag{
		Name:  "no-rectangle",
		Usage: "skip the inscribed rectangle search",
	},
	&cli.Float64Flag{
		Name:  "sample-step",
		Usage: "lattice sampling step in metres, 0 disables",
	},
	&cli.Float64Flag{
		Name:  "poisson-distance",
		Usage: "poisson disc sampling distance in metres, 0 disables",
	},
	&cli.IntFlag{
		Name:        "threads",
		Aliases:     []string{"t"},
		DefaultText: "max",
	},
}

func flags(sets ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}
