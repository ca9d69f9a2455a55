package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/royalcat/fieldgrid/grid"
	"github.com/royalcat/fieldgrid/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Listen != ":8080" {
		t.Fatalf("unexpected listen %q", cfg.Server.Listen)
	}

	a := cfg.Analyzer()
	if a.CellSize != 100 || !a.Rectangle || a.Mode != grid.ModeCellCenter || a.MaxQuadrupleVertices != 64 {
		t.Fatalf("unexpected analyzer defaults %+v", a)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := filepath.Join(dir, "custom.yaml")
	data := "analysis:\n  cell_size: 25\n  mode: boundary-vertex\nserver:\n  listen: \":9090\"\n"
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FIELDGRID_SERVER_LISTEN", ":7070")

	cfg, err := config.Load(file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Analysis.CellSize != 25 {
		t.Fatalf("expected cell size from file, got %v", cfg.Analysis.CellSize)
	}
	if cfg.Analyzer().Mode != grid.ModeBoundaryVertex {
		t.Fatalf("expected boundary-vertex mode, got %s", cfg.Analyzer().Mode)
	}
	if cfg.Server.Listen != ":7070" {
		t.Fatalf("expected env to override file, got %q", cfg.Server.Listen)
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}

	cfg.Analysis.CellSize = 0
	cfg.Analysis.Mode = "corners"
	cfg.Analysis.Zone = 99
	cfg.Telemetry.LogLevel = "loud"

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, s := range []string{"cell_size", "analysis.mode", "analysis.zone", "log_level"} {
		if !strings.Contains(err.Error(), s) {
			t.Fatalf("error %q does not mention %s", err, s)
		}
	}
}
