// Package settings reads and writes simulation config and force-matrix
// files. YAML and JSON are both accepted on load.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/olivierh59500/particle-life-go/internal/sim"
)

// DefaultMatrixFile is where the interactive save/load keys write
const DefaultMatrixFile = "config.json"

// LoadConfig overlays the file at path onto base. Fields missing from the
// file keep their base value; unknown keys are an error. The result is clamped.
func LoadConfig(path string, base sim.Config) (sim.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, errors.Wrap(err, "read config")
	}
	cfg := base
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return base, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg.Clamped(), nil
}

// SaveConfig writes cfg to path, as YAML for .yaml/.yml and JSON otherwise
func SaveConfig(path string, cfg sim.Config) error {
	data, err := marshal(path, cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "write config")
}

// SaveMatrix writes the force matrix as nested rows
func SaveMatrix(path string, m *sim.ForceMatrix) error {
	data, err := marshal(path, m.Rows())
	if err != nil {
		return errors.Wrap(err, "encode matrix")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "write matrix")
}

// LoadMatrix reads nested rows written by SaveMatrix (or by hand)
func LoadMatrix(path string) (*sim.ForceMatrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read matrix")
	}
	var rows [][]float64
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrapf(err, "parse matrix %s", path)
	}
	if len(rows) < sim.MinTypes || len(rows) > sim.MaxTypes {
		return nil, errors.Errorf("matrix %s has %d types, want %d to %d", path, len(rows), sim.MinTypes, sim.MaxTypes)
	}
	return sim.ForceMatrixFromRows(rows)
}

func marshal(path string, v interface{}) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}
