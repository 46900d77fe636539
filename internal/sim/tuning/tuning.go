package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"naturalist.ai/internal/sim/island"
	"naturalist.ai/internal/sim/jps"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Island      Island      `yaml:"island"`
	Pathing     Pathing     `yaml:"pathing"`
	Collect     bool        `yaml:"collect"`
	Persistence Persistence `yaml:"persistence"`
	Observer    Observer    `yaml:"observer"`
}

type Island struct {
	Width   int   `yaml:"width"`
	Height  int   `yaml:"height"`
	Trees   int   `yaml:"trees"`
	Animals int   `yaml:"animals"`
	Seed    int64 `yaml:"seed"`
	// Map is an ASCII island; when set the generator fields are ignored.
	Map      string `yaml:"map"`
	Capacity int    `yaml:"capacity"`
}

type Pathing struct {
	Heuristic string `yaml:"heuristic"`
}

type Persistence struct {
	DataDir   string `yaml:"data_dir"`
	DisableDB bool   `yaml:"disable_db"`
}

type Observer struct {
	Addr    string `yaml:"addr"`
	Backlog int    `yaml:"backlog"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		Island: Island{
			Width:    30,
			Height:   20,
			Trees:    70,
			Animals:  40,
			Seed:     0,
			Capacity: 4,
		},
		Pathing:     Pathing{Heuristic: "manhattan"},
		Collect:     true,
		Persistence: Persistence{DataDir: "./data"},
		Observer:    Observer{Backlog: 4096},
	}
}

// Load reads a tuning file over the defaults. An empty path returns the
// defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	t.Pathing.Heuristic = strings.ToLower(strings.TrimSpace(t.Pathing.Heuristic))
	if t.Pathing.Heuristic == "" {
		t.Pathing.Heuristic = "manhattan"
	}
	t.Island.Map = strings.TrimSpace(t.Island.Map)
	if strings.TrimSpace(t.Persistence.DataDir) == "" {
		t.Persistence.DataDir = "./data"
	}
	if t.Observer.Backlog <= 0 {
		t.Observer.Backlog = 4096
	}
}

func (t Tuning) Validate() error {
	if _, err := jps.HeuristicByName(t.Pathing.Heuristic); err != nil {
		return fmt.Errorf("pathing.heuristic: %w", err)
	}
	if t.Island.Capacity < 0 {
		return fmt.Errorf("island.capacity must be >= 0")
	}
	if t.Island.Map != "" {
		return nil
	}
	if t.Island.Width <= 0 || t.Island.Height <= 0 {
		return fmt.Errorf("island.width and island.height must be > 0")
	}
	if t.Island.Trees < 0 || t.Island.Trees >= t.Island.Width*t.Island.Height {
		return fmt.Errorf("island.trees must be in [0, width*height)")
	}
	if t.Island.Animals < 0 {
		return fmt.Errorf("island.animals must be >= 0")
	}
	return nil
}

func (t Tuning) IslandConfig() island.Config {
	return island.Config{
		Width:    t.Island.Width,
		Height:   t.Island.Height,
		Trees:    t.Island.Trees,
		Animals:  t.Island.Animals,
		Seed:     t.Island.Seed,
		Capacity: t.Island.Capacity,
	}
}

func (t Tuning) Heuristic() jps.Heuristic {
	h, err := jps.HeuristicByName(t.Pathing.Heuristic)
	if err != nil {
		return jps.Manhattan
	}
	return h
}
