package routing

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"foundry/internal/domain"
)

// RosterFileEnv names the environment variable pointing at an optional yaml
// roster seed applied at startup.
const RosterFileEnv = "FOUNDRY_AGENT_ROSTER_FILE"

type rosterEntry struct {
	Name              string  `yaml:"name"`
	Provider          string  `yaml:"provider"`
	Threshold         float64 `yaml:"complexity_threshold"`
	InputCostPerKTok  float64 `yaml:"input_cost_per_ktok"`
	OutputCostPerKTok float64 `yaml:"output_cost_per_ktok"`
	Active            *bool   `yaml:"active"`
}

type rosterFile struct {
	Agents []rosterEntry `yaml:"agents"`
}

// LoadRosterFile parses a yaml agent roster seed.
func LoadRosterFile(path string) ([]domain.AgentProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}
	var file rosterFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse roster file: %w", err)
	}
	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("roster file %s lists no agents", path)
	}

	agents := make([]domain.AgentProfile, 0, len(file.Agents))
	for _, entry := range file.Agents {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("roster entry with empty name in %s", path)
		}
		if entry.Threshold <= 0 || entry.Threshold > 1 {
			return nil, fmt.Errorf("roster agent %s has threshold %v outside (0,1]", name, entry.Threshold)
		}
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		agents = append(agents, domain.AgentProfile{
			Name:                name,
			Provider:            strings.TrimSpace(entry.Provider),
			ComplexityThreshold: entry.Threshold,
			InputCostPerKTok:    entry.InputCostPerKTok,
			OutputCostPerKTok:   entry.OutputCostPerKTok,
			Active:              active,
		})
	}
	return agents, nil
}

// LoadRosterFromEnv loads the roster seed named by RosterFileEnv, or returns
// nil when the variable is unset.
func LoadRosterFromEnv() ([]domain.AgentProfile, error) {
	path := strings.TrimSpace(os.Getenv(RosterFileEnv))
	if path == "" {
		return nil, nil
	}
	return LoadRosterFile(path)
}
