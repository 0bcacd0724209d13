package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
)

type rosterFile struct {
	AnchorDate string `yaml:"anchor_date"`
	Employees  []struct {
		Name      string `yaml:"name"`
		AnchorPos int    `yaml:"anchor_pos"`
		Shift     string `yaml:"shift"`
	} `yaml:"employees"`
}

// LoadRoster reads the employee roster from a YAML file.
func LoadRoster(path string) (*schedule.Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}

	anchor, err := time.Parse("02.01.2006", strings.TrimSpace(rf.AnchorDate))
	if err != nil {
		return nil, fmt.Errorf("invalid anchor_date %q: %w", rf.AnchorDate, err)
	}
	if len(rf.Employees) == 0 {
		return nil, fmt.Errorf("roster has no employees")
	}

	roster := &schedule.Roster{AnchorDate: anchor}
	seen := make(map[string]bool)
	for i, e := range rf.Employees {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("employee %d has no name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate employee %q", name)
		}
		seen[name] = true
		if e.AnchorPos < 0 || e.AnchorPos > 3 {
			return nil, fmt.Errorf("employee %q: anchor_pos %d out of range 0..3", name, e.AnchorPos)
		}
		shift := strings.TrimSpace(e.Shift)
		if shift != "" && !schedule.ValidValue(shift) {
			return nil, fmt.Errorf("employee %q: invalid shift %q", name, e.Shift)
		}
		roster.Employees = append(roster.Employees, schedule.Employee{
			Name:      name,
			AnchorPos: e.AnchorPos,
			Shift:     shift,
		})
	}
	return roster, nil
}
