package proc

import (
	"fmt"
	"strings"
)

// Spec describes one process to be supervised within a project.
// It is immutable from the supervisor's point of view: replacing the spec of
// a registered process does not affect an already running instance until it
// is restarted.
type Spec struct {
	Name        string   `json:"name" yaml:"name" mapstructure:"name"`
	Command     string   `json:"command" yaml:"command" mapstructure:"command"`
	AutoStart   bool     `json:"autostart" yaml:"autostart" mapstructure:"autostart"`
	AutoRestart bool     `json:"autorestart" yaml:"autorestart" mapstructure:"autorestart"`
	// Env entries (KEY=VALUE) appended to the inherited environment.
	Env []string `json:"env,omitempty" yaml:"env,omitempty" mapstructure:"env"`
}

// Validate checks that the spec is startable.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("process name is required")
	}
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("process %q: command is required", s.Name)
	}
	return nil
}

// ProjectConfig is the normalized process list for one project directory,
// as produced by the config layer (or assembled by hand).
type ProjectConfig struct {
	Name      string `json:"name" yaml:"name" mapstructure:"name"`
	Processes []Spec `json:"processes" yaml:"processes" mapstructure:"processes"`
}

// Validate enforces per-project name uniqueness.
func (pc ProjectConfig) Validate() error {
	seen := make(map[string]struct{}, len(pc.Processes))
	for _, sp := range pc.Processes {
		if err := sp.Validate(); err != nil {
			return err
		}
		if _, dup := seen[sp.Name]; dup {
			return fmt.Errorf("duplicate process name %q in project %q", sp.Name, pc.Name)
		}
		seen[sp.Name] = struct{}{}
	}
	return nil
}

// Key identifies one supervised process: a process name within a project
// directory. Its string form is used as the registry map key.
type Key struct {
	ProjectDir string `json:"project_dir"`
	Name       string `json:"process_name"`
}

func (k Key) String() string { return k.ProjectDir + "::" + k.Name }
