// Package config loads and scaffolds per-project process configuration
// (devmux.yml). The supervisor core never reads files itself; it consumes the
// normalized ProjectConfig this package produces.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ternlight/devmux/internal/proc"
)

// Candidate config file names inside a project directory, tried in order.
var configNames = []string{"devmux.yml", "devmux.yaml"}

// Path returns the existing config file in projectDir, or false.
func Path(projectDir string) (string, bool) {
	for _, name := range configNames {
		p := filepath.Join(projectDir, name)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// Load reads the project config from projectDir.
func Load(projectDir string) (proc.ProjectConfig, error) {
	path, ok := Path(projectDir)
	if !ok {
		return proc.ProjectConfig{}, fmt.Errorf("missing %s in %s", configNames[0], projectDir)
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return proc.ProjectConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	var pc proc.ProjectConfig
	if err := v.Unmarshal(&pc); err != nil {
		return proc.ProjectConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if pc.Name == "" {
		pc.Name = ProjectName(projectDir)
	}
	if err := pc.Validate(); err != nil {
		return proc.ProjectConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return pc, nil
}

// Init writes a generated devmux.yml for projectDir, seeding the process
// list from the detection heuristics. It refuses to overwrite an existing
// config.
func Init(projectDir string) (proc.ProjectConfig, error) {
	if existing, ok := Path(projectDir); ok {
		return proc.ProjectConfig{}, fmt.Errorf("config already exists at %s", existing)
	}
	pc := proc.ProjectConfig{
		Name:      ProjectName(projectDir),
		Processes: Detect(projectDir),
	}
	b, err := yaml.Marshal(pc)
	if err != nil {
		return proc.ProjectConfig{}, err
	}
	path := filepath.Join(projectDir, configNames[0])
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return proc.ProjectConfig{}, fmt.Errorf("write %s: %w", path, err)
	}
	return pc, nil
}

// ReadRaw returns the config file path and its verbatim contents, for the
// editing surface.
func ReadRaw(projectDir string) (string, string, error) {
	path, ok := Path(projectDir)
	if !ok {
		return "", "", fmt.Errorf("missing %s in %s", configNames[0], projectDir)
	}
	b, err := os.ReadFile(path) // #nosec G304 -- path comes from the candidate list above
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", path, err)
	}
	return path, string(b), nil
}

// WriteRaw replaces the config file contents verbatim, creating devmux.yml
// when none exists yet.
func WriteRaw(projectDir, contents string) error {
	path, ok := Path(projectDir)
	if !ok {
		path = filepath.Join(projectDir, configNames[0])
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ProjectName derives a display name from the directory basename.
func ProjectName(projectDir string) string {
	base := filepath.Base(filepath.Clean(projectDir))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "project"
	}
	return base
}
