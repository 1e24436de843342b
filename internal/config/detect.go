package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternlight/devmux/internal/proc"
)

// Detect guesses a plausible process list for a project directory:
// a Procfile wins, then package.json scripts with lockfile-based package
// manager detection, then a placeholder that points the user at the config.
func Detect(projectDir string) []proc.Spec {
	if specs := detectProcfile(projectDir); len(specs) > 0 {
		return specs
	}
	if specs := detectPackageJSON(projectDir); len(specs) > 0 {
		return specs
	}
	return []proc.Spec{{
		Name:    "dev",
		Command: "echo 'Edit devmux.yml to add processes' && sleep 2",
	}}
}

// detectProcfile parses classic "name: command" Procfile lines.
func detectProcfile(projectDir string) []proc.Spec {
	b, err := os.ReadFile(filepath.Join(projectDir, "Procfile"))
	if err != nil {
		return nil
	}
	var specs []proc.Spec
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, cmd, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		cmd = strings.TrimSpace(cmd)
		if name == "" || cmd == "" {
			continue
		}
		specs = append(specs, proc.Spec{Name: name, Command: cmd, AutoRestart: true})
	}
	return specs
}

// detectPackageJSON prefers a "dev" script over "start" and picks the package
// manager from the lockfile present.
func detectPackageJSON(projectDir string) []proc.Spec {
	b, err := os.ReadFile(filepath.Join(projectDir, "package.json"))
	if err != nil {
		return nil
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(b, &pkg); err != nil {
		return nil
	}
	script := ""
	switch {
	case pkg.Scripts["dev"] != "":
		script = "dev"
	case pkg.Scripts["start"] != "":
		script = "start"
	default:
		return nil
	}

	pm := "npm"
	switch {
	case fileExists(filepath.Join(projectDir, "pnpm-lock.yaml")):
		pm = "pnpm"
	case fileExists(filepath.Join(projectDir, "yarn.lock")):
		pm = "yarn"
	case fileExists(filepath.Join(projectDir, "bun.lockb")):
		pm = "bun"
	}

	var cmd string
	switch pm {
	case "yarn", "pnpm":
		cmd = pm + " " + script
	case "bun":
		cmd = "bun run " + script
	default:
		if script == "start" {
			cmd = "npm start"
		} else {
			cmd = "npm run " + script
		}
	}
	return []proc.Spec{{Name: script, Command: cmd, AutoRestart: true}}
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
