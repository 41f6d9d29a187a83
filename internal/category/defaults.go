package category

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// builtinDefaults is the category layer shipped with a fresh install.
// It only covers commands whose behaviour is unambiguous; everything
// else goes through the categorization prompt on first use.
var builtinDefaults = map[Category][]string{
	Simple: {
		"ls", "ls -l", "ls -la", "ls -lh", "ls -a",
		"pwd", "whoami", "date", "uptime", "hostname",
		"df -h", "free -h", "uname -a",
		"git status", "git log --oneline", "git diff", "git branch",
		"cat /etc/os-release",
	},
	SemiInteractive: {
		"apt update", "apt upgrade -y",
		"pip install -r requirements.txt",
		"npm install", "go test ./...",
		"ping -c 4 8.8.8.8",
	},
	InteractiveTUI: {
		"htop", "top", "vim", "nvim", "nano", "less", "man",
		"ssh", "tmux", "python3",
	},
}

// EnsureDefaultFile writes the built-in default layer to path unless a
// file already exists there. Installs that ship their own defaults are
// left alone.
func EnsureDefaultFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	layout := make(map[string][]string, len(builtinDefaults))
	for cat, cmds := range builtinDefaults {
		layout[string(cat)] = cmds
	}
	data, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
