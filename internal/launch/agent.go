package launch

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/panedrive/internal/config"
	"github.com/Iron-Ham/panedrive/internal/errors"
	"github.com/Iron-Ham/panedrive/internal/shell"
)

// Profile describes how to start, resume and recognize one agent.
type Profile struct {
	Agent    Agent
	Binary   string
	patterns []glob.Glob
}

// NewProfiles compiles the agent section of the configuration. Every
// supported agent gets a profile; agents missing from cfg fall back to
// their own name as the binary.
func NewProfiles(cfg map[string]config.AgentConfig) (map[Agent]Profile, error) {
	profiles := make(map[Agent]Profile, len(Agents()))
	for _, agent := range Agents() {
		ac, ok := cfg[string(agent)]
		if !ok || strings.TrimSpace(ac.Binary) == "" {
			ac.Binary = string(agent)
		}
		p := Profile{Agent: agent, Binary: ac.Binary}
		for _, pattern := range ac.ProcessPatterns {
			g, err := glob.Compile(pattern)
			if err != nil {
				return nil, errors.Wrap(err, "agent "+string(agent)+": invalid process pattern "+pattern)
			}
			p.patterns = append(p.patterns, g)
		}
		profiles[agent] = p
	}
	return profiles, nil
}

// Matches reports whether a process or foreground command name belongs to
// this agent.
func (p Profile) Matches(command string) bool {
	name := filepath.Base(strings.TrimSpace(command))
	if name == "" || name == "." {
		return false
	}
	if name == filepath.Base(p.Binary) {
		return true
	}
	return slices.ContainsFunc(p.patterns, func(g glob.Glob) bool { return g.Match(name) })
}

// Command builds the line typed into the pane. A resume id switches to the
// agent's resume form; resumeCwd is entered first when it differs from the
// directory the pane starts in.
func (p Profile) Command(options []string, resumeID, resumeCwd, paneCwd string) string {
	cmd := shell.New(p.Binary, options...)
	if resumeID == "" {
		return cmd.String()
	}
	switch p.Agent {
	case AgentCodex:
		cmd.Arg("resume", resumeID)
	case AgentClaude:
		cmd.Arg("--resume", resumeID)
	}
	if resumeCwd != "" && resumeCwd != paneCwd {
		cmd.InDir(resumeCwd)
	}
	return cmd.String()
}

var shells = []string{"sh", "bash", "zsh", "fish", "dash", "ksh", "tcsh", "csh", "login"}

// isShell reports whether command is an interactive shell, which is what a
// pane shows before and after an agent runs.
func isShell(command string) bool {
	name := strings.TrimPrefix(filepath.Base(strings.TrimSpace(command)), "-")
	return slices.Contains(shells, name)
}
