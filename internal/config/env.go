package config

import "sort"

// passthroughVars are copied verbatim when set. They cover what a child
// process needs to start and locate its home directory on each platform.
var passthroughVars = []string{
	"HOME", "USER", "LOGNAME", "PATH", "SHELL", "TERM", "LANG", "PWD",
	"TMPDIR", "TEMP", "TMP",
	"SystemRoot", "WINDIR", "COMSPEC", "USERPROFILE", "APPDATA", "LOCALAPPDATA", "PATHEXT",
}

// credentialVars are forwarded for agent authentication and behavior.
var credentialVars = []string{
	"ANTHROPIC_API_KEY",
	EnvAgentPath,
	"CLAUDE_BASH_MAINTAIN_PROJECT_WORKING_DIR",
	"E2B_API_KEY",
	"GITHUB_PAT",
}

// AgentEnv builds the scoped environment for the agent process. Nothing
// outside passthroughVars and credentialVars is forwarded. GITHUB_PAT is
// also exposed as GH_TOKEN, which the agent's gh calls read.
func AgentEnv(lookup func(string) (string, bool)) []string {
	env := make(map[string]string)

	for _, k := range passthroughVars {
		if v, ok := lookup(k); ok && v != "" {
			env[k] = v
		}
	}
	for _, k := range credentialVars {
		if v, ok := lookup(k); ok && v != "" {
			env[k] = v
		}
	}
	if pat, ok := env["GITHUB_PAT"]; ok {
		env["GH_TOKEN"] = pat
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}

	return out
}
