package metadata

import "strings"

const (
	defaultBranch = "main"
	defaultPath   = "metadata/functions.json"
)

// ExpandGitHubShorthand rewrites `github:<owner>/<repo>[/<path>...][#<branch>]`
// into the equivalent raw.githubusercontent.com URL. Strings that don't
// match the shorthand form pass through unchanged.
func ExpandGitHubShorthand(url string) string {
	rest, ok := strings.CutPrefix(url, "github:")
	if !ok {
		return url
	}

	branch := defaultBranch
	if idx := strings.LastIndex(rest, "#"); idx != -1 {
		branch = rest[idx+1:]
		rest = rest[:idx]
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return url
	}

	owner, repo := parts[0], parts[1]
	path := defaultPath
	if len(parts) == 3 && parts[2] != "" {
		path = parts[2]
	}

	return "https://raw.githubusercontent.com/" + owner + "/" + repo + "/" + branch + "/" + path
}
