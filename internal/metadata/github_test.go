package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandGitHubShorthandDefaults(t *testing.T) {
	got := ExpandGitHubShorthand("github:acme/forge")
	assert.Equal(t, "https://raw.githubusercontent.com/acme/forge/main/metadata/functions.json", got)
}

func TestExpandGitHubShorthandWithPathAndBranch(t *testing.T) {
	got := ExpandGitHubShorthand("github:acme/forge/data/funcs.json#dev")
	assert.Equal(t, "https://raw.githubusercontent.com/acme/forge/dev/data/funcs.json", got)
}

func TestExpandGitHubShorthandPassthrough(t *testing.T) {
	got := ExpandGitHubShorthand("https://example.com/functions.json")
	assert.Equal(t, "https://example.com/functions.json", got)
}
