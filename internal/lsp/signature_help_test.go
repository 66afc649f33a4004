package lsp

import (
	"testing"

	"github.com/forgescript/forgescript-lsp/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSignatureRendersLabelAndParameters(t *testing.T) {
	fn := &metadata.Function{
		Name:     "$ban",
		Brackets: metadata.BracketsRequired,
		Args: []metadata.Arg{
			{Name: "user", Required: true, Description: "The user to ban."},
			{Name: "reason", Required: false},
		},
	}

	sig := buildSignature(fn)

	assert.Equal(t, "$ban[user; reason?]", sig.Label)
	require.Len(t, sig.Parameters, 2)
	assert.Equal(t, "user", sig.Parameters[0].Label)
}

func TestRenderParamDocumentationListsEnumValues(t *testing.T) {
	arg := metadata.Arg{Name: "mode", Description: "Run mode.", Enum: []string{"fast", "slow"}}

	doc := renderParamDocumentation(arg)

	assert.Contains(t, doc, "Run mode.")
	assert.Contains(t, doc, "Allowed values:")
	assert.Contains(t, doc, "`fast`")
	assert.Contains(t, doc, "`slow`")
}

func TestRenderParamDocumentationOmitsBulletsWithoutEnum(t *testing.T) {
	arg := metadata.Arg{Name: "user", Description: "The user to ban."}

	doc := renderParamDocumentation(arg)

	assert.Equal(t, "The user to ban.", doc)
}
