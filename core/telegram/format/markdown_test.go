package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeMarkdown(t *testing.T) {
	out, err := EscapeMarkdown("john_doe*x@mail.com [a]", MarkdownV1)
	require.NoError(t, err)
	assert.Equal(t, `john\_doe\*x@mail.com \[a]`, out)

	out, err = EscapeMarkdown("a.b-c!9", MarkdownV2)
	require.NoError(t, err)
	assert.Equal(t, `a\.b\-c\!9`, out)

	_, err = EscapeMarkdown("x", 3)
	assert.Error(t, err)

	assert.Equal(t, `\_`, MD("_"))
}
