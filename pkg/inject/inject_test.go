package inject

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectIsIdempotent(t *testing.T) {
	page := `<html><body><div id="app">sheet</div></body></html>`

	once, injected, err := Inject(strings.NewReader(page), "http://127.0.0.1:8787/assets/")
	require.NoError(t, err)
	assert.True(t, injected)
	assert.Equal(t, 1, strings.Count(once, `id="`+ContainerID+`"`))
	assert.Contains(t, once, `id="`+ToggleID+`"`)
	assert.Contains(t, once, `src="http://127.0.0.1:8787/assets/sidebar.html"`)

	twice, injected, err := Inject(strings.NewReader(once), "http://127.0.0.1:8787/assets")
	require.NoError(t, err)
	assert.False(t, injected)
	assert.Equal(t, once, twice)
}

func TestSidebarToggle(t *testing.T) {
	var s Sidebar
	assert.False(t, s.Visible())
	assert.True(t, s.Toggle())
	assert.True(t, s.Visible())
	assert.False(t, s.Toggle())
}

func TestAssetsBundleSidebar(t *testing.T) {
	b, err := fs.ReadFile(Assets(), "sidebar.html")
	require.NoError(t, err)
	assert.Contains(t, string(b), "/sidebar/ask")
	// Each insert button posts to the turn its own message belongs to.
	assert.Contains(t, string(b), "'/sidebar/turns/' + m.turnId + '/insert'")
}
