package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidTopology(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`components:
  - name: payment-api
    type: service
    relationships:
      - depends_on: postgres
      - depends_on: redis
  - name: postgres
    type: database
  - name: redis
    type: cache
`), 0644))

	g, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())

	c, ok := g.Component("payment-api")
	require.True(t, ok)
	assert.Equal(t, "service", c.Type)

	assert.Equal(t, []string{"postgres", "redis"}, g.Dependencies("payment-api"))
	assert.Empty(t, g.Dependencies("postgres"))
	assert.Nil(t, g.Dependencies("unknown"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EmptyTopology(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("components: []\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no components")
}
