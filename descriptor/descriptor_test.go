package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRead_XML(t *testing.T) {
	path := writeFile(t, "potLayout.xml", `<layout>
  <region id="1" gs="0" x1="0" y1="0" x2="100" y2="100" xw="5" yw="5" zw="0">
    <bac x1="0" y1="0" x2="100" y2="100" z="-20" border="10" dist="30"/>
  </region>
  <region id="2" gs="1" x1="200" y1="0" x2="300" y2="100" xw="205" yw="5" zw="0">
    <pot id="p1" x="210" y="10" z="-30"/>
  </region>
</layout>`)

	doc, err := Read(path)
	require.NoError(t, err)
	require.Len(t, doc.Records, 2)

	first := doc.Records[0]
	assert.Equal(t, "region", first.Tag)
	id, err := first.Int("id")
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	require.Len(t, first.Children, 1)
	assert.Equal(t, "bac", first.Children[0].Tag)

	pot := doc.Records[1].Children[0]
	name, err := pot.String("id")
	require.NoError(t, err)
	assert.Equal(t, "p1", name)
}

func TestRead_TOML(t *testing.T) {
	path := writeFile(t, "plantTypes.toml", `
[[plant]]
name = "lettuce"
hole = true
gt0 = 5
gt1 = 10
gt2 = 15
x = 1
y = 2
z = -3

[[plant]]
name = "radish"
hole = 0
gt0 = 3
gt1 = 4
gt2 = 5
x = 0
y = 0
z = 0
`)

	doc, err := Read(path)
	require.NoError(t, err)
	require.Len(t, doc.Records, 2)

	lettuce := doc.Records[0]
	assert.Equal(t, "plant", lettuce.Tag)
	hole, err := lettuce.Bool("hole")
	require.NoError(t, err)
	assert.True(t, hole)
	z, err := lettuce.Int("z")
	require.NoError(t, err)
	assert.Equal(t, -3, z)

	hole, err = doc.Records[1].Bool("hole")
	require.NoError(t, err)
	assert.False(t, hole)
}

func TestRead_TOMLNestedTables(t *testing.T) {
	path := writeFile(t, "layout.toml", `
[[zone]]
id = 1
gs = 0

  [[zone.bac]]
  border = 10
  dist = 30

  [[zone.bac]]
  border = 5
  dist = 20
`)

	doc, err := Read(path)
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)
	require.Len(t, doc.Records[0].Children, 2)
	dist, err := doc.Records[0].Children[1].Int("dist")
	require.NoError(t, err)
	assert.Equal(t, 20, dist)
}

func TestRead_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Read(filepath.Join(t.TempDir(), "nope.xml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed xml", func(t *testing.T) {
		_, err := Read(writeFile(t, "bad.xml", "<layout><region"))
		assert.Error(t, err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := Read(writeFile(t, "layout.json", "{}"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("toml without tables", func(t *testing.T) {
		_, err := Read(writeFile(t, "empty.toml", "title = 'farm'\n"))
		assert.Error(t, err)
	})
}

func TestRecord_Accessors(t *testing.T) {
	rec := Record{Attrs: map[string]string{"n": "12", "bad": "x1", "flag": "maybe", "blank": "  "}}

	_, err := rec.Int("bad")
	assert.Error(t, err)
	_, err = rec.Int("missing")
	assert.Error(t, err)
	_, err = rec.Bool("flag")
	assert.Error(t, err)
	_, err = rec.String("blank")
	assert.Error(t, err)
	assert.True(t, rec.Has("n"))
	assert.False(t, rec.Has("missing"))
}
