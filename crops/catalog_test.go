package crops

import (
	"os"
	"path/filepath"
	"testing"

	"farm_scheduler/farmerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCatalog_XML(t *testing.T) {
	path := writeCatalog(t, "plantTypes.xml", `<plants>
  <plant name="lettuce" hole="1" gt0="5" gt1="10" gt2="15" x="1" y="2" z="-3"/>
  <plant name="radish" hole="0" gt0="3" gt1="4" gt2="5" x="0" y="0" z="0"/>
</plants>`)

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"lettuce", "radish"}, c.Names())

	lettuce, err := c.Lookup("lettuce")
	require.NoError(t, err)
	assert.True(t, lettuce.RequiresHole)
	assert.Equal(t, [StageCount]int{5, 10, 15}, lettuce.StageDays)
	assert.Equal(t, Offset{X: 1, Y: 2, Z: -3}, lettuce.SeedOffset)
	assert.Equal(t, 10, lettuce.Duration(PreGrowth))
}

func TestLoadCatalog_SkipsBadRecords(t *testing.T) {
	path := writeCatalog(t, "plantTypes.xml", `<plants>
  <plant name="lettuce" hole="1" gt0="5" gt1="10" gt2="15" x="1" y="2" z="-3"/>
  <plant name="broken" hole="1" gt0="five" gt1="10" gt2="15" x="0" y="0" z="0"/>
  <plant name="negative" hole="0" gt0="-1" gt1="10" gt2="15" x="0" y="0" z="0"/>
  <plant hole="0" gt0="1" gt1="1" gt2="1" x="0" y="0" z="0"/>
  <plant name="lettuce" hole="0" gt0="1" gt1="1" gt2="1" x="0" y="0" z="0"/>
</plants>`)

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"lettuce"}, c.Names())

	// the first lettuce record wins
	lettuce, err := c.Lookup("lettuce")
	require.NoError(t, err)
	assert.Equal(t, 5, lettuce.Duration(Seed))
}

func TestLoadCatalog_Fatal(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCatalog(filepath.Join(t.TempDir(), "plantTypes.xml"))
		assert.ErrorIs(t, err, farmerr.ErrLayoutLoad)
	})

	t.Run("malformed document", func(t *testing.T) {
		_, err := LoadCatalog(writeCatalog(t, "plantTypes.xml", "<plants><plant"))
		assert.ErrorIs(t, err, farmerr.ErrLayoutLoad)
	})

	t.Run("no valid records", func(t *testing.T) {
		_, err := LoadCatalog(writeCatalog(t, "plantTypes.xml", `<plants><plant name="x"/></plants>`))
		assert.ErrorIs(t, err, farmerr.ErrLayoutLoad)
	})
}

func TestCatalog_LookupUnknown(t *testing.T) {
	c, err := NewCatalog(PlantType{Name: "basil", StageDays: [StageCount]int{1, 2, 3}})
	require.NoError(t, err)

	_, err = c.Lookup("mint")
	assert.ErrorIs(t, err, farmerr.ErrNotFound)
}

func TestNewCatalog_Rejects(t *testing.T) {
	_, err := NewCatalog(PlantType{Name: "a"}, PlantType{Name: "a"})
	assert.Error(t, err)

	_, err = NewCatalog(PlantType{Name: "b", StageDays: [StageCount]int{1, -2, 3}})
	assert.Error(t, err)
}

func TestGrowthStage(t *testing.T) {
	assert.Equal(t, "Seed", Seed.String())
	assert.Equal(t, "PreGrowth", PreGrowth.String())
	assert.Equal(t, "Full", Full.String())
	assert.True(t, Full.Terminal())
	assert.False(t, PreGrowth.Terminal())
	assert.False(t, GrowthStage(3).Valid())
	assert.False(t, GrowthStage(-1).Valid())
}
