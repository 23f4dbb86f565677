package layout

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"farm_scheduler/farmerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLayoutXML = `<layout>
  <region id="1" gs="0" x1="0" y1="0" x2="100" y2="100" xw="5" yw="5" zw="10">
    <bac x1="0" y1="0" x2="100" y2="100" z="-20" border="10" dist="30"/>
    <bac x1="0" y1="0" x2="10" y2="10" z="-20" border="1" dist="zero"/>
  </region>
  <region id="2" gs="1" x1="200" y1="0" x2="300" y2="100" xw="205" yw="5" zw="0">
    <pot id="A1" x="210" y="10" z="-30"/>
    <pot id="A2" x="240" y="10" z="-30"/>
    <pot id="A3" x="oops" y="10" z="-30"/>
  </region>
  <region id="3" gs="1" x1="0" y1="0" x2="10" y2="10" xw="0" yw="0"/>
  <region id="2" gs="1" x1="0" y1="0" x2="10" y2="10" xw="0" yw="0" zw="0"/>
</layout>`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGenerateGrid_HalfOpenStepping(t *testing.T) {
	zone := &Zone{ID: 1}
	bed := Bed{Bounds: Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}, Z: -20, Border: 10, Dist: 30}

	slots := GenerateGrid(zone, bed)

	var got []Point
	for _, s := range slots {
		got = append(got, Point{X: s.Position.X, Y: s.Position.Y})
		assert.Equal(t, -20, s.Position.Z)
		assert.Same(t, zone, s.Zone)
	}
	want := []Point{
		{X: 10, Y: 10}, {X: 10, Y: 40}, {X: 10, Y: 70},
		{X: 40, Y: 10}, {X: 40, Y: 40}, {X: 40, Y: 70},
		{X: 70, Y: 10}, {X: 70, Y: 40}, {X: 70, Y: 70},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, "1,10,40", slots[1].ID)
}

func TestGenerateGrid_Degenerate(t *testing.T) {
	zone := &Zone{ID: 4}

	assert.Empty(t, GenerateGrid(zone, Bed{Bounds: Rect{X2: 20, Y2: 20}, Border: 10, Dist: 5}))
	assert.Empty(t, GenerateGrid(zone, Bed{Bounds: Rect{X2: 20, Y2: 20}, Dist: 0}))
	assert.Len(t, GenerateGrid(zone, Bed{Bounds: Rect{X2: 1, Y2: 1}, Dist: 100}), 1)
}

func TestLoad_XMLLayout(t *testing.T) {
	path := writeFile(t, t.TempDir(), "potLayout.xml", testLayoutXML)

	l, err := Load(path)
	require.NoError(t, err)

	zones := l.Zones()
	require.Len(t, zones, 2, "zone 3 lacks zw and the second zone 2 is a duplicate")
	assert.Equal(t, 1, zones[0].ID)
	assert.True(t, zones[0].Dense())
	assert.Equal(t, Point{X: 5, Y: 5, Z: 10}, zones[0].WaterPoint)
	assert.Len(t, zones[0].Slots(), 9)

	explicit := zones[1].Slots()
	require.Len(t, explicit, 2)
	assert.Equal(t, "A1", explicit[0].ID)
	assert.Equal(t, Point{X: 240, Y: 10, Z: -30}, explicit[1].Position)

	assert.Equal(t, 11, l.SlotCount())
	slot, err := l.Slot("1,70,70")
	require.NoError(t, err)
	assert.Equal(t, 1, slot.ZoneID())
	assert.True(t, slot.Free())
	assert.False(t, slot.Occupied)
}

func TestLoad_TOMLLayout(t *testing.T) {
	path := writeFile(t, t.TempDir(), "layout.toml", `
[[zone]]
id = 7
gs = 0
x1 = 0
y1 = 0
x2 = 100
y2 = 100
xw = 1
yw = 2
zw = 3

  [[zone.bac]]
  x1 = 0
  y1 = 0
  x2 = 100
  y2 = 100
  z = 0
  border = 10
  dist = 30
`)

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, l.SlotCount())
	_, err = l.Slot("7,10,10")
	assert.NoError(t, err)
}

func TestLoad_Fatal(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.xml"))
	assert.ErrorIs(t, err, farmerr.ErrLayoutLoad)

	_, err = Load(writeFile(t, dir, "broken.xml", "<layout><region id="))
	assert.ErrorIs(t, err, farmerr.ErrLayoutLoad)

	_, err = Load(writeFile(t, dir, "empty.xml", `<layout><region id="x"/></layout>`))
	assert.ErrorIs(t, err, farmerr.ErrLayoutLoad)
}

func TestLookups_NotFound(t *testing.T) {
	l, err := Load(writeFile(t, t.TempDir(), "potLayout.xml", testLayoutXML))
	require.NoError(t, err)

	_, err = l.Zone(99)
	assert.ErrorIs(t, err, farmerr.ErrNotFound)
	_, err = l.Slot("nope")
	assert.ErrorIs(t, err, farmerr.ErrNotFound)
}

func TestReconcile(t *testing.T) {
	l, err := Load(writeFile(t, t.TempDir(), "potLayout.xml", testLayoutXML))
	require.NoError(t, err)

	report := l.Reconcile([]SlotState{
		{ID: "A1", Occupied: true},
		{ID: "1,10,10", Occupied: true},
		{ID: "9,0,0", Occupied: true},
	})

	assert.Equal(t, 2, report.Applied)
	assert.Equal(t, []string{"9,0,0"}, report.Dropped)

	a1, _ := l.Slot("A1")
	assert.True(t, a1.Occupied)
	a2, _ := l.Slot("A2")
	assert.False(t, a2.Occupied)
}

func TestLoadTools(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file keeps defaults", func(t *testing.T) {
		reg, err := LoadTools(filepath.Join(dir, "tools.xml"))
		require.NoError(t, err)
		assert.Equal(t, []string{ToolPlanter, ToolSeeder, ToolSoilSensor}, reg.Names())
	})

	t.Run("file overrides and extends", func(t *testing.T) {
		path := writeFile(t, dir, "tools.xml", `<tools>
  <tool ident="seeder" x="10" y="20" z="-5"/>
  <tool ident="watering" x="1" y="1" z="1"/>
  <tool ident="bad" x="1"/>
</tools>`)
		reg, err := LoadTools(path)
		require.NoError(t, err)

		pos, err := reg.Position(ToolSeeder)
		require.NoError(t, err)
		assert.Equal(t, Point{X: 10, Y: 20, Z: -5}, pos)

		_, err = reg.Position("watering")
		assert.NoError(t, err)
		_, err = reg.Position("bad")
		assert.ErrorIs(t, err, farmerr.ErrNotFound)
		assert.Len(t, reg.All(), 4)
	})

	t.Run("malformed file is fatal", func(t *testing.T) {
		_, err := LoadTools(writeFile(t, dir, "broken.xml", "<tools><tool"))
		assert.ErrorIs(t, err, farmerr.ErrLayoutLoad)
	})
}

func TestWatcher_ReportsChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "potLayout.xml", testLayoutXML)
	writeFile(t, dir, "unrelated.txt", "x")

	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(testLayoutXML+"\n"), 0o644))

	select {
	case change := <-w.Changes:
		assert.Equal(t, ChangeModified, change.Kind)
		assert.Equal(t, "potLayout.xml", filepath.Base(change.File))
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change event for the layout file")
	}
}

func TestLoad_ShippedSamplesAgree(t *testing.T) {
	fromXML, err := Load(filepath.Join("..", "testdata", "potLayout.xml"))
	require.NoError(t, err)
	fromTOML, err := Load(filepath.Join("..", "testdata", "layout.toml"))
	require.NoError(t, err)

	assert.Equal(t, 12, fromXML.SlotCount())
	assert.Equal(t, 11, fromTOML.SlotCount())
	for _, id := range []int{1, 2} {
		x, err := fromXML.Zone(id)
		require.NoError(t, err)
		y, err := fromTOML.Zone(id)
		require.NoError(t, err)
		assert.Equal(t, x.WaterPoint, y.WaterPoint)
		assert.Equal(t, x.Bounds, y.Bounds)
	}
}
