package records

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), WithRecordTimeout(2*time.Second), WithWorkers(3))
	require.NoError(t, err)
	return s
}

func plantRecords() []PlantRecord {
	return []PlantRecord{
		{Version: SchemaVersion, ID: 1, Type: "lettuce", SlotID: "1,10,10", GrowthStage: 0, DaysInStage: 3},
		{Version: SchemaVersion, ID: 2, Type: "lettuce", SlotID: "1,10,40", GrowthStage: 1, DaysInStage: 0},
		{Version: SchemaVersion, ID: 3, Type: "radish", SlotID: "A1", GrowthStage: 2, DaysInStage: 9},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	loaded, report := s.LoadPlants(ctx)
	assert.Empty(t, loaded)
	assert.True(t, report.OK())

	saved := s.SavePlants(ctx, plantRecords())
	assert.Equal(t, 3, saved.Succeeded)
	assert.True(t, saved.OK())

	slots := []SlotRecord{
		{Version: SchemaVersion, ID: "1,10,10", ZoneID: 1, X: 10, Y: 10, Z: -20, Occupied: true, PlantID: 1},
		{Version: SchemaVersion, ID: "A1", ZoneID: 2, X: 210, Y: 10, Z: -30, Occupied: false},
	}
	assert.True(t, s.SaveSlots(ctx, slots).OK())

	plants, report := s.LoadPlants(ctx)
	require.True(t, report.OK())
	require.Len(t, plants, 3)
	for i, want := range plantRecords() {
		assert.Equal(t, want.ID, plants[i].ID)
		assert.Equal(t, want.SlotID, plants[i].SlotID)
		assert.Equal(t, want.GrowthStage, plants[i].GrowthStage)
		assert.Equal(t, want.DaysInStage, plants[i].DaysInStage)
	}

	gotSlots, report := s.LoadSlots(ctx)
	require.True(t, report.OK())
	require.Len(t, gotSlots, 2)
	assert.Equal(t, "1,10,10", gotSlots[0].ID)
	assert.True(t, gotSlots[0].Occupied)
	assert.Equal(t, uint64(1), gotSlots[0].PlantID)
	assert.Equal(t, "A1", gotSlots[1].ID)
	assert.False(t, gotSlots[1].Occupied)
	assert.Equal(t, 210, gotSlots[1].X)
}

func TestStore_SaveOverwritesByKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	recs := plantRecords()
	require.True(t, s.SavePlants(ctx, recs).OK())

	recs[0].GrowthStage = 1
	recs[0].DaysInStage = 0
	require.True(t, s.SavePlants(ctx, recs[:1]).OK())

	plants, _ := s.LoadPlants(ctx)
	require.Len(t, plants, 3)
	assert.Equal(t, 1, plants[0].GrowthStage)
}

func TestStore_SkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.True(t, s.SavePlants(ctx, plantRecords()).OK())

	// garble one record, make another semantically invalid
	require.NoError(t, os.WriteFile(s.path(KindPlant, "2"), []byte(`{"version":1,"id":2,`), 0o644))
	require.NoError(t, os.WriteFile(s.path(KindPlant, "3"),
		[]byte(`{"version":1,"id":3,"type":"radish","slot_id":"A1","growth_stage":7}`), 0o644))
	// a record file whose content belongs to another key
	require.NoError(t, os.WriteFile(s.path(KindPlant, "9"),
		[]byte(`{"version":1,"id":1,"type":"radish","slot_id":"A1"}`), 0o644))

	plants, report := s.LoadPlants(ctx)

	require.Len(t, plants, 1)
	assert.Equal(t, uint64(1), plants[0].ID)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, []string{"2.json", "3.json", "9.json"}, report.Failed)
}

func TestStore_IgnoresLegacyAndForeignFiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.True(t, s.SavePlants(ctx, plantRecords()[:1]).OK())

	dir := filepath.Join(s.Dir(), string(KindPlant))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "save.txt"), []byte("pickled"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0.txt"), []byte("pickled"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".record-123.tmp"), []byte("{}"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0o755))

	plants, report := s.LoadPlants(ctx)
	assert.Len(t, plants, 1)
	assert.True(t, report.OK())
}

func TestStore_SaveFailuresAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	recs := plantRecords()
	recs[1].Type = "" // invalid, refused

	report := s.SavePlants(ctx, recs)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, []string{"2"}, report.Failed)

	plants, _ := s.LoadPlants(ctx)
	assert.Len(t, plants, 2)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.True(t, s.SavePlants(ctx, plantRecords()).OK())

	require.NoError(t, s.Delete(ctx, KindPlant, "2"))
	require.NoError(t, s.Delete(ctx, KindPlant, "2"), "deleting twice is fine")

	plants, _ := s.LoadPlants(ctx)
	require.Len(t, plants, 2)
	assert.Equal(t, uint64(1), plants[0].ID)
	assert.Equal(t, uint64(3), plants[1].ID)
}

func TestStore_SlotKeysAreEscaped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := SlotRecord{Version: SchemaVersion, ID: "bed/1,2", Occupied: true}
	require.True(t, s.SaveSlots(ctx, []SlotRecord{rec}).OK())

	slots, report := s.LoadSlots(ctx)
	require.True(t, report.OK())
	require.Len(t, slots, 1)
	assert.Equal(t, "bed/1,2", slots[0].ID)
}

func TestStore_BoundedTimesOut(t *testing.T) {
	s, err := New(t.TempDir(), WithRecordTimeout(20*time.Millisecond))
	require.NoError(t, err)

	release := make(chan struct{})
	defer close(release)

	err = s.bounded(context.Background(), func() error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		ok   bool
	}{
		{"valid plant", PlantRecord{Version: 1, ID: 1, Type: "x", SlotID: "s"}, true},
		{"future schema", PlantRecord{Version: 2, ID: 1, Type: "x", SlotID: "s"}, false},
		{"zero id", PlantRecord{Version: 1, Type: "x", SlotID: "s"}, false},
		{"no slot", PlantRecord{Version: 1, ID: 1, Type: "x"}, false},
		{"negative days", PlantRecord{Version: 1, ID: 1, Type: "x", SlotID: "s", DaysInStage: -1}, false},
		{"valid slot", SlotRecord{Version: 1, ID: "A1"}, true},
		{"slot without id", SlotRecord{Version: 1}, false},
		{"slot without version", SlotRecord{ID: "A1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
