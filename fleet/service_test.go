package fleet

import (
	"context"
	"testing"

	"farm_scheduler/database"
	"farm_scheduler/farmerr"
	"farm_scheduler/layout"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type serviceFixture struct {
	db      *gorm.DB
	broker  *MessageBroker
	manager *DeviceManager
	svc     *DeviceService
}

func openFleetDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitDatabase(database.MemoryPath)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, Models()...))
	t.Cleanup(func() { database.Close(db) })
	return db
}

func newServiceFixture(t *testing.T, db *gorm.DB) *serviceFixture {
	t.Helper()
	b := newTestBroker(t)
	m := NewDeviceManager(context.Background(), b)
	t.Cleanup(m.ShutdownAll)
	return &serviceFixture{db: db, broker: b, manager: m, svc: NewDeviceService(m, b, db)}
}

func TestCascadeDelete(t *testing.T) {
	db := openFleetDB(t)

	var schema string
	require.NoError(t, db.Raw("SELECT sql FROM sqlite_master WHERE type='table' AND name='irrigation_devices'").
		Scan(&schema).Error)
	assert.Contains(t, schema, "ON DELETE CASCADE")

	id := uuid.New()
	require.NoError(t, db.Create(&IrrigationDevice{
		Device: RegisteredDevice{
			UUID:       id,
			Name:       "Test Sprinkler",
			Status:     DeviceStatusAvailable,
			WorkerType: WorkerTypeIrrigation,
			DeviceType: DeviceTypeSprinkler,
			Zone:       "1",
		},
		GallonsPerMinute: 5,
	}).Error)

	var irrigationCount int64
	db.Model(&IrrigationDevice{}).Count(&irrigationCount)
	require.Equal(t, int64(1), irrigationCount)

	// soft deletes never reach the FK, so only a hard delete cascades
	require.NoError(t, db.Unscoped().Where("uuid = ?", id).Delete(&RegisteredDevice{}).Error)

	db.Model(&IrrigationDevice{}).Count(&irrigationCount)
	assert.Equal(t, int64(0), irrigationCount)
}

func TestRegisteredDevice_BeforeCreateKeepsUUID(t *testing.T) {
	db := openFleetDB(t)
	id := uuid.New()

	withID := &RegisteredDevice{UUID: id, DeviceType: DeviceTypeGantry}
	require.NoError(t, db.Create(withID).Error)
	assert.Equal(t, id, withID.UUID)

	fresh := &RegisteredDevice{DeviceType: DeviceTypeGantry}
	require.NoError(t, db.Create(fresh).Error)
	assert.NotEqual(t, uuid.Nil, fresh.UUID)
}

func TestRegisterDevice_Sprinkler(t *testing.T) {
	f := newServiceFixture(t, openFleetDB(t))
	ctx := context.Background()

	id, err := f.svc.RegisterDevice(ctx, RegisterDeviceReq{
		Name:             "north bed",
		SerialNumber:     "SP-1",
		DeviceType:       "sprinkler",
		Zone:             "1",
		GallonsPerMinute: 2.5,
	})
	require.NoError(t, err)
	assert.True(t, f.manager.Serving(IrrigationTopic("1")))

	devices, err := f.svc.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	d := devices[0]
	assert.Equal(t, id, d.UUID)
	assert.Equal(t, DeviceTypeSprinkler, d.DeviceType)
	assert.Equal(t, WorkerTypeIrrigation, d.WorkerType)
	assert.True(t, d.Running)
	assert.Equal(t, IrrigationTopic("1"), d.Topic)
}

func TestRegisterDevice_Rejected(t *testing.T) {
	f := newServiceFixture(t, openFleetDB(t))
	ctx := context.Background()

	_, err := f.svc.RegisterDevice(ctx, RegisterDeviceReq{DeviceType: "drone"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.RegisterDevice(ctx, RegisterDeviceReq{DeviceType: DeviceTypeSprinkler})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, 0, f.manager.Len())
}

func TestUnregisterDevice(t *testing.T) {
	f := newServiceFixture(t, openFleetDB(t))
	ctx := context.Background()

	id, err := f.svc.RegisterDevice(ctx, RegisterDeviceReq{DeviceType: DeviceTypeSprinkler, Zone: "2"})
	require.NoError(t, err)

	require.NoError(t, f.svc.UnregisterDevice(ctx, id))
	assert.False(t, f.broker.HasSubscribers(IrrigationTopic("2")))

	devices, err := f.svc.ListDevices(ctx)
	require.NoError(t, err)
	assert.Empty(t, devices)

	var details int64
	f.db.Model(&IrrigationDevice{}).Count(&details)
	assert.Equal(t, int64(0), details)

	assert.ErrorIs(t, f.svc.UnregisterDevice(ctx, id), farmerr.ErrNotFound)
}

func TestRestoreDevices(t *testing.T) {
	db := openFleetDB(t)
	ctx := context.Background()

	first := newServiceFixture(t, db)
	sid, err := first.svc.RegisterDevice(ctx, RegisterDeviceReq{DeviceType: DeviceTypeSprinkler, Zone: "1"})
	require.NoError(t, err)
	home := layout.Point{X: 5, Y: 6, Z: 7}
	gid, err := first.svc.RegisterDevice(ctx, RegisterDeviceReq{DeviceType: DeviceTypeGantry, Home: home})
	require.NoError(t, err)
	first.manager.ShutdownAll()

	second := newServiceFixture(t, db)
	n, err := second.svc.RestoreDevices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok := second.manager.Get(sid.String())
	assert.True(t, ok)
	w, ok := second.manager.Get(gid.String())
	require.True(t, ok)
	assert.Equal(t, home, w.(*Gantry).Position())

	n, err = second.svc.RestoreDevices(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "running devices are not started twice")
}

func TestEnsureSimulated(t *testing.T) {
	f := newServiceFixture(t, openFleetDB(t))
	ctx := context.Background()

	require.NoError(t, f.svc.EnsureSimulated(ctx, []string{"1", "2"}, layout.Point{}))
	assert.Equal(t, []string{TopicGantry, IrrigationTopic("1"), IrrigationTopic("2")}, f.manager.Topics())

	require.NoError(t, f.svc.EnsureSimulated(ctx, []string{"1", "2"}, layout.Point{}))
	devices, err := f.svc.ListDevices(ctx)
	require.NoError(t, err)
	assert.Len(t, devices, 3)
}

func TestPublishTask(t *testing.T) {
	f := newServiceFixture(t, openFleetDB(t))
	ctx := context.Background()

	_, err := f.svc.PublishTask(ctx, Task{Topic: TopicGantry})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	id, err := f.svc.PublishTask(ctx, Task{Topic: TopicGantry, Instruction: InstructionMove})
	require.NoError(t, err)
	st, err := f.svc.TaskStatus(id)
	require.NoError(t, err)
	assert.Equal(t, Queued, st.Status)
}
