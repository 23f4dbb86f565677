package schedule

import (
	"context"
	"testing"

	"farm_scheduler/database"
	"farm_scheduler/farmerr"
	"farm_scheduler/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOutcomeLog(t *testing.T) *OutcomeLog {
	t.Helper()
	db, err := database.InitDatabase(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	require.NoError(t, database.AutoMigrate(db, &ActionOutcome{}))
	return NewOutcomeLog(db)
}

func TestRecordOutcome_RepotPromotes(t *testing.T) {
	outcomes := newOutcomeLog(t)
	f := newFixture(t, WithOutcomeLog(outcomes))
	ctx := context.Background()
	p := f.seed(t, "A1", "lettuce")

	err := f.engine.RecordOutcome(ctx, Outcome{Action: ActionRepot, Subject: "1", Success: true})
	require.NoError(t, err)

	got, _ := f.engine.Plant(p.ID)
	assert.Equal(t, "PreGrowth", got.Stage)
	assert.Equal(t, []string{"repot:ok"}, f.actuator.outcomes)

	rows, err := outcomes.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "repot", rows[0].Action)
	assert.Equal(t, "1", rows[0].Subject)
	assert.True(t, rows[0].Success)
}

func TestRecordOutcome_HarvestRemoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seed(t, "A1", "lettuce")

	require.NoError(t, f.engine.RecordOutcome(ctx, Outcome{Action: ActionHarvest, Subject: "1", Success: true}))

	_, err := f.engine.Plant(p.ID)
	assert.ErrorIs(t, err, farmerr.ErrNotFound)
	f.symmetric(t)
}

func TestRecordOutcome_FailureNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seed(t, "A1", "lettuce")

	err := f.engine.RecordOutcome(ctx, Outcome{Action: ActionRepot, Subject: "1", Success: false, Detail: "gripper slipped"})
	require.NoError(t, err)

	got, _ := f.engine.Plant(p.ID)
	assert.Equal(t, "Seed", got.Stage, "failed repot changes nothing")
	assert.Equal(t, []notify.Kind{notify.KindError}, f.notifier.kinds())
	assert.Equal(t, []string{"repot:fail"}, f.actuator.outcomes)
}

func TestRecordOutcome_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.engine.RecordOutcome(ctx, Outcome{Action: "dance", Success: true})
	assert.ErrorIs(t, err, ErrBadInput)

	err = f.engine.RecordOutcome(ctx, Outcome{Action: ActionRepot, Subject: "abc", Success: true})
	assert.ErrorIs(t, err, ErrBadInput)

	err = f.engine.RecordOutcome(ctx, Outcome{Action: ActionHarvest, Subject: "42", Success: true})
	assert.ErrorIs(t, err, farmerr.ErrNotFound)
	assert.Equal(t, []string{"repot:fail", "harvest:fail"}, f.actuator.outcomes)

	require.NoError(t, f.engine.RecordOutcome(ctx, Outcome{Action: ActionWater, Subject: "1", Success: true}))
}

func TestOutcomeLog_RecentNewestFirst(t *testing.T) {
	outcomes := newOutcomeLog(t)
	ctx := context.Background()

	for _, s := range []string{"1", "2", "3"} {
		require.NoError(t, outcomes.Append(ctx, Outcome{Action: ActionWater, Subject: s, Success: true}))
	}

	rows, err := outcomes.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "3", rows[0].Subject)
	assert.Equal(t, "2", rows[1].Subject)
}
