package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Notify(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(KindPotsNeedPeat, map[string]any{"slots": []string{"A1"}})

	assert.Equal(t, KindPotsNeedPeat, e.Kind)
	assert.Equal(t, "Some pots need new peat.", e.Subject)
	assert.WithinDuration(t, time.Now(), e.Timestamp, time.Second)
}

func TestKindSubjects(t *testing.T) {
	assert.Equal(t, "There are plants done.", KindPlantsReady.Subject())
	assert.Equal(t, "An error occurred.", KindError.Subject())
	assert.Equal(t, "An error occurred.", Kind("unknown").Subject())
}

func TestFanout_DeliversToAll(t *testing.T) {
	ok := &recorder{}
	failing := &recorder{err: errors.New("smtp down")}
	f := Fanout{ok, failing, LogNotifier{}}

	err := f.Notify(context.Background(), NewEvent(KindPlantsReady, nil))

	assert.ErrorContains(t, err, "smtp down")
	assert.Len(t, ok.events, 1)
	assert.Len(t, failing.events, 1)
}
