package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Subscriber chan Task

type Broker interface {
	Subscribe(topic string) Subscriber
	Unsubscribe(topic string, ch Subscriber)
	Publish(ctx context.Context, task Task) error
	HasSubscribers(topic string) bool
	GetACKChannel() chan TaskAck
	GetTaskStatus(taskID uuid.UUID) (*TaskState, error)
	OnSettled(fn SettledFunc)
	Shutdown()
}

type DLQManager interface {
	GetDLQTasks() []DLQEntry
	RequeueFromDLQ(taskID uuid.UUID) error
	RemoveFromDLQ(taskID uuid.UUID) error
	ClearDLQ()
}

// ErrTaskNotFound is returned for task ids the broker does not track.
var ErrTaskNotFound = errors.New("task not found")

// SettledFunc observes tasks that completed or were dead-lettered.
type SettledFunc func(state TaskState)

const (
	defaultRetryPoll      = time.Second
	defaultStateRetention = time.Hour
)

type MessageBroker struct {
	subscribers map[string][]Subscriber // keys are topics
	ackChan     chan TaskAck
	taskStates  map[uuid.UUID]*TaskState
	retryQueue  map[uuid.UUID]*TaskRetryState
	retryConfig RetryConfig
	retryPoll   time.Duration
	retention   time.Duration
	onSettled   []SettledFunc
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	dlq         []DLQEntry
	dlqMu       sync.RWMutex
}

type BrokerOption func(*MessageBroker)

func WithRetryConfig(c RetryConfig) BrokerOption {
	return func(b *MessageBroker) { b.retryConfig = c }
}

// WithRetryPoll sets how often the retry queue is scanned.
func WithRetryPoll(d time.Duration) BrokerOption {
	return func(b *MessageBroker) {
		if d > 0 {
			b.retryPoll = d
		}
	}
}

// WithStateRetention sets how long completed task states stay queryable.
func WithStateRetention(d time.Duration) BrokerOption {
	return func(b *MessageBroker) {
		if d > 0 {
			b.retention = d
		}
	}
}

func NewMessageBroker(opts ...BrokerOption) *MessageBroker {
	ctx, cancel := context.WithCancel(context.Background())
	b := &MessageBroker{
		subscribers: make(map[string][]Subscriber),
		ackChan:     make(chan TaskAck, 100),
		taskStates:  make(map[uuid.UUID]*TaskState),
		retryQueue:  make(map[uuid.UUID]*TaskRetryState),
		retryConfig: DefaultRetryConfig(),
		retryPoll:   defaultRetryPoll,
		retention:   defaultStateRetention,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.wg.Add(2)
	go b.listenForACKs()
	go b.initRetryBackgroundProcess()

	return b
}

// OnSettled registers fn to be called, outside the broker lock, whenever a
// task completes or lands in the DLQ.
func (b *MessageBroker) OnSettled(fn SettledFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSettled = append(b.onSettled, fn)
}

func (b *MessageBroker) Subscribe(topic string) Subscriber {
	ch := make(Subscriber, 10)
	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()
	return ch
}

func (b *MessageBroker) Unsubscribe(topic string, ch Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, sub := range subs {
		if sub == ch {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	log.Debug().Str("topic", topic).Msg("Unsubscribed")
}

func (b *MessageBroker) HasSubscribers(topic string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic]) > 0
}

// Publish delivers task to every subscriber of its topic without blocking.
// A task nobody listens to is tracked but not delivered.
func (b *MessageBroker) Publish(ctx context.Context, task Task) error {
	b.mu.Lock()
	if _, exists := b.taskStates[task.ID]; !exists {
		b.taskStates[task.ID] = &TaskState{
			Task:        task,
			PublishedAt: time.Now(),
			Status:      Queued,
		}
	}
	subs := append([]Subscriber(nil), b.subscribers[task.Topic]...)
	b.mu.Unlock()

	if len(subs) == 0 {
		log.Debug().Str("topic", task.Topic).Stringer("task", task.ID).Msg("No subscribers, task not delivered")
		return nil
	}

	var (
		successCount     int
		timeoutCount     int
		channelFullCount int
	)

	for i, sub := range subs {
		select {
		case sub <- task:
			successCount++
		case <-ctx.Done():
			timeoutCount++
			log.Error().Stringer("task", task.ID).Int("subscriber", i).Str("topic", task.Topic).
				Msg("Delivery cancelled")
		default:
			channelFullCount++
			log.Error().Stringer("task", task.ID).Int("subscriber", i).Str("topic", task.Topic).
				Msg("Delivery failed, channel full")
		}
	}

	if timeoutCount > 0 || channelFullCount > 0 {
		return fmt.Errorf(
			"partial delivery failure on topic '%s': %d/%d delivered (%d timeout, %d channel full)",
			task.Topic, successCount, len(subs), timeoutCount, channelFullCount,
		)
	}

	log.Debug().Stringer("task", task.ID).Int("subscribers", successCount).Str("topic", task.Topic).
		Msg("Task delivered")
	return nil
}

func (b *MessageBroker) GetACKChannel() chan TaskAck {
	return b.ackChan
}

func (b *MessageBroker) listenForACKs() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ack, ok := <-b.ackChan:
			if !ok {
				return
			}
			b.processACK(ack)
		}
	}
}

func (b *MessageBroker) processACK(ack TaskAck) {
	entry := log.Debug()
	if ack.Status == Failed {
		entry = log.Warn().Str("error", ack.Error)
	}
	entry.Stringer("task", ack.TaskID).Str("status", string(ack.Status)).Stringer("device", ack.DeviceID).Msg("ACK")

	var (
		settled  *TaskState
		handlers []SettledFunc
	)

	b.mu.Lock()
	state, exists := b.taskStates[ack.TaskID]
	if !exists {
		b.mu.Unlock()
		log.Warn().Stringer("task", ack.TaskID).Msg("ACK for unknown task")
		return
	}

	state.Status = ack.Status
	state.DeviceID = ack.DeviceID.String()
	switch ack.Status {
	case Running:
		if state.StartedAt == nil {
			now := ack.Timestamp
			state.StartedAt = &now
		}
	case Complete:
		if state.CompletedAt == nil {
			now := ack.Timestamp
			state.CompletedAt = &now
		}
		delete(b.retryQueue, ack.TaskID)
		cp := *state
		settled = &cp
	case Failed:
		state.LastError = ack.Error
		if b.scheduleRetry(ack, state) {
			cp := *state
			settled = &cp
		}
	}
	handlers = b.onSettled
	b.mu.Unlock()

	if settled != nil {
		for _, fn := range handlers {
			fn(*settled)
		}
	}
}

// scheduleRetry queues a failed task for republishing, or moves it to the
// DLQ once MaxRetries is exceeded. It reports whether the task was
// dead-lettered. Callers hold b.mu.
func (b *MessageBroker) scheduleRetry(ack TaskAck, state *TaskState) bool {
	t, ok := b.retryQueue[ack.TaskID]
	if !ok {
		t = &TaskRetryState{
			Task:       state.Task,
			MaxRetries: b.retryConfig.MaxRetries,
		}
		b.retryQueue[ack.TaskID] = t
	}
	t.Attempts++
	t.LastAttempt = time.Now()
	t.LastError = ack.Error

	if t.Attempts > b.retryConfig.MaxRetries {
		log.Error().Stringer("task", ack.TaskID).Int("max_retries", b.retryConfig.MaxRetries).
			Msg("Task exceeded max retries, moving to DLQ")
		delete(b.retryQueue, ack.TaskID)
		b.dlqMu.Lock()
		b.dlq = append(b.dlq, DLQEntry{
			Task:          t.Task,
			FailureReason: "attempts exceeded",
			Attempts:      t.Attempts,
			LastError:     t.LastError,
			AddedAt:       time.Now(),
		})
		b.dlqMu.Unlock()
		return true
	}

	t.NextRetry = time.Now().Add(calculateBackoff(t.Attempts, b.retryConfig))
	log.Info().Stringer("task", ack.TaskID).Int("attempt", t.Attempts+1).Time("next_retry", t.NextRetry).
		Msg("Scheduling retry")
	return false
}

func (b *MessageBroker) GetTaskStatus(taskID uuid.UUID) (*TaskState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ts, exists := b.taskStates[taskID]
	if !exists {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}
	stateCopy := *ts
	return &stateCopy, nil
}

func (b *MessageBroker) Shutdown() {
	b.cancel()
	b.wg.Wait()
	close(b.ackChan)
}

func (b *MessageBroker) initRetryBackgroundProcess() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.retryPoll)
	defer ticker.Stop()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.republishDue()
			b.pruneStates()
		}
	}
}

func (b *MessageBroker) republishDue() {
	now := time.Now()
	var tasksToRetry []Task
	b.mu.Lock()
	for _, t := range b.retryQueue {
		if t.NextRetry.After(now) {
			continue
		}
		tasksToRetry = append(tasksToRetry, t.Task)
		// wait for the next ACK before trying again
		t.NextRetry = now.Add(b.retryConfig.MaxBackoff)
	}
	b.mu.Unlock()

	for _, task := range tasksToRetry {
		log.Info().Stringer("task", task.ID).Str("topic", task.Topic).Msg("Republishing task")
		if err := b.Publish(b.ctx, task); err != nil {
			log.Error().Err(err).Stringer("task", task.ID).Msg("Republish failed")
		}
	}
}

func (b *MessageBroker) pruneStates() {
	cutoff := time.Now().Add(-b.retention)
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, st := range b.taskStates {
		if st.settled() && st.PublishedAt.Before(cutoff) {
			if _, retrying := b.retryQueue[id]; !retrying {
				delete(b.taskStates, id)
			}
		}
	}
}

func (b *MessageBroker) GetDLQTasks() []DLQEntry {
	b.dlqMu.RLock()
	defer b.dlqMu.RUnlock()
	cpy := make([]DLQEntry, len(b.dlq))
	copy(cpy, b.dlq)
	return cpy
}

func (b *MessageBroker) RequeueFromDLQ(taskID uuid.UUID) error {
	b.dlqMu.Lock()
	var (
		found bool
		entry DLQEntry
	)
	for i, value := range b.dlq {
		if value.Task.ID == taskID {
			entry = value
			b.dlq = append(b.dlq[:i], b.dlq[i+1:]...)
			found = true
			break
		}
	}
	b.dlqMu.Unlock()

	if !found {
		return fmt.Errorf("task %s in DLQ: %w", taskID, ErrTaskNotFound)
	}

	b.mu.Lock()
	b.retryQueue[taskID] = &TaskRetryState{
		Task:        entry.Task,
		Attempts:    0,
		MaxRetries:  b.retryConfig.MaxRetries,
		LastAttempt: time.Now(),
		NextRetry:   time.Now(),
		LastError:   entry.LastError,
	}
	if st, ok := b.taskStates[taskID]; ok {
		st.Status = Queued
	}
	b.mu.Unlock()

	return nil
}

func (b *MessageBroker) RemoveFromDLQ(taskID uuid.UUID) error {
	b.dlqMu.Lock()
	defer b.dlqMu.Unlock()
	for i, value := range b.dlq {
		if value.Task.ID == taskID {
			b.dlq = append(b.dlq[:i], b.dlq[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("task %s in DLQ: %w", taskID, ErrTaskNotFound)
}

func (b *MessageBroker) ClearDLQ() {
	b.dlqMu.Lock()
	defer b.dlqMu.Unlock()
	b.dlq = nil
}
