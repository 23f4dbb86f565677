package fleet

import (
	"time"

	"farm_scheduler/layout"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	Queued   TaskStatus = "Queued"
	Running  TaskStatus = "Running"
	Complete TaskStatus = "Complete"
	Failed   TaskStatus = "Failed"
)

// Instructions understood by the fleet devices.
const (
	InstructionStart   = "start"
	InstructionStop    = "stop"
	InstructionMove    = "move"
	InstructionOutcome = "outcome"
)

// Topics devices subscribe to.
const (
	TopicGantry   = "gantry"
	TopicOutcomes = "outcomes"
)

// IrrigationTopic is the topic the sprinklers of a zone listen on.
func IrrigationTopic(zone string) string {
	return "irrigation-" + zone
}

type Task struct {
	ID          uuid.UUID     `json:"id"`
	Topic       string        `json:"topic"`
	Instruction string        `json:"instruction"`
	Zone        string        `json:"zone,omitempty"`
	Target      layout.Point  `json:"target"`
	Speed       int           `json:"speed,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	// Action and Success carry outcome echoes on TopicOutcomes.
	Action  string `json:"action,omitempty"`
	Success bool   `json:"success,omitempty"`
}

// NewTask returns a task with a fresh id.
func NewTask(topic, instruction string) Task {
	return Task{
		ID:          uuid.New(),
		Topic:       topic,
		Instruction: instruction,
	}
}

type TaskHandler interface {
	HandleTask(task Task)
}

type TaskState struct {
	Task        Task       `json:"task"`
	PublishedAt time.Time  `json:"published_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      TaskStatus `json:"status"`
	DeviceID    string     `json:"device_id,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// settled reports whether the task reached a final status.
func (s *TaskState) settled() bool {
	return s.Status == Complete || s.Status == Failed
}

type TaskAck struct {
	TaskID    uuid.UUID
	Status    TaskStatus
	DeviceID  uuid.UUID
	Timestamp time.Time
	Error     string
}

func NewTaskAck(tid uuid.UUID, s TaskStatus, did uuid.UUID) TaskAck {
	return TaskAck{
		TaskID:    tid,
		Status:    s,
		DeviceID:  did,
		Timestamp: time.Now(),
	}
}

func NewErrTaskAck(tid uuid.UUID, did uuid.UUID, errorMsg string) TaskAck {
	ta := NewTaskAck(tid, Failed, did)
	ta.Error = errorMsg
	return ta
}
