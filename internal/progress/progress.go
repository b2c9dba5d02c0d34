// Package progress implements the pure factory and view functions over a
// Context's append-only progressEvents log (spec.md §4.2).
package progress

import "time"

// EventType enumerates the kinds of progress events an agent may emit.
type EventType string

const (
	EventAgentStart     EventType = "agent_start"
	EventAgentComplete  EventType = "agent_complete"
	EventTaskStart      EventType = "task_start"
	EventTaskComplete   EventType = "task_complete"
	EventTaskProgress   EventType = "task_progress"
	EventAPICallStart   EventType = "api_call_start"
	EventAPICallSuccess EventType = "api_call_success"
	EventAPICallFailed  EventType = "api_call_failed"
	EventAPICallSkipped EventType = "api_call_skipped"
)

// Status is the lifecycle status attached to a progress event.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSuccess   Status = "success"
	StatusSkipped   Status = "skipped"
)

// Event is one entry of a Context's progressEvents log (spec.md §3).
type Event struct {
	Timestamp      time.Time `json:"timestamp"`
	Agent          string    `json:"agent"`
	EventType      EventType `json:"eventType"`
	Message        string    `json:"message"`
	TaskName       string    `json:"taskName,omitempty"`
	Symbol         string    `json:"symbol,omitempty"`
	Status         Status    `json:"status"`
	ExecutionOrder int       `json:"executionOrder"`
	IsParallel     bool      `json:"isParallel"`
	TransactionID  string    `json:"transactionId"`
	Integration    string    `json:"integration,omitempty"`
	DataType       string    `json:"dataType,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// AgentStart builds the canonical "<Agent>: Starting" event.
func AgentStart(agent, transactionID string, order int, isParallel bool) Event {
	return Event{
		Timestamp:      time.Now(),
		Agent:          agent,
		EventType:      EventAgentStart,
		Message:        agent + ": Starting",
		Status:         StatusRunning,
		ExecutionOrder: order,
		IsParallel:     isParallel,
		TransactionID:  transactionID,
	}
}

// AgentComplete builds the canonical "<Agent>: Completed" event.
func AgentComplete(agent, transactionID string, order int, isParallel bool) Event {
	return Event{
		Timestamp:      time.Now(),
		Agent:          agent,
		EventType:      EventAgentComplete,
		Message:        agent + ": Completed",
		Status:         StatusCompleted,
		ExecutionOrder: order,
		IsParallel:     isParallel,
		TransactionID:  transactionID,
	}
}

// TaskStart builds the canonical "<Agent>: Starting <task> for <symbol>..." event.
func TaskStart(agent, taskName, symbol, transactionID string, order int, isParallel bool) Event {
	msg := agent + ": Starting " + taskName
	if symbol != "" {
		msg += " for " + symbol
	}
	msg += "..."
	return Event{
		Timestamp:      time.Now(),
		Agent:          agent,
		EventType:      EventTaskStart,
		Message:        msg,
		TaskName:       taskName,
		Symbol:         symbol,
		Status:         StatusRunning,
		ExecutionOrder: order,
		IsParallel:     isParallel,
		TransactionID:  transactionID,
	}
}

// TaskComplete builds the canonical "<Agent>: Completed <task> for <symbol>" event.
func TaskComplete(agent, taskName, symbol, transactionID string, order int, isParallel bool) Event {
	msg := agent + ": Completed " + taskName
	if symbol != "" {
		msg += " for " + symbol
	}
	return Event{
		Timestamp:      time.Now(),
		Agent:          agent,
		EventType:      EventTaskComplete,
		Message:        msg,
		TaskName:       taskName,
		Symbol:         symbol,
		Status:         StatusCompleted,
		ExecutionOrder: order,
		IsParallel:     isParallel,
		TransactionID:  transactionID,
	}
}

// TaskProgress builds a free-form mid-task progress event.
func TaskProgress(agent, taskName, symbol, message, transactionID string, order int, isParallel bool) Event {
	if message == "" {
		message = agent + ": " + taskName + " in progress"
	}
	return Event{
		Timestamp:      time.Now(),
		Agent:          agent,
		EventType:      EventTaskProgress,
		Message:        message,
		TaskName:       taskName,
		Symbol:         symbol,
		Status:         StatusRunning,
		ExecutionOrder: order,
		IsParallel:     isParallel,
		TransactionID:  transactionID,
	}
}

// APICallStart builds the canonical outbound-call event.
func APICallStart(agent, integration, dataType, symbol, transactionID string, order int, isParallel bool) Event {
	return Event{
		Timestamp:      time.Now(),
		Agent:          agent,
		EventType:      EventAPICallStart,
		Message:        agent + ": Calling " + integration + " for " + dataType,
		Symbol:         symbol,
		Status:         StatusPending,
		ExecutionOrder: order,
		IsParallel:     isParallel,
		TransactionID:  transactionID,
		Integration:    integration,
		DataType:       dataType,
	}
}

// APICallSuccess builds the canonical outbound-call success event.
func APICallSuccess(agent, integration, dataType, symbol, transactionID string, order int, isParallel bool) Event {
	return Event{
		Timestamp:      time.Now(),
		Agent:          agent,
		EventType:      EventAPICallSuccess,
		Message:        agent + ": " + integration + " returned " + dataType,
		Symbol:         symbol,
		Status:         StatusSuccess,
		ExecutionOrder: order,
		IsParallel:     isParallel,
		TransactionID:  transactionID,
		Integration:    integration,
		DataType:       dataType,
	}
}

// APICallFailed builds the canonical outbound-call failure event.
func APICallFailed(agent, integration, dataType, symbol, transactionID string, order int, isParallel bool, err error) Event {
	e := Event{
		Timestamp:      time.Now(),
		Agent:          agent,
		EventType:      EventAPICallFailed,
		Message:        agent + ": " + integration + " failed for " + dataType,
		Symbol:         symbol,
		Status:         StatusFailed,
		ExecutionOrder: order,
		IsParallel:     isParallel,
		TransactionID:  transactionID,
		Integration:    integration,
		DataType:       dataType,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// APICallSkipped builds the canonical source-skip event (disabled integration).
func APICallSkipped(agent, integration, dataType, symbol, transactionID string, order int, isParallel bool) Event {
	return Event{
		Timestamp:      time.Now(),
		Agent:          agent,
		EventType:      EventAPICallSkipped,
		Message:        agent + ": Skipping " + integration + " (disabled)",
		Symbol:         symbol,
		Status:         StatusSkipped,
		ExecutionOrder: order,
		IsParallel:     isParallel,
		TransactionID:  transactionID,
		Integration:    integration,
		DataType:       dataType,
	}
}

// CurrentAgent returns the agent of the most recent unmatched agent_start,
// treating events as a partial order broken by insertion position (§4.2).
func CurrentAgent(events []Event) string {
	started := map[string]int{}
	var order []string
	for _, e := range events {
		switch e.EventType {
		case EventAgentStart:
			if _, ok := started[e.Agent]; !ok {
				order = append(order, e.Agent)
			}
			started[e.Agent]++
		case EventAgentComplete:
			if started[e.Agent] > 0 {
				started[e.Agent]--
			}
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		if started[order[i]] > 0 {
			return order[i]
		}
	}
	return ""
}

// CurrentTasks returns, per agent, the set of task names with a task_start
// but no later task_complete, in insertion order.
func CurrentTasks(events []Event) map[string][]string {
	type key struct{ agent, task string }
	running := map[key]bool{}
	var order []key

	for _, e := range events {
		if e.TaskName == "" {
			continue
		}
		k := key{e.Agent, e.TaskName}
		switch e.EventType {
		case EventTaskStart:
			if !running[k] {
				order = append(order, k)
			}
			running[k] = true
		case EventTaskComplete:
			running[k] = false
		}
	}

	out := map[string][]string{}
	for _, k := range order {
		if running[k] {
			out[k.agent] = append(out[k.agent], k.task)
		}
	}
	return out
}
