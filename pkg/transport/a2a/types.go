package a2a

import (
	"encoding/json"
	"time"
)

// Method names served on the JSON-RPC endpoint.
const (
	MethodSendMessage = "message/send"
	MethodGetTask     = "tasks/get"
)

// Application error codes, in the JSON-RPC server-error range.
const (
	CodeAuthFailed   = -32000
	CodeTaskNotFound = -32001
)

// Part kinds.
const (
	PartText = "text"
	PartData = "data"
)

// Part is one piece of message or artifact content.
type Part struct {
	Kind string         `json:"kind"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// Message is a single turn sent by the client.
type Message struct {
	Kind      string `json:"kind"`
	MessageID string `json:"messageId"`
	ContextID string `json:"contextId,omitempty"`
	Role      string `json:"role"`
	Parts     []Part `json:"parts"`
}

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// TaskStatus is the current state of a task.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// Artifact is an output produced by a task.
type Artifact struct {
	ArtifactID string `json:"artifactId"`
	Name       string `json:"name"`
	Parts      []Part `json:"parts"`
}

// Task is the result of message/send and tasks/get.
type Task struct {
	Kind      string     `json:"kind"`
	ID        string     `json:"id"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	History   []Message  `json:"history,omitempty"`
}

// SendMessageParams are the params of message/send.
type SendMessageParams struct {
	Message Message `json:"message"`
}

// GetTaskParams are the params of tasks/get.
type GetTaskParams struct {
	ID string `json:"id"`
}

// AgentCard describes the agent at the well-known discovery path.
type AgentCard struct {
	Name               string                    `json:"name"`
	Description        string                    `json:"description"`
	URL                string                    `json:"url"`
	Version            string                    `json:"version"`
	ProtocolVersion    string                    `json:"protocolVersion"`
	PreferredTransport string                    `json:"preferredTransport"`
	Capabilities       AgentCapabilities         `json:"capabilities"`
	DefaultInputModes  []string                  `json:"defaultInputModes"`
	DefaultOutputModes []string                  `json:"defaultOutputModes"`
	Skills             []AgentSkill              `json:"skills"`
	SecuritySchemes    map[string]SecurityScheme `json:"securitySchemes"`
	Security           []map[string][]string     `json:"security"`
}

// AgentCapabilities lists optional protocol features.
type AgentCapabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"pushNotifications"`
}

// AgentSkill is one capability advertised in the card.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Examples    []string `json:"examples,omitempty"`
}

// SecurityScheme is an OpenAPI-style security scheme.
type SecurityScheme struct {
	Type        string `json:"type"`
	Scheme      string `json:"scheme,omitempty"`
	Description string `json:"description,omitempty"`
}

// errorData is the data member of identity failures.
type errorData struct {
	Reason string `json:"reason"`
}

func mustRaw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
