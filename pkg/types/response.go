package types

import "github.com/angelmondragon/getsum-node/pkg/message"

// SuccessEnvelope wraps every 2xx body of the ops surface.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// HealthStatus is the body of the liveness and readiness probes. Checks maps
// a dependency name to "ok" or the reason it is down.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

const (
	HealthLive  = "live"
	HealthReady = "ready"
)

// TransformResult reports where a message went after one pass through the
// node. Error is set only for the Failure relation.
type TransformResult struct {
	Relation string          `json:"relation"`
	Outcome  string          `json:"outcome"`
	Message  message.Message `json:"message"`
	Error    *APIError       `json:"error,omitempty"`
}
