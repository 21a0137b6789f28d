// Package hostproto defines the JSON messages exchanged with a remote
// visualization host over a websocket.
package hostproto

import (
	"encoding/json"
	"fmt"
	"time"
)

// Method names understood by the host.
const (
	MethodGetSimulationTime          = "getSimulationTime"
	MethodGetObjectPredictedPosition = "getObjectPredictedPosition"
	MethodGetObjectPosition          = "getObjectPosition"
	MethodGetCameraPosition          = "getCameraPosition"
	MethodGetCameraDirection         = "getCameraDirection"
	MethodGetCameraUp                = "getCameraUp"
	MethodSetCameraPosition          = "setCameraPosition"
	MethodSetCameraDirection         = "setCameraDirection"
	MethodSetCameraUp                = "setCameraUp"
	MethodSetCameraFocus             = "setCameraFocus"
	MethodStartSimulationTime        = "startSimulationTime"
	MethodStopSimulationTime         = "stopSimulationTime"
	MethodSetSimulationTime          = "setSimulationTime"
	MethodSetSimulationPace          = "setSimulationPace"

	// Notifications carry no id and get no response.
	MethodParkRunnable   = "parkRunnable"
	MethodUnparkRunnable = "unparkRunnable"
)

// Request is a call to the host. ID 0 marks a notification.
type Request struct {
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers the Request with the same ID.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Error is a host-side failure.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("host error %d: %s", e.Code, e.Message)
}

// Error codes.
const (
	CodeUnknownMethod = 1
	CodeBadParams     = 2
	CodeNotFound      = 3
)

// NameParams selects an object or runnable by name.
type NameParams struct {
	Name string `json:"name"`
}

// VectorParams carries a Cartesian vector for a camera setter.
type VectorParams struct {
	Vector    [3]float64 `json:"vector"`
	Immediate bool       `json:"immediate"`
}

// TimeParams sets the simulation clock.
type TimeParams struct {
	Time time.Time `json:"time"`
}

// PaceParams sets simulated seconds per wall second.
type PaceParams struct {
	Pace float64 `json:"pace"`
}

// NewRequest marshals params into a Request. Nil params are omitted.
func NewRequest(id uint64, method string, params any) (Request, error) {
	req := Request{ID: id, Method: method}
	if params == nil {
		return req, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return Request{}, fmt.Errorf("marshal %s params: %w", method, err)
	}
	req.Params = raw
	return req, nil
}

// NewResult builds a successful Response.
func NewResult(id uint64, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("marshal result: %w", err)
	}
	return Response{ID: id, Result: raw}, nil
}

// NewError builds a failed Response.
func NewError(id uint64, code int, format string, args ...any) Response {
	return Response{ID: id, Error: &Error{Code: code, Message: fmt.Sprintf(format, args...)}}
}
