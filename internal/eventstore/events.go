package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
)

// BuildStartedMeta describes the inputs of a run.
type BuildStartedMeta struct {
	Root      string `json:"root"`
	Output    string `json:"output"`
	Mode      string `json:"mode"` // "oneshot" or "watch"
	CallToken string `json:"call_token"`
	Revision  string `json:"revision,omitempty"`
}

// BuildStarted is emitted when a pipeline run begins.
type BuildStarted struct {
	BaseEvent
	Meta BuildStartedMeta
}

// NewBuildStarted creates a BuildStarted event.
func NewBuildStarted(buildID string, meta BuildStartedMeta) (*BuildStarted, error) {
	payload, err := marshalPayload(buildID, TypeBuildStarted, meta)
	if err != nil {
		return nil, err
	}
	return &BuildStarted{
		BaseEvent: newBase(buildID, TypeBuildStarted, payload),
		Meta:      meta,
	}, nil
}

// BuildCompletedMeta describes a committed bundle.
type BuildCompletedMeta struct {
	Modules    int    `json:"modules"`
	Emitted    int    `json:"emitted"`
	Dangling   int    `json:"dangling"`
	DurationMS int64  `json:"duration_ms"`
	Output     string `json:"output"`
}

// BuildCompleted is emitted after the bundle has been committed.
type BuildCompleted struct {
	BaseEvent
	Meta BuildCompletedMeta
}

// NewBuildCompleted creates a BuildCompleted event.
func NewBuildCompleted(buildID string, meta BuildCompletedMeta) (*BuildCompleted, error) {
	payload, err := marshalPayload(buildID, TypeBuildCompleted, meta)
	if err != nil {
		return nil, err
	}
	return &BuildCompleted{
		BaseEvent: newBase(buildID, TypeBuildCompleted, payload),
		Meta:      meta,
	}, nil
}

// BuildFailedMeta describes why a run stopped.
type BuildFailedMeta struct {
	Stage      string `json:"stage"`
	Category   string `json:"category"`
	Error      string `json:"error"`
	DurationMS int64  `json:"duration_ms"`
}

// BuildFailed is emitted when a run is aborted.
type BuildFailed struct {
	BaseEvent
	Meta BuildFailedMeta
}

// NewBuildFailed creates a BuildFailed event.
func NewBuildFailed(buildID string, meta BuildFailedMeta) (*BuildFailed, error) {
	payload, err := marshalPayload(buildID, TypeBuildFailed, meta)
	if err != nil {
		return nil, err
	}
	return &BuildFailed{
		BaseEvent: newBase(buildID, TypeBuildFailed, payload),
		Meta:      meta,
	}, nil
}

func newBase(buildID, eventType string, payload []byte) BaseEvent {
	return BaseEvent{
		EventBuildID:   buildID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}
}

func marshalPayload(buildID, eventType string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapError(err, ErrMarshalPayloadFailed.Category(), ErrMarshalPayloadFailed.Message()).
			WithSeverity(ErrMarshalPayloadFailed.Severity()).
			WithContext("build_id", buildID).
			WithContext("event_type", eventType).
			Build()
	}
	return payload, nil
}
