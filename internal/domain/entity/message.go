package entity

import (
	"time"

	"github.com/google/uuid"
)

// Event names delivered to a recipient's channel.
const (
	EventVideoProgress = "video:progress"
	EventVideoNew      = "video:new"
	EventVideoUpdated  = "video:updated"
	EventVideoDeleted  = "video:deleted"
)

// ProcessVideoMessage is the task payload handed to the job queue.
type ProcessVideoMessage struct {
	VideoID  uuid.UUID `json:"video_id"`
	TenantID string    `json:"tenant_id,omitempty"`
}

// ProgressEvent is the payload of EventVideoProgress.
type ProgressEvent struct {
	VideoID  uuid.UUID   `json:"videoId"`
	Status   VideoStatus `json:"status"`
	Progress int         `json:"progress"`
	Message  string      `json:"message"`
}

// DeletedEvent is the payload of EventVideoDeleted.
type DeletedEvent struct {
	VideoID uuid.UUID `json:"videoId"`
}

// VideoView is the client-facing shape of a video record, used by EventVideoNew and EventVideoUpdated.
type VideoView struct {
	ID               uuid.UUID   `json:"id"`
	TenantID         string      `json:"tenantId"`
	OwnerID          string      `json:"ownerId"`
	Title            string      `json:"title"`
	OriginalFilename string      `json:"originalFilename"`
	Filename         string      `json:"filename"`
	SourcePath       string      `json:"sourcePath"`
	OutputPath       string      `json:"outputPath,omitempty"`
	MimeType         string      `json:"mimeType"`
	Size             int64       `json:"size"`
	Status           VideoStatus `json:"status"`
	Sensitivity      Sensitivity `json:"sensitivity"`
	Duration         *float64    `json:"duration,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

func NewVideoView(v *Video) VideoView {
	return VideoView{
		ID:               v.ID,
		TenantID:         v.TenantID,
		OwnerID:          v.OwnerID,
		Title:            v.Title,
		OriginalFilename: v.OriginalFilename,
		Filename:         v.Filename,
		SourcePath:       v.SourcePath,
		OutputPath:       v.OutputPath,
		MimeType:         v.MimeType,
		Size:             v.Size,
		Status:           v.Status,
		Sensitivity:      v.Sensitivity,
		Duration:         v.Duration,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
}

// Envelope wraps an event for transports that carry many event kinds on one channel.
type Envelope struct {
	Sequence  uint64    `json:"seq,omitempty"`
	Recipient string    `json:"recipient"`
	Event     string    `json:"event"`
	Payload   any       `json:"payload"`
	EmittedAt time.Time `json:"emittedAt"`
}

func NewEnvelope(recipient, event string, payload any) Envelope {
	return Envelope{Recipient: recipient, Event: event, Payload: payload, EmittedAt: time.Now().UTC()}
}
