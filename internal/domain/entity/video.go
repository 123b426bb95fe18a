package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type VideoStatus string

const (
	VideoStatusUploading  VideoStatus = "Uploading"
	VideoStatusProcessing VideoStatus = "Processing"
	VideoStatusCompleted  VideoStatus = "Completed"
	VideoStatusFlagged    VideoStatus = "Flagged"
	VideoStatusError      VideoStatus = "Error"
)

// IsTerminal reports whether the pipeline may no longer mutate a video in this status.
func (s VideoStatus) IsTerminal() bool {
	return s == VideoStatusCompleted || s == VideoStatusFlagged || s == VideoStatusError
}

type Sensitivity string

const (
	SensitivityPending Sensitivity = "Pending"
	SensitivitySafe    Sensitivity = "Safe"
	SensitivityFlagged Sensitivity = "Flagged"
)

// Verdict is the outcome of content classification.
type Verdict string

const (
	VerdictSafe    Verdict = "Safe"
	VerdictFlagged Verdict = "Flagged"
)

func (v Verdict) Valid() bool {
	return v == VerdictSafe || v == VerdictFlagged
}

var ErrInvalidTransition = errors.New("invalid video state transition")

type Video struct {
	ID               uuid.UUID
	TenantID         string
	OwnerID          string
	Title            string
	OriginalFilename string
	Filename         string
	SourcePath       string
	OutputPath       string
	MimeType         string
	Size             int64
	Status           VideoStatus
	Sensitivity      Sensitivity
	Duration         *float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewVideo builds a freshly uploaded video that is ready to be handed to the pipeline.
func NewVideo(tenantID, ownerID, title, originalFilename, filename, sourcePath, mimeType string, size int64) *Video {
	now := time.Now().UTC()
	if title == "" {
		title = originalFilename
	}
	return &Video{
		ID:               uuid.New(),
		TenantID:         tenantID,
		OwnerID:          ownerID,
		Title:            title,
		OriginalFilename: originalFilename,
		Filename:         filename,
		SourcePath:       sourcePath,
		MimeType:         mimeType,
		Size:             size,
		Status:           VideoStatusProcessing,
		Sensitivity:      SensitivityPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// MarkProcessing confirms the video is being processed. It is idempotent while processing.
func (v *Video) MarkProcessing() error {
	switch v.Status {
	case VideoStatusUploading, VideoStatusProcessing:
		v.Status = VideoStatusProcessing
		v.UpdatedAt = time.Now().UTC()
		return nil
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, v.Status, VideoStatusProcessing)
	}
}

// RecordVerdict sets the sensitivity exactly once, while the video is processing.
func (v *Video) RecordVerdict(verdict Verdict) error {
	if v.Status != VideoStatusProcessing {
		return fmt.Errorf("%w: verdict recorded in status %s", ErrInvalidTransition, v.Status)
	}
	if v.Sensitivity != SensitivityPending {
		return fmt.Errorf("%w: sensitivity already %s", ErrInvalidTransition, v.Sensitivity)
	}
	switch verdict {
	case VerdictSafe:
		v.Sensitivity = SensitivitySafe
	case VerdictFlagged:
		v.Sensitivity = SensitivityFlagged
	default:
		return fmt.Errorf("unknown verdict %q", verdict)
	}
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (v *Video) SetDuration(seconds float64) {
	v.Duration = &seconds
	v.UpdatedAt = time.Now().UTC()
}

// AttachOptimized points the video at its optimized artifact. Path and name move together.
func (v *Video) AttachOptimized(outputPath, filename string) {
	v.OutputPath = outputPath
	v.Filename = filename
	v.UpdatedAt = time.Now().UTC()
}

// Finish moves a classified video to Completed (safe) or Flagged.
func (v *Video) Finish() error {
	if v.Status != VideoStatusProcessing {
		return fmt.Errorf("%w: %s -> terminal", ErrInvalidTransition, v.Status)
	}
	switch v.Sensitivity {
	case SensitivitySafe:
		v.Status = VideoStatusCompleted
	case SensitivityFlagged:
		v.Status = VideoStatusFlagged
	default:
		return fmt.Errorf("%w: cannot finish with sensitivity %s", ErrInvalidTransition, v.Sensitivity)
	}
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (v *Video) MarkError() error {
	if v.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, v.Status, VideoStatusError)
	}
	v.Status = VideoStatusError
	v.UpdatedAt = time.Now().UTC()
	return nil
}

// PlaybackPath is the optimized artifact when one exists, the original upload otherwise.
func (v *Video) PlaybackPath() string {
	if v.OutputPath != "" {
		return v.OutputPath
	}
	return v.SourcePath
}

func (v *Video) Clone() *Video {
	c := *v
	if v.Duration != nil {
		d := *v.Duration
		c.Duration = &d
	}
	return &c
}
