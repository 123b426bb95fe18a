package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
	"go.uber.org/zap"
)

var editor = entity.Actor{UserID: "alice", TenantID: "acme", Role: entity.RoleEditor}

func validUpload() UploadInput {
	return UploadInput{
		OriginalFilename: "clip.mov",
		Filename:         "1700000000-clip.mov",
		SourcePath:       "uploads/1700000000-clip.mov",
		MimeType:         "video/quicktime",
		Size:             10 << 20,
	}
}

func TestRegisterUploadQueuesVideo(t *testing.T) {
	repo := newFlakyRepo()
	queue := &recordingQueue{}
	notifier := &recordingNotifier{}
	uc := NewRegisterUploadUseCase(repo, queue, notifier, zap.NewNop())

	video, err := uc.Execute(context.Background(), editor, validUpload())
	require.NoError(t, err)

	assert.Equal(t, "acme", video.TenantID)
	assert.Equal(t, "alice", video.OwnerID)
	assert.Equal(t, "clip.mov", video.Title)
	assert.Equal(t, entity.VideoStatusProcessing, video.Status)
	assert.Equal(t, entity.SensitivityPending, video.Sensitivity)
	assert.Equal(t, []uuid.UUID{video.ID}, queue.enqueued)

	stored, err := repo.FindByID(context.Background(), video.ID)
	require.NoError(t, err)
	assert.Equal(t, video.SourcePath, stored.SourcePath)

	require.Len(t, notifier.events, 2)
	assert.Equal(t, entity.EventVideoNew, notifier.events[0].event)
	assert.Equal(t, "alice", notifier.events[0].recipient)
	progress := notifier.progress()
	require.Len(t, progress, 1)
	assert.Equal(t, 0, progress[0].Progress)
	assert.Equal(t, MessageUploaded, progress[0].Message)
}

func TestRegisterUploadValidation(t *testing.T) {
	cases := map[string]struct {
		actor  entity.Actor
		mutate func(*UploadInput)
		err    error
	}{
		"viewer cannot upload": {
			actor: entity.Actor{UserID: "v", TenantID: "acme", Role: entity.RoleViewer},
			err:   ErrForbidden,
		},
		"not a video": {
			actor:  editor,
			mutate: func(in *UploadInput) { in.MimeType = "image/png" },
			err:    ErrUnsupportedMedia,
		},
		"too large": {
			actor:  editor,
			mutate: func(in *UploadInput) { in.Size = MaxUploadBytes + 1 },
			err:    ErrFileTooLarge,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			queue := &recordingQueue{}
			notifier := &recordingNotifier{}
			uc := NewRegisterUploadUseCase(newFlakyRepo(), queue, notifier, zap.NewNop())

			in := validUpload()
			if tc.mutate != nil {
				tc.mutate(&in)
			}
			_, err := uc.Execute(context.Background(), tc.actor, in)

			assert.ErrorIs(t, err, tc.err)
			assert.Empty(t, queue.enqueued)
			assert.Empty(t, notifier.events)
		})
	}
}

func TestRegisterUploadAcceptsMaximumSize(t *testing.T) {
	uc := NewRegisterUploadUseCase(newFlakyRepo(), &recordingQueue{}, &recordingNotifier{}, zap.NewNop())
	in := validUpload()
	in.Size = MaxUploadBytes

	_, err := uc.Execute(context.Background(), editor, in)
	assert.NoError(t, err)
}

func TestRegisterUploadEnqueueFailureMarksError(t *testing.T) {
	repo := newFlakyRepo()
	uc := NewRegisterUploadUseCase(repo, &recordingQueue{err: errBoom}, &recordingNotifier{}, zap.NewNop())

	video, err := uc.Execute(context.Background(), editor, validUpload())
	require.ErrorIs(t, err, errBoom)

	stored, err := repo.FindByID(context.Background(), video.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.VideoStatusError, stored.Status)
}
