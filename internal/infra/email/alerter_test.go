package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAlertComposesMessage(t *testing.T) {
	a := NewSMTPAlerter("mailhog", 1025, "worker@vidstream.local", "ops@vidstream.local", zap.NewNop())

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	a.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotTo = to
		gotMsg = string(msg)
		assert.Equal(t, "worker@vidstream.local", from)
		return nil
	}

	require.NoError(t, a.Alert(context.Background(), "v1", "video stuck in processing", "reload failed: timeout"))

	assert.Equal(t, "mailhog:1025", gotAddr)
	assert.Equal(t, []string{"ops@vidstream.local"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: [vidstream] video stuck in processing [video v1]")
	assert.Contains(t, gotMsg, "reload failed: timeout")
}

func TestAlertReturnsSendError(t *testing.T) {
	a := NewSMTPAlerter("mailhog", 1025, "from", "to", zap.NewNop())
	a.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }

	err := a.Alert(context.Background(), "v1", "s", "d")
	assert.ErrorContains(t, err, "connection refused")
}
