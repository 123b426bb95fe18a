package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
)

// Bus keeps a bounded, sequenced log of recent events per recipient. Clients
// poll with the last sequence they saw. It serves single-process setups.
type Bus struct {
	mu        sync.RWMutex
	nextSeq   uint64
	maxEvents int
	logs      map[string][]entity.Envelope
}

func New(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &Bus{maxEvents: maxEvents, logs: make(map[string][]entity.Envelope)}
}

// Emit never fails.
func (b *Bus) Emit(_ context.Context, recipientID, event string, payload any) error {
	b.Publish(entity.NewEnvelope(recipientID, event, payload))
	return nil
}

// Publish appends one event and assigns its sequence.
func (b *Bus) Publish(env entity.Envelope) entity.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	env.Sequence = b.nextSeq
	if env.EmittedAt.IsZero() {
		env.EmittedAt = time.Now().UTC()
	}

	log := append(b.logs[env.Recipient], env)
	if len(log) > b.maxEvents {
		log = append([]entity.Envelope(nil), log[len(log)-b.maxEvents:]...)
	}
	b.logs[env.Recipient] = log
	return env
}

// Since returns the recipient's events with a sequence greater than seq.
func (b *Bus) Since(recipientID string, seq uint64) []entity.Envelope {
	b.mu.RLock()
	defer b.mu.RUnlock()

	log := b.logs[recipientID]
	out := make([]entity.Envelope, 0, len(log))
	for _, env := range log {
		if env.Sequence > seq {
			out = append(out, env)
		}
	}
	return out
}
