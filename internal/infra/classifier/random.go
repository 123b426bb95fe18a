package classifier

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
)

// Random is a stand-in content classifier: after a fixed analysis delay it
// returns Safe with probability safeRatio and Flagged otherwise.
type Random struct {
	safeRatio float64
	delay     time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(safeRatio float64, delay time.Duration) *Random {
	return NewRandomWithSource(safeRatio, delay, rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
}

func NewRandomWithSource(safeRatio float64, delay time.Duration, src rand.Source) *Random {
	return &Random{safeRatio: safeRatio, delay: delay, rng: rand.New(src)}
}

func (c *Random) Classify(ctx context.Context, _ *entity.Video, _ string) (entity.Verdict, error) {
	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	c.mu.Lock()
	draw := c.rng.Float64()
	c.mu.Unlock()

	if draw < c.safeRatio {
		return entity.VerdictSafe, nil
	}
	return entity.VerdictFlagged, nil
}
