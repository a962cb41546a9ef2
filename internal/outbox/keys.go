package outbox

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/observ"
	"github.com/Rajchodisetti/heat-engine/internal/paper"
)

// GenerateIdempotencyKey hashes the identity of an alert. Alerts for the
// same position and kind within one bucket collapse to one key.
func GenerateIdempotencyKey(positionID, kind string, at time.Time, bucket time.Duration) string {
	ts := at.Unix()
	if bucket > 0 {
		ts = at.Truncate(bucket).Unix()
	}
	data := fmt.Sprintf("%s-%s-%d", positionID, kind, ts)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:8])
}

func logWriteError(ev paper.Event, err error) {
	observ.Warn("outbox_write_failed", map[string]any{
		"type":  string(ev.Type),
		"id":    ev.Position.ID,
		"error": err.Error(),
	})
	observ.IncCounter("outbox_errors_total", nil)
}
