package lifecycle

import (
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/notify"
	"github.com/Rajchodisetti/heat-engine/internal/outbox"
	"github.com/Rajchodisetti/heat-engine/internal/paper"
	"github.com/Rajchodisetti/heat-engine/internal/store"
)

// Recorders builds the engine's event fan-out: persistence first, then the
// audit log, then notifications. Nil collaborators are skipped.
func Recorders(repo *store.PositionRepository, ob *outbox.Outbox, d *notify.Dispatcher) paper.Recorder {
	var m paper.MultiRecorder
	if repo != nil {
		m = append(m, store.NewRecorder(repo, 2*time.Second))
	}
	if ob != nil {
		m = append(m, ob)
	}
	if d != nil {
		m = append(m, d)
	}
	return m
}
