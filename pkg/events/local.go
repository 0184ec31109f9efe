package events

import (
	"context"

	"github.com/mpapenbr/trackline/pkg/utils/broadcast"
)

// Local distributes events to subscribers within the process.
type Local struct {
	source chan *LapEvent
	bcst   broadcast.Server[*LapEvent]
}

var _ Publisher = (*Local)(nil)

func NewLocal(opts ...broadcast.Option[*LapEvent]) *Local {
	source := make(chan *LapEvent, 16)
	return &Local{
		source: source,
		bcst:   broadcast.New("laps", source, opts...),
	}
}

// PublishLap blocks until the event is queued or ctx is done.
func (l *Local) PublishLap(ctx context.Context, e *LapEvent) error {
	select {
	case l.source <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel receiving events of all tracks.
func (l *Local) Subscribe() <-chan *LapEvent {
	return l.bcst.Subscribe()
}

func (l *Local) Unsubscribe(ch <-chan *LapEvent) {
	l.bcst.CancelSubscription(ch)
}

func (l *Local) Close() {
	l.bcst.Close()
}
