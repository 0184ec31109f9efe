// Package nats publishes lap events on NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/trackline/log"
	"github.com/mpapenbr/trackline/pkg/events"
)

type (
	Publisher struct {
		conn *nats.Conn
		l    *log.Logger
	}
	Option func(*Publisher)
)

var _ events.Publisher = (*Publisher)(nil)

func WithLogger(l *log.Logger) Option {
	return func(p *Publisher) {
		p.l = l
	}
}

func NewPublisher(conn *nats.Conn, opts ...Option) *Publisher {
	ret := &Publisher{
		conn: conn,
		l:    log.Default().Named("nats.events"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (p *Publisher) PublishLap(ctx context.Context, e *events.LapEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	subject := events.Subject(e.TrackID)
	p.l.Debug("publish lap", log.String("subject", subject), log.Int64("lapMs", e.LapMs))
	return p.conn.Publish(subject, data)
}

// Subscribe delivers lap events of a track. Use "*" for all tracks.
// The returned func ends the subscription and closes the channel.
//
//nolint:whitespace // false positive
func (p *Publisher) Subscribe(trackID string) (
	<-chan *events.LapEvent, func(), error,
) {
	subject := events.SubjectPrefix + ".*"
	if trackID != "*" {
		subject = events.Subject(trackID)
	}
	ch := make(chan *events.LapEvent, 16)
	sub, err := p.conn.Subscribe(subject, func(msg *nats.Msg) {
		var e events.LapEvent
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			p.l.Warn("invalid lap event", log.String("subject", msg.Subject),
				log.ErrorField(err))
			return
		}
		select {
		case ch <- &e:
		default:
			p.l.Warn("dropping lap event, consumer too slow")
		}
	})
	if err != nil {
		return nil, nil, err
	}
	unsubscribe := func() {
		if err := sub.Drain(); err != nil {
			p.l.Warn("drain subscription", log.ErrorField(err))
		}
		// Drain returns before pending callbacks are done
		for sub.IsValid() {
			time.Sleep(10 * time.Millisecond)
		}
		close(ch)
	}
	return ch, unsubscribe, nil
}
