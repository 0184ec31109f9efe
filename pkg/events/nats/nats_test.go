package nats

import (
	"context"
	"testing"
	"time"

	"github.com/aarondl/opt/null"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/trackline/pkg/events"
	"github.com/mpapenbr/trackline/testsupport/tcnats"
)

func TestPublishSubscribe(t *testing.T) {
	if testing.Short() {
		t.Skip("needs a NATS server")
	}
	conn := tcnats.InitTestNats()
	defer conn.Close()

	p := NewPublisher(conn)
	ch, unsubscribe, err := p.Subscribe("oval")
	require.NoError(t, err)
	defer unsubscribe()
	require.NoError(t, conn.Flush())

	e := &events.LapEvent{
		SessionID: "s1",
		TrackID:   "oval",
		PlayerID:  "p1",
		Lap:       1,
		LapMs:     31234,
		BestLapMs: null.From[int64](31234),
		Improved:  true,
		Time:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishLap(context.Background(), e))
	// other tracks are not delivered
	require.NoError(t, p.PublishLap(context.Background(), &events.LapEvent{TrackID: "other"}))

	select {
	case got := <-ch:
		assert.Equal(t, e, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected event %v", got)
	case <-time.After(100 * time.Millisecond):
	}
}
