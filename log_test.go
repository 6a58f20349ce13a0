package quic

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"

	"github.com/ai-codepen/quix/transport"
)

func TestLoggerAttachForwardsLogEvents(t *testing.T) {
	base, hook := logrustest.NewNullLogger()
	l := NewLogger(LevelDebug, base)

	sp := transport.NewPacketNumberSpace(transport.SpaceOneRTT, nil, transport.NewStreamMuxer(true))
	l.Attach(sp, logrus.Fields{"conn_id": "test"})

	sp.QueueFrame(transport.NewPingFrame())
	buf := make([]byte, 64)
	if _, _, ok := sp.TrySend(time.Now(), buf); !ok {
		t.Fatal("expected a packet to send")
	}

	entries := hook.AllEntries()
	if len(entries) == 0 {
		t.Fatal("expected at least one forwarded log event")
	}
	if entries[0].Data["conn_id"] != "test" {
		t.Fatalf("entry fields = %+v, want conn_id=test", entries[0].Data)
	}
}

func TestLoggerAttachHooksRunBelowDebugLevel(t *testing.T) {
	base, hook := logrustest.NewNullLogger()
	l := NewLogger(LevelInfo, base)

	sp := transport.NewPacketNumberSpace(transport.SpaceOneRTT, nil, transport.NewStreamMuxer(true))
	var seen []string
	l.Attach(sp, logrus.Fields{"conn_id": "test"}, func(e transport.LogEvent) {
		seen = append(seen, e.Type)
	})

	sp.QueueFrame(transport.NewPingFrame())
	buf := make([]byte, 64)
	sp.TrySend(time.Now(), buf)

	if len(seen) == 0 {
		t.Fatal("expected the hook to observe at least one event")
	}
	if len(hook.AllEntries()) != 0 {
		t.Fatalf("expected no logrus entries below LevelDebug, got %d", len(hook.AllEntries()))
	}
}

func TestLoggerBelowDebugLevelDoesNotAttach(t *testing.T) {
	base, hook := logrustest.NewNullLogger()
	l := NewLogger(LevelInfo, base)

	sp := transport.NewPacketNumberSpace(transport.SpaceOneRTT, nil, transport.NewStreamMuxer(true))
	l.Attach(sp, logrus.Fields{"conn_id": "test"})

	sp.QueueFrame(transport.NewPingFrame())
	buf := make([]byte, 64)
	sp.TrySend(time.Now(), buf)

	if len(hook.AllEntries()) != 0 {
		t.Fatalf("expected no log events below LevelDebug, got %d", len(hook.AllEntries()))
	}
}
