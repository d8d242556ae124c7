package mailbox_test

import (
	"testing"
	"time"

	"github.com/cxlab/cxdriver/device"
	"github.com/cxlab/cxdriver/mailbox"
)

func TestSendPollReplyRoundTrip(t *testing.T) {
	m := mailbox.NewMailbox(4)

	done := make(chan mailbox.Response)
	go func() {
		done <- m.Send(mailbox.Request{Cmd: mailbox.CmdTrStart})
	}()

	req, ok := pollUntil(t, m)
	if !ok || req.Cmd != mailbox.CmdTrStart {
		t.Fatalf("got %+v ok=%v", req, ok)
	}
	m.Reply(mailbox.Response{Status: mailbox.StatusOK})

	resp := <-done
	if resp.Status != mailbox.StatusOK {
		t.Fatalf("got %v", resp.Status)
	}
}

func pollUntil(t *testing.T, m *mailbox.Mailbox) (mailbox.Request, bool) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		if req, ok := m.Poll(); ok {
			return req, ok
		}
		time.Sleep(time.Millisecond)
	}
	return mailbox.Request{}, false
}

func TestPollIsNonBlockingWhenEmpty(t *testing.T) {
	m := mailbox.NewMailbox(1)
	if _, ok := m.Poll(); ok {
		t.Fatalf("expected no pending command")
	}
}

func TestHoldAliveTracksLiveness(t *testing.T) {
	m := mailbox.NewMailbox(1)
	if m.IsAlive() {
		t.Fatalf("expected not alive before HoldAlive")
	}

	release := m.HoldAlive()
	if !m.IsAlive() {
		t.Fatalf("expected alive after HoldAlive")
	}

	release()
	if m.IsAlive() {
		t.Fatalf("expected not alive after release")
	}
}

func TestEyeSampleFlushKeepsOnlyLatest(t *testing.T) {
	m := mailbox.NewMailbox(4)
	m.DeliverEyeSample(device.EyeSample{TimestampMs: 1})
	m.DeliverEyeSample(device.EyeSample{TimestampMs: 2})
	m.DeliverEyeSample(device.EyeSample{TimestampMs: 3})

	s, _, ok := m.NextEyeSample(true)
	if !ok || s.TimestampMs != 3 {
		t.Fatalf("got %+v ok=%v", s, ok)
	}

	if _, _, ok := m.NextEyeSample(false); ok {
		t.Fatalf("expected buffer drained after flush")
	}
}

func TestEyeSampleDeliveryDropsOldestWhenFull(t *testing.T) {
	m := mailbox.NewMailbox(2)
	m.DeliverEyeSample(device.EyeSample{TimestampMs: 1})
	m.DeliverEyeSample(device.EyeSample{TimestampMs: 2})
	m.DeliverEyeSample(device.EyeSample{TimestampMs: 3})

	first, _, ok := m.NextEyeSample(false)
	if !ok || first.TimestampMs != 2 {
		t.Fatalf("got %+v ok=%v", first, ok)
	}
}
