package device_test

import (
	"context"
	"testing"

	"github.com/cxlab/cxdriver/device"
	"github.com/cxlab/cxdriver/device/simai"
	"github.com/cxlab/cxdriver/device/simdio"
	"github.com/cxlab/cxdriver/device/simeye"
)

func TestSimAISatisfiesAI(t *testing.T) {
	var _ device.AI = simai.New(func(ch, scan int) int16 { return int16(ch + scan) })

	s := simai.New(func(ch, scan int) int16 { return int16(ch*100 + scan) })
	if err := s.Configure(2, 1000, -1, true); err != nil {
		t.Fatalf("%v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("%v", err)
	}
	s.Tick()

	buf := make([]int16, 2)
	n, _, ok := s.Unload(context.Background(), buf, nil, true)
	if !ok || n != 2 {
		t.Fatalf("got n=%d ok=%v", n, ok)
	}
	if buf[0] != 1 || buf[1] != 101 {
		t.Fatalf("got %v", buf)
	}
}

func TestSimDIOSatisfiesDIO(t *testing.T) {
	var _ device.DIO = simdio.New()

	d := simdio.New()
	d.WriteChar('S')
	d.WriteString([]byte("TOP"))
	if got := string(d.SyncStream()); got != "STOP" {
		t.Fatalf("got %q", got)
	}

	d.TriggerMarkers(1 << 6)
	if pulses := d.MarkerPulses(); len(pulses) != 1 || pulses[0] != 1<<6 {
		t.Fatalf("got %v", pulses)
	}

	if delivered := d.DeliverReward(0, 50, 50); !delivered {
		t.Fatalf("expected reward delivered with whvr disabled")
	}
	if delivered := d.DeliverReward(0, 0, 0); delivered {
		t.Fatalf("expected zero-length pulse to be a no-op withhold")
	}
}

func TestSimEyeSatisfiesEyeTracker(t *testing.T) {
	var _ device.EyeTracker = simeye.New(device.MonoLeft, nil)

	e := simeye.New(device.Binocular, []device.EyeSample{
		{TimestampMs: 1, LeftPos: [2]float64{1, 2}},
		{TimestampMs: 2, LeftPos: [2]float64{3, 4}},
	})

	first, repeat, ok := e.GetNextSample(false)
	if !ok || repeat || first.TimestampMs != 1 {
		t.Fatalf("got %+v repeat=%v ok=%v", first, repeat, ok)
	}

	_, _, _ = e.GetNextSample(false)
	third, repeat, ok := e.GetNextSample(false)
	if !ok || !repeat || third.TimestampMs != 2 {
		t.Fatalf("expected exhausted feed to repeat last sample, got %+v repeat=%v ok=%v", third, repeat, ok)
	}
}
