package sessionstore

import (
	"testing"

	"github.com/proisp/radiusd/internal/models"
)

func TestDelta(t *testing.T) {
	cases := map[string]struct {
		newValue, oldValue, want int64
	}{
		"normal increase":   {newValue: 150, oldValue: 100, want: 50},
		"no change":         {newValue: 100, oldValue: 100, want: 0},
		"counter reset":     {newValue: 40, oldValue: 100, want: 40},
		"growth from zero":  {newValue: 10, oldValue: 0, want: 10},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if got := Delta(c.newValue, c.oldValue); got != c.want {
				t.Errorf("Delta(%d, %d) = %d, want %d", c.newValue, c.oldValue, got, c.want)
			}
		})
	}
}

func TestApplyCounters(t *testing.T) {
	sess := &models.RadiusSession{
		SessionTime:   100,
		InputOctets:   1000,
		OutputOctets:  2000,
		InputPackets:  10,
		OutputPackets: 20,
	}

	deltaRx, deltaTx := ApplyCounters(sess, 200, 1500, 2500, 15, 25)

	if deltaRx != 500 {
		t.Errorf("deltaRx = %d, want 500", deltaRx)
	}
	if deltaTx != 500 {
		t.Errorf("deltaTx = %d, want 500", deltaTx)
	}
	if sess.SessionTime != 200 || sess.InputOctets != 1500 || sess.OutputOctets != 2500 ||
		sess.InputPackets != 15 || sess.OutputPackets != 25 {
		t.Errorf("session fields not overwritten correctly: %+v", sess)
	}
}

func TestApplyCountersCounterReset(t *testing.T) {
	sess := &models.RadiusSession{
		InputOctets:  5000,
		OutputOctets: 5000,
	}

	deltaRx, deltaTx := ApplyCounters(sess, 10, 100, 200, 1, 2)

	if deltaRx != 100 {
		t.Errorf("deltaRx on reset = %d, want 100", deltaRx)
	}
	if deltaTx != 200 {
		t.Errorf("deltaTx on reset = %d, want 200", deltaTx)
	}
}
