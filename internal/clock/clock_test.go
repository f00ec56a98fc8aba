package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSimulatedClock_AfterFiresOnceTargetTimeReached(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sc := NewSimulatedClock(start)

	ch := sc.After(10 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its target time")
	default:
	}

	sc.AdvanceTime(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its target time")
	default:
	}

	sc.AdvanceTime(5 * time.Second)
	select {
	case fired := <-ch:
		require.Equal(t, start.Add(10*time.Second), fired)
	default:
		t.Fatal("After did not fire once its target time was reached")
	}
}

func TestSimulatedClock_AfterWithNonPositiveDurationFiresImmediately(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sc := NewSimulatedClock(start)

	ch := sc.After(0)
	select {
	case fired := <-ch:
		require.Equal(t, start, fired)
	default:
		t.Fatal("After with a zero duration should fire immediately")
	}
}

func TestSimulatedClock_SetTimePastTargetFiresPendingAfter(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sc := NewSimulatedClock(start)

	ch := sc.After(time.Minute)
	sc.SetTime(start.Add(time.Hour))

	select {
	case fired := <-ch:
		require.Equal(t, start.Add(time.Minute), fired)
	default:
		t.Fatal("After did not fire after SetTime moved past its target")
	}
}
