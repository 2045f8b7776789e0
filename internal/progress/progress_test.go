package progress

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestNilTracker(t *testing.T) {
	var tr *Tracker
	tr.Tick()
	tr.FinishSuccess()
	tr.FinishError(errors.New("boom"))
	if tr.Func() != nil {
		t.Error("nil tracker should yield a nil progress func")
	}
}

func TestTrackerConcurrentTicks(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(&buf, "Indexing", 100)

	tick := tr.Func()
	if tick == nil {
		t.Fatal("Func() returned nil")
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tick()
		}()
	}
	wg.Wait()
	tr.FinishSuccess()

	if got := tr.bar.State().CurrentNum; got != 100 {
		t.Errorf("CurrentNum = %d, want 100", got)
	}
}

func TestTrackerFinishError(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(&buf, "Merging", 3)
	tr.Tick()
	tr.FinishError(errors.New("disk on fire"))

	if !strings.Contains(buf.String(), "Merging failed: disk on fire") {
		t.Errorf("output %q missing error line", buf.String())
	}
}

func TestSpinner(t *testing.T) {
	var buf bytes.Buffer
	sp := NewSpinner(&buf, "Enumerating")
	sp.Tick()
	sp.FinishSuccess()
}
