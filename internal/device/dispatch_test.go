package device

import (
	"strings"
	"sync/atomic"
	"testing"
)

func TestDispatch_CoversEveryUnit(t *testing.T) {
	ctx := NewContext()
	grids := []Grid{
		{X: 1, Y: 1},
		{X: 32, Y: 1},
		{X: 1, Y: 17},
		{X: 13, Y: 7},
		{X: 256, Y: 64},
	}
	for _, g := range grids {
		hits := make([]int32, g.Size())
		err := ctx.Dispatch("test_cover", g, func(x, y int) {
			atomic.AddInt32(&hits[y*g.X+x], 1)
		})
		if err != nil {
			t.Fatalf("Dispatch(%dx%d): %v", g.X, g.Y, err)
		}
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("grid %dx%d: unit %d executed %d times", g.X, g.Y, i, h)
			}
		}
	}
}

func TestDispatch_InvalidGrid(t *testing.T) {
	ctx := NewContext()
	for _, g := range []Grid{{X: 0, Y: 1}, {X: 1, Y: 0}, {X: -3, Y: 2}} {
		err := ctx.Dispatch("test_invalid", g, func(x, y int) {
			t.Fatal("kernel ran on invalid grid")
		})
		if err == nil {
			t.Fatalf("grid %dx%d: expected error", g.X, g.Y)
		}
		if !strings.Contains(err.Error(), "test_invalid") {
			t.Errorf("error %q does not name the operation", err)
		}
	}
}

func TestDispatch_SingleWorkerDeterministic(t *testing.T) {
	ctx := NewContext()
	ctx.SetWorkers(1)
	g := Grid{X: 5, Y: 3}
	var order []int
	err := ctx.Dispatch("test_order", g, func(x, y int) {
		order = append(order, y*g.X+x)
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, u := range order {
		if u != i {
			t.Fatalf("single worker visited unit %d at step %d", u, i)
		}
	}
}

func TestDispatch_MoreWorkersThanUnits(t *testing.T) {
	ctx := NewContext()
	ctx.SetWorkers(64)
	var count int32
	err := ctx.Dispatch("test_small", Grid{X: 3, Y: 1}, func(x, y int) {
		atomic.AddInt32(&count, 1)
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("executed %d units, want 3", count)
	}
}

func TestControl_AbortAndReset(t *testing.T) {
	var nilCtrl *Control
	if nilCtrl.Aborted() {
		t.Fatal("nil control reports aborted")
	}
	ctrl := NewControl()
	if ctrl.Aborted() {
		t.Fatal("fresh control reports aborted")
	}
	ctrl.RequestAbort()
	if !ctrl.Aborted() {
		t.Fatal("abort request not observed")
	}
	ctrl.Reset()
	if ctrl.Aborted() {
		t.Fatal("reset did not clear abort")
	}
}
