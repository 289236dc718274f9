package book

import (
	"errors"
	"math"
	"slices"
	"testing"
)

// =============================================================================
// 账本测试
// =============================================================================

func collect(l *Ledger) []Level {
	return slices.Collect(l.BestToWorst())
}

func TestLedger_SortOrder(t *testing.T) {
	bids := NewLedger(SideBuy, false)
	asks := NewLedger(SideSell, false)

	for _, p := range []Price{1000, 900, 1100, 950} {
		if err := bids.Upsert(p, 10); err != nil {
			t.Fatalf("bids upsert %d: %v", p, err)
		}
		if err := asks.Upsert(p, 10); err != nil {
			t.Fatalf("asks upsert %d: %v", p, err)
		}
	}

	wantBids := []Price{1100, 1000, 950, 900}
	for i, lv := range collect(bids) {
		if lv.Price != wantBids[i] {
			t.Errorf("bids[%d]: expected %d, got %d", i, wantBids[i], lv.Price)
		}
	}

	wantAsks := []Price{900, 950, 1000, 1100}
	for i, lv := range collect(asks) {
		if lv.Price != wantAsks[i] {
			t.Errorf("asks[%d]: expected %d, got %d", i, wantAsks[i], lv.Price)
		}
	}
}

func TestLedger_UpsertExistingLevel(t *testing.T) {
	l := NewLedger(SideSell, false)
	_ = l.Upsert(1000, 10)
	_ = l.Upsert(1000, 15)

	if l.Len() != 1 {
		t.Fatalf("expected 1 level, got %d", l.Len())
	}
	if d := l.Depth(1000); d != 25 {
		t.Errorf("expected depth 25, got %d", d)
	}
}

func TestLedger_NegativeDepth(t *testing.T) {
	l := NewLedger(SideBuy, false)
	_ = l.Upsert(1000, 10)

	err := l.Upsert(1000, -11)
	if !errors.Is(err, ErrNegativeDepth) {
		t.Fatalf("expected ErrNegativeDepth, got %v", err)
	}
	if d := l.Depth(1000); d != 10 {
		t.Errorf("failed upsert must not mutate, depth %d", d)
	}

	if err := l.Upsert(999, -1); !errors.Is(err, ErrNegativeDepth) {
		t.Errorf("reducing a missing level: expected ErrNegativeDepth, got %v", err)
	}
	if err := l.Upsert(999, 0); err != nil || l.Len() != 1 {
		t.Errorf("zero delta on missing level should be a no-op")
	}
}

func TestLedger_UpsertOverflow(t *testing.T) {
	l := NewLedger(SideSell, false)
	_ = l.Upsert(1000, math.MaxInt64-5)

	err := l.Upsert(1000, 6)
	if !errors.Is(err, ErrMalformedCommand) {
		t.Fatalf("expected ErrMalformedCommand, got %v", err)
	}
	if d := l.Depth(1000); d != math.MaxInt64-5 {
		t.Errorf("failed upsert must not mutate, depth %d", d)
	}
	if err := l.Upsert(1000, 5); err != nil {
		t.Errorf("filling up to MaxInt64 should succeed: %v", err)
	}
}

func TestLedger_ZeroDepthRetention(t *testing.T) {
	retained := NewLedger(SideSell, false)
	pruned := NewLedger(SideSell, true)

	for _, l := range []*Ledger{retained, pruned} {
		_ = l.Upsert(1000, 10)
		_ = l.Upsert(1010, 10)
		_ = l.Upsert(1000, -10)
	}

	if retained.Len() != 2 {
		t.Errorf("retained: expected 2 levels, got %d", retained.Len())
	}
	if pruned.Len() != 1 {
		t.Errorf("pruned: expected 1 level, got %d", pruned.Len())
	}

	for _, l := range []*Ledger{retained, pruned} {
		best, ok := l.Best()
		if !ok || best.Price != 1010 {
			t.Errorf("expected best 1010, got %v (ok=%v)", best, ok)
		}
	}
}

func TestLedger_BestToWorstIsRestartable(t *testing.T) {
	l := NewLedger(SideBuy, false)
	_ = l.Upsert(1000, 1)
	_ = l.Upsert(1001, 2)

	first := collect(l)
	second := collect(l)
	if !slices.Equal(first, second) {
		t.Errorf("traversals differ: %v vs %v", first, second)
	}

	// 提前终止
	n := 0
	for range l.BestToWorst() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("expected early break after 1, got %d", n)
	}
}

func TestLedger_TopN(t *testing.T) {
	l := NewLedger(SideSell, false)
	for p := Price(1000); p < 1010; p++ {
		_ = l.Upsert(p, 1)
	}
	_ = l.Upsert(1000, -1)

	top := l.TopN(3)
	want := []Level{{1001, 1}, {1002, 1}, {1003, 1}}
	if !slices.Equal(top, want) {
		t.Errorf("expected %v, got %v", want, top)
	}
}

// =============================================================================
// 扫单测试
// =============================================================================

func TestSweep(t *testing.T) {
	l := NewLedger(SideSell, false)
	_ = l.Upsert(4426, 100)
	_ = l.Upsert(4427, 100)
	_ = l.Upsert(4438, 100)
	_ = l.Upsert(4426, -100) // 保留的零档位

	tests := []struct {
		target  Qty
		want    uint64
		wantErr bool
	}{
		{target: 1, want: 4427},
		{target: 100, want: 442700},
		{target: 150, want: 442700 + 50*4438},
		{target: 200, want: 886500}, // 8865.00
		{target: 201, wantErr: true},
	}

	for _, tt := range tests {
		got, err := Sweep(l.BestToWorst(), tt.target)
		if tt.wantErr {
			if !errors.Is(err, ErrInsufficientLiquidity) {
				t.Errorf("target %d: expected ErrInsufficientLiquidity, got %v", tt.target, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("target %d: unexpected error %v", tt.target, err)
			continue
		}
		if got.Cmp(AmountFromUint64(tt.want)) != 0 {
			t.Errorf("target %d: expected %d, got %s", tt.target, tt.want, got)
		}
	}
}

func TestSweep_DoesNotMutateLedger(t *testing.T) {
	l := NewLedger(SideBuy, false)
	_ = l.Upsert(1000, 50)
	_ = l.Upsert(900, 60)

	before := collect(l)
	if _, err := Sweep(l.BestToWorst(), 100); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(before, collect(l)) {
		t.Error("sweep mutated the ledger")
	}
}

func TestSweep_MonotonicInTarget(t *testing.T) {
	cmds := randomStream(99, 500)
	engine := mustNewEngine(t, DefaultEngineConfig(1))
	for _, cmd := range cmds {
		if _, err := engine.Apply(cmd); err != nil {
			t.Fatal(err)
		}
	}

	for _, side := range []Side{SideBuy, SideSell} {
		var prev Amount
		total := engine.TotalDepth(side)
		for target := Qty(1); target <= total; target++ {
			got, err := Sweep(engine.Levels(side), target)
			if err != nil {
				t.Fatalf("%s target %d: %v", side, target, err)
			}
			if got.Cmp(prev) < 0 {
				t.Fatalf("%s target %d: %s < previous %s", side, target, got, prev)
			}
			prev = got
		}
	}
}

// =============================================================================
// 金额测试
// =============================================================================

func TestAmount_WideAccumulation(t *testing.T) {
	var a Amount
	a = a.MulAdd(Price(math.MaxInt64), math.MaxInt64)
	if _, ok := a.Uint64(); ok {
		t.Fatal("expected overflow past 64 bits")
	}

	want := "85070591730234615847396907784232501249" // (2^63-1)^2
	if a.String() != want {
		t.Errorf("expected %s, got %s", want, a.String())
	}

	b := a.Add(AmountFromUint64(1))
	if b.Cmp(a) != 1 || a.Cmp(b) != -1 || a.Cmp(a) != 0 {
		t.Error("compare broken")
	}
}
