package coherence

import "testing"

func TestBusPriceTable(t *testing.T) {
	cases := []struct {
		name string
		a    BusAction
		want int
	}{
		{"RdMem", BusAction{Kind: BusRdMem, Bytes: 16}, 100},
		{"RdXMem", BusAction{Kind: BusRdXMem, Bytes: 16}, 100},
		{"UpdMem", BusAction{Kind: BusUpdMem, Bytes: 4}, 100},
		{"Flush", BusAction{Kind: Flush, Bytes: 16}, 100},
		{"RdShared 16B", BusAction{Kind: BusRdShared, Bytes: 16}, 8},
		{"UpdShared 4B", BusAction{Kind: BusUpdShared, Bytes: 4}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := price(tc.a); got != tc.want {
				t.Errorf("price(%+v) = %d, want %d", tc.a, got, tc.want)
			}
		})
	}
}

func TestBusPutOnPanicsWhenOccupied(t *testing.T) {
	b := NewBus()
	b.PutOn(0, BusAction{Kind: BusRdMem, Addr: 0x100, Bytes: 16})

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected PutOn on an occupied bus to panic")
		}
	}()
	b.PutOn(1, BusAction{Kind: BusRdMem, Addr: 0x200, Bytes: 16})
}

func TestBusLifecycle(t *testing.T) {
	b := NewBus()
	if b.Occupied() {
		t.Fatal("a fresh bus must not be occupied")
	}

	b.PutOn(2, BusAction{Kind: BusRdMem, Addr: 0x100, Bytes: 16})
	if !b.Occupied() {
		t.Fatal("bus must be occupied right after PutOn")
	}
	if got := b.Traffic(); got != 16 {
		t.Errorf("Traffic() = %d, want 16", got)
	}

	for i := 0; i < memPrice; i++ {
		b.Update()
		if !b.Occupied() {
			t.Fatalf("bus retired early, after %d updates", i+1)
		}
	}
	b.Update() // the (memPrice+1)-th update observes RemainingCycles==0 and clears
	if b.Occupied() {
		t.Fatal("bus failed to retire its transaction on schedule")
	}
}

func TestBusInvalidOrUpdCounting(t *testing.T) {
	b := NewBus()
	b.PutOn(0, BusAction{Kind: BusRdMem, Addr: 0, Bytes: 16})
	for b.Occupied() {
		b.Update()
	}
	if got := b.NumInvalidOrUpd(); got != 0 {
		t.Errorf("a plain BusRdMem must not count as invalidating/updating, got %d", got)
	}

	b.PutOn(0, BusAction{Kind: BusRdXMem, Addr: 0, Bytes: 16})
	if got := b.NumInvalidOrUpd(); got != 1 {
		t.Errorf("BusRdXMem must count as invalidating, got %d", got)
	}
}

func TestBusOverwriteAndClear(t *testing.T) {
	b := NewBus()
	b.PutOn(0, BusAction{Kind: BusRdMem, Addr: 0x40, Bytes: 16})
	b.Overwrite(&Task{IssuerID: 0, Action: BusAction{Kind: BusRdShared, Addr: 0x40, Bytes: 16}, RemainingCycles: 8})
	if got := b.ActiveTask().Action.Kind; got != BusRdShared {
		t.Errorf("Overwrite did not take effect, kind = %v", got)
	}
	b.Clear()
	if b.Occupied() {
		t.Fatal("Clear must drop the active task")
	}
}
