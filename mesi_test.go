package coherence

import "testing"

// newTestMESI returns a MESI instance over a single line, for transition
// table tests that only ever address flat index 0.
func newTestMESI(readBroadcast bool) *MESI {
	return NewMESI(0, 1, 16, readBroadcast)
}

func TestMESIReadHitNeverTouchesBus(t *testing.T) {
	cases := []mesiState{mesiShared, mesiExclusive, mesiModified}
	for _, st := range cases {
		m := newTestMESI(false)
		m.states[0] = st
		if a := m.Read(0, 0, 0x100, true, false); a != nil {
			t.Errorf("state %v: Read hit returned %+v, want nil", st, a)
		}
		if m.states[0] != st {
			t.Errorf("state %v: Read hit changed state to %v", st, m.states[0])
		}
	}
}

func TestMESIReadMissGoesExclusiveOnFreeBus(t *testing.T) {
	m := newTestMESI(false)
	a := m.Read(noLine, 0, 0x100, false, false)
	if a == nil || a.Kind != BusRdMem {
		t.Fatalf("Read miss = %+v, want a BusRdMem action", a)
	}
	if m.states[0] != mesiExclusive {
		t.Errorf("state after miss = %v, want E", m.states[0])
	}
}

func TestMESIReadMissDoesNotCommitWhenBusBusy(t *testing.T) {
	m := newTestMESI(false)
	a := m.Read(noLine, 0, 0x100, false, true)
	if a == nil {
		t.Fatal("expected a non-nil action even when busy, for the caller to retry")
	}
	if m.states[0] != mesiInvalid {
		t.Errorf("state must not commit while the bus is busy, got %v", m.states[0])
	}
}

func TestMESIWriteHitTransitions(t *testing.T) {
	cases := []struct {
		from     mesiState
		wantBus  bool
		wantKind BusActionKind
		wantTo   mesiState
	}{
		{mesiExclusive, false, 0, mesiModified},
		{mesiModified, false, 0, mesiModified},
		{mesiShared, true, BusRdXMem, mesiModified},
	}
	for _, tc := range cases {
		m := newTestMESI(false)
		m.states[0] = tc.from
		a := m.Write(0, 0, 0x100, true, false)
		if tc.wantBus && (a == nil || a.Kind != tc.wantKind) {
			t.Errorf("from %v: Write = %+v, want kind %v", tc.from, a, tc.wantKind)
		}
		if !tc.wantBus && a != nil {
			t.Errorf("from %v: Write = %+v, want nil", tc.from, a)
		}
		if m.states[0] != tc.wantTo {
			t.Errorf("from %v: state = %v, want %v", tc.from, m.states[0], tc.wantTo)
		}
	}
}

func TestMESISnoopBusRdXInvalidatesAnyState(t *testing.T) {
	for _, st := range []mesiState{mesiShared, mesiExclusive, mesiModified} {
		m := newTestMESI(false)
		m.states[0] = st
		bus := NewBus()
		bus.PutOn(1, BusAction{Kind: BusRdXMem, Addr: 0x100, Bytes: 16})
		m.Snoop(0, bus)
		if m.states[0] != mesiInvalid {
			t.Errorf("state %v: after BusRdX snoop = %v, want I", st, m.states[0])
		}
	}
}

func TestMESISnoopIgnoresOwnTransaction(t *testing.T) {
	m := newTestMESI(false)
	m.states[0] = mesiExclusive
	bus := NewBus()
	bus.PutOn(0, BusAction{Kind: BusRdXMem, Addr: 0x100, Bytes: 16})
	if rewritten := m.Snoop(0, bus); rewritten != nil {
		t.Errorf("Snoop on the issuer's own transaction must no-op, got %+v", rewritten)
	}
	if m.states[0] != mesiExclusive {
		t.Errorf("state changed on own-transaction snoop: %v", m.states[0])
	}
}

func TestMESISnoopBusRdRewritesToSharedOnHolderHit(t *testing.T) {
	m := newTestMESI(true)
	m.states[0] = mesiExclusive
	bus := NewBus()
	bus.PutOn(1, BusAction{Kind: BusRdMem, Addr: 0x100, Bytes: 16})
	rewritten := m.Snoop(0, bus)
	if rewritten == nil || rewritten.Action.Kind != BusRdShared {
		t.Fatalf("Snoop(BusRdMem) on a holder = %+v, want a BusRdShared rewrite", rewritten)
	}
	if m.states[0] != mesiShared {
		t.Errorf("state after servicing a read = %v, want S", m.states[0])
	}
}

func TestMESIAfterSnoopDowngradesExclusiveOnSharedRewrite(t *testing.T) {
	m := newTestMESI(true)
	m.states[0] = mesiExclusive
	bus := NewBus()
	bus.PutOn(0, BusAction{Kind: BusRdShared, Addr: 0x100, Bytes: 16})
	m.AfterSnoop(0, bus)
	if m.states[0] != mesiShared {
		t.Errorf("state after observing own read rewritten = %v, want S", m.states[0])
	}
}

func TestMESIWritebackRequiredOnlyWhenModified(t *testing.T) {
	m := newTestMESI(false)
	for _, tc := range []struct {
		st   mesiState
		want bool
	}{
		{mesiInvalid, false},
		{mesiShared, false},
		{mesiExclusive, false},
		{mesiModified, true},
	} {
		m.states[0] = tc.st
		if got := m.WritebackRequired(0); got != tc.want {
			t.Errorf("WritebackRequired(%v) = %v, want %v", tc.st, got, tc.want)
		}
	}
}
