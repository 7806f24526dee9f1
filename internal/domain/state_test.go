package domain

import "testing"

func TestPairID_OrderIndependent(t *testing.T) {
	a := PairID("alice", "bob")
	b := PairID("bob", "alice")
	if a != b {
		t.Fatalf("PairID not order independent: %q vs %q", a, b)
	}
	if a == "" {
		t.Fatal("PairID returned empty string")
	}
}

func TestPairID_DistinctPairs(t *testing.T) {
	if PairID("alice", "bob") == PairID("alice", "carol") {
		t.Fatal("distinct pairs produced the same ID")
	}
	// Concatenation ambiguity: ("ab","c") must differ from ("a","bc").
	if PairID("ab", "c") == PairID("a", "bc") {
		t.Fatal("pair separator does not disambiguate concatenated ids")
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{StatusInitiated, StatusPending},
		{StatusPending, StatusAccepted},
		{StatusPending, StatusRejected},
		{StatusAccepted, StatusRemoved},
		{StatusRejected, StatusPending},
		{StatusRejected, StatusBlocked},
		{StatusBlocked, StatusPending},
		{StatusRemoved, StatusPending},
	}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Errorf("CanTransition(%s, %s) = false; want true", tr[0], tr[1])
		}
	}

	denied := [][2]string{
		{StatusAccepted, StatusPending},
		{StatusAccepted, StatusRejected},
		{StatusRejected, StatusAccepted},
		{StatusBlocked, StatusAccepted},
		{StatusRemoved, StatusAccepted},
		{StatusPending, StatusBlocked},
		{StatusPending, StatusRemoved},
	}
	for _, tr := range denied {
		if CanTransition(tr[0], tr[1]) {
			t.Errorf("CanTransition(%s, %s) = true; want false", tr[0], tr[1])
		}
	}
}

func TestBlocksNewRequest(t *testing.T) {
	cases := map[string]bool{
		StatusInitiated: false,
		StatusPending:   true,
		StatusAccepted:  true,
		StatusBlocked:   true,
		StatusRejected:  false,
		StatusRemoved:   false,
	}
	for status, want := range cases {
		if got := BlocksNewRequest(status); got != want {
			t.Errorf("BlocksNewRequest(%s) = %v; want %v", status, got, want)
		}
	}
}

func TestConnectionRequest_PeerOf(t *testing.T) {
	c := &ConnectionRequest{RequesterID: "a", TargetID: "b"}
	if got := c.PeerOf("a"); got != "b" {
		t.Errorf("PeerOf(a) = %q; want b", got)
	}
	if got := c.PeerOf("b"); got != "a" {
		t.Errorf("PeerOf(b) = %q; want a", got)
	}
	if got := c.PeerOf("x"); got != "" {
		t.Errorf("PeerOf(x) = %q; want empty", got)
	}
	if !c.Involves("a") || !c.Involves("b") || c.Involves("x") {
		t.Error("Involves gave wrong membership")
	}
}
