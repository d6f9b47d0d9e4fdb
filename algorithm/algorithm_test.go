package algorithm

import (
	"context"
	"errors"
	"testing"
)

func TestDifficulty(t *testing.T) {
	cases := []struct{ base, peers, want int }{
		{4, 0, 4},
		{4, 4, 4},
		{4, 5, 5},
		{4, 14, 6},
		{1, -3, 1},
	}
	for _, c := range cases {
		if got := Difficulty(c.base, c.peers); got != c.want {
			t.Errorf("Difficulty(%d, %d) = %d, want %d", c.base, c.peers, got, c.want)
		}
	}
}

func TestGenesisHash(t *testing.T) {
	// sha256("GhostGenesis")
	if GenesisHash("GhostGenesis") != Sha256Hex([]byte("GhostGenesis")) {
		t.Fail()
	}
	if len(GenesisHash("GhostGenesis")) != 64 {
		t.Fail()
	}
}

func TestMeetsDifficulty(t *testing.T) {
	if !MeetsDifficulty("00ab", 2) || MeetsDifficulty("0a0b", 2) {
		t.Fail()
	}
	if !MeetsDifficulty("ffff", 0) {
		t.Fail()
	}
	if MeetsDifficulty("00", 3) {
		t.Fail()
	}
}

func TestSolve(t *testing.T) {
	nonce, err := Solve(context.Background(), 100, 2)
	if err != nil {
		t.Fatal(err)
	}

	if !ValidProof(100, nonce, 2) {
		t.Errorf("nonce %d does not satisfy difficulty", nonce)
	}

	for n := int64(0); n < nonce; n++ {
		if ValidProof(100, n, 2) {
			t.Fatalf("solve skipped the smaller nonce %d", n)
		}
	}
}

func TestSolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 64 zero digits is never found
	_, err := Solve(ctx, 100, 64)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBlockHashDeterministic(t *testing.T) {
	a := BlockHash(2, 1700000000.5, "prev", 42, "GHSTminer")
	b := BlockHash(2, 1700000000.5, "prev", 42, "GHSTminer")
	if a != b {
		t.Fatal("block hash is not deterministic")
	}

	if a == BlockHash(2, 1700000000.5, "prev", 43, "GHSTminer") {
		t.Fatal("proof does not affect the hash")
	}
	if a == BlockHash(3, 1700000000.5, "prev", 42, "GHSTminer") {
		t.Fatal("index does not affect the hash")
	}
}
