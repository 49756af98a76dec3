package cache

import (
	"testing"

	"github.com/tolelom/multichain/block"
)

func TestInsertThenGet(t *testing.T) {
	c, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	blk := block.Block{Header: block.Header{Height: 1}}
	c.Insert("hash-a", blk)

	got, ok := c.Get("hash-a")
	if !ok {
		t.Fatalf("expected cached block to be found")
	}
	if got.Header.Height != 1 {
		t.Fatalf("got height %d, want 1", got.Header.Height)
	}
}

func TestGetMissReturnsFalse(t *testing.T) {
	c, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := c.Get("unknown"); ok {
		t.Fatalf("expected a miss for an unseen hash")
	}
}

func TestEvictsLeastRecentlyUsedPastSize(t *testing.T) {
	c, err := New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Insert("a", block.Block{Header: block.Header{Height: 1}})
	c.Insert("b", block.Block{Header: block.Header{Height: 2}})
	c.Insert("c", block.Block{Header: block.Header{Height: 3}})

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected the oldest entry to be evicted once capacity is exceeded")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("expected the most recently inserted entry to still be cached")
	}
}
