package ristretto_test

import (
	"context"
	"testing"
	"time"

	"github.com/clipforge/clipforge/internal/adapter/ristretto"
)

func TestCache_SetGetDelete(t *testing.T) {
	c, err := ristretto.New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "llm:abc", []byte("cached reply"), time.Minute); err != nil {
		t.Fatal(err)
	}
	// Ristretto admits writes asynchronously.
	deadline := time.Now().Add(time.Second)
	for {
		if _, ok, _ := c.Get(ctx, "llm:abc"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("value never became visible")
		}
		time.Sleep(5 * time.Millisecond)
	}

	data, ok, err := c.Get(ctx, "llm:abc")
	if err != nil || !ok || string(data) != "cached reply" {
		t.Fatalf("unexpected get: data=%q ok=%v err=%v", data, ok, err)
	}

	if err := c.Delete(ctx, "llm:abc"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "llm:abc"); ok {
		t.Fatal("value survived delete")
	}
}

func TestCache_MissingKey(t *testing.T) {
	c, err := ristretto.New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	data, ok, err := c.Get(context.Background(), "nope")
	if err != nil || ok || data != nil {
		t.Fatalf("expected clean miss, got data=%q ok=%v err=%v", data, ok, err)
	}
}
