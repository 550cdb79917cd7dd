package cache

import (
	"testing"
	"time"
)

func TestGetSetExpire(t *testing.T) {
	c := New(50 * time.Millisecond)
	c.Set("k", []byte("v"))
	if got := c.Get("k"); string(got) != "v" {
		t.Fatalf("got %q", got)
	}
	time.Sleep(80 * time.Millisecond)
	if got := c.Get("k"); got != nil {
		t.Fatalf("expected expired, got %q", got)
	}
}

func TestDeletePrefix(t *testing.T) {
	c := New(time.Minute)
	c.Set("professionals:a", []byte("1"))
	c.Set("professionals:b", []byte("2"))
	c.Set("other", []byte("3"))
	c.DeletePrefix("professionals:")
	if c.Get("professionals:a") != nil || c.Get("professionals:b") != nil {
		t.Fatal("prefix entries must be gone")
	}
	if c.Get("other") == nil {
		t.Fatal("unrelated entry must survive")
	}
}
