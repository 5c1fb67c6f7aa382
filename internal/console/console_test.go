package console

import (
	"fmt"
	"sync"
	"testing"
)

func TestNewBuffer_DefaultCapacity(t *testing.T) {
	b := NewBuffer(0)
	if cap := len(b.lines); cap != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", cap, DefaultCapacity)
	}
}

func TestAppendAndLines(t *testing.T) {
	b := NewBuffer(10)

	b.Append("stdout", "first")
	b.Append("stderr", "second")

	lines := b.Lines()
	if len(lines) != 2 {
		t.Fatalf("len(Lines()) = %d, want 2", len(lines))
	}
	if lines[0].Text != "first" || lines[0].Stream != "stdout" {
		t.Errorf("lines[0] = %+v, want first/stdout", lines[0])
	}
	if lines[1].Text != "second" || lines[1].Stream != "stderr" {
		t.Errorf("lines[1] = %+v, want second/stderr", lines[1])
	}
	if lines[0].Time.IsZero() {
		t.Error("line timestamp not set")
	}
}

func TestEviction_OldestFirst(t *testing.T) {
	b := NewBuffer(3)

	for i := 1; i <= 5; i++ {
		b.Append("stdout", fmt.Sprintf("line-%d", i))
	}

	lines := b.Lines()
	if len(lines) != 3 {
		t.Fatalf("len(Lines()) = %d, want 3", len(lines))
	}
	want := []string{"line-3", "line-4", "line-5"}
	for i, w := range want {
		if lines[i].Text != w {
			t.Errorf("lines[%d].Text = %q, want %q", i, lines[i].Text, w)
		}
	}
}

func TestLen(t *testing.T) {
	b := NewBuffer(2)
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
	b.Append("stdout", "a")
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
	b.Append("stdout", "b")
	b.Append("stdout", "c")
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2 after wrap", b.Len())
	}
}

func TestClear(t *testing.T) {
	b := NewBuffer(4)
	b.Append("stdout", "a")
	b.Append("stdout", "b")
	b.Clear()

	if b.Len() != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", b.Len())
	}
	if lines := b.Lines(); len(lines) != 0 {
		t.Errorf("Lines() after Clear() = %v, want empty", lines)
	}
}

func TestConcurrentAppend(t *testing.T) {
	b := NewBuffer(100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Append("stdout", fmt.Sprintf("g%d-%d", n, j))
			}
		}(i)
	}
	wg.Wait()

	if b.Len() != 100 {
		t.Errorf("Len() = %d, want 100 at capacity", b.Len())
	}
}
