package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"babel-hq/rosetta/pkg/ir"
)

func TestTeeAllConsumersSeeEveryChunk(t *testing.T) {
	in := FromChunks(
		ir.StartChunk(0, nil),
		ir.ContentChunk(1, "a"),
		ir.ContentChunk(2, "b"),
		ir.DoneChunk(3, ir.FinishReasonStop, nil),
	)
	outs := Tee(context.Background(), in, 3)
	if len(outs) != 3 {
		t.Fatalf("len(outs) = %d, want 3", len(outs))
	}

	var wg sync.WaitGroup
	results := make([][]*ir.StreamChunk, 3)
	for i, out := range outs {
		wg.Add(1)
		go func(i int, out <-chan *ir.StreamChunk) {
			defer wg.Done()
			for c := range out {
				results[i] = append(results[i], c)
			}
		}(i, out)
	}
	wg.Wait()

	for i, got := range results {
		if len(got) != 4 {
			t.Fatalf("consumer %d saw %d chunks, want 4", i, len(got))
		}
		for j, c := range got {
			if c.Sequence != j {
				t.Errorf("consumer %d chunk %d sequence = %d", i, j, c.Sequence)
			}
		}
	}
}

func TestTeeSlowConsumerDoesNotStallFastOne(t *testing.T) {
	src := make(chan *ir.StreamChunk)
	go func() {
		defer close(src)
		for i := 0; i < 20; i++ {
			src <- ir.ContentChunk(i, "x")
		}
	}()

	outs := Tee(context.Background(), src, 2)

	fastDone := make(chan time.Duration, 1)
	go func() {
		start := time.Now()
		n := 0
		for range outs[0] {
			n++
		}
		if n != 20 {
			t.Errorf("fast consumer saw %d chunks", n)
		}
		fastDone <- time.Since(start)
	}()

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		for range outs[1] {
			time.Sleep(5 * time.Millisecond)
		}
	}()

	select {
	case d := <-fastDone:
		// The slow consumer needs ~100ms; the fast one must not wait for it.
		if d > 50*time.Millisecond {
			t.Errorf("fast consumer took %s, was stalled by the slow one", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fast consumer never finished")
	}
	<-slowDone
}

func TestTeeClonesPerBranch(t *testing.T) {
	src := FromChunks(ir.ContentChunk(0, "original"))
	outs := Tee(context.Background(), src, 2)

	first := <-outs[0]
	first.Delta = "mutated"

	second := <-outs[1]
	if second.Delta != "original" {
		t.Errorf("mutation leaked across branches: %q", second.Delta)
	}

	// Drain the closes.
	for range outs[0] {
	}
	for range outs[1] {
	}
}

func TestTeeZeroConsumers(t *testing.T) {
	if outs := Tee(context.Background(), FromChunks(), 0); outs != nil {
		t.Errorf("Tee(0) = %v, want nil", outs)
	}
}
