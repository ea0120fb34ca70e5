package voice

import (
	"fmt"
	"testing"
	"time"
)

func TestQueuePreservesFIFOOrder(t *testing.T) {
	q := newUtteranceQueue()
	defer q.Close()

	const n = 100
	for i := 0; i < n; i++ {
		q.Sink() <- Utterance{Text: fmt.Sprintf("u%d", i), Kind: KindText}
	}

	for i := 0; i < n; i++ {
		select {
		case u := <-q.Out():
			if want := fmt.Sprintf("u%d", i); u.Text != want {
				t.Fatalf("utterance[%d] = %q, want %q", i, u.Text, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for utterance %d", i)
		}
	}
}

func TestQueueProducerNeverBlocksWithoutConsumer(t *testing.T) {
	q := newUtteranceQueue()
	defer q.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			q.Sink() <- Utterance{Text: "x", Kind: KindVoice}
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("producer blocked on unconsumed queue")
	}
}

func TestQueueCloseEndsOutput(t *testing.T) {
	q := newUtteranceQueue()
	q.Close()

	select {
	case _, ok := <-q.Out():
		if ok {
			t.Fatalf("expected closed output channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("output channel did not close")
	}
}
