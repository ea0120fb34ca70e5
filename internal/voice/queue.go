package voice

// utteranceQueue is the unbounded FIFO between the session's producers
// (ingestion actor, recognizer callback goroutine) and its single output
// actor. Producers never block on a slow consumer; utterances queue
// instead of running in parallel, preserving conversational turn order.
type utteranceQueue struct {
	in  chan Utterance
	out chan Utterance
}

func newUtteranceQueue() *utteranceQueue {
	q := &utteranceQueue{
		in:  make(chan Utterance, 16),
		out: make(chan Utterance),
	}
	go q.pump()
	return q
}

// Sink is handed to the recognizer and the ingestion actor as the push side.
func (q *utteranceQueue) Sink() chan<- Utterance { return q.in }

// Out is consumed only by the output actor.
func (q *utteranceQueue) Out() <-chan Utterance { return q.out }

// Close ends the queue. Pending utterances are dropped: closing only
// happens during teardown, which stops future work without retracting
// anything already sent.
func (q *utteranceQueue) Close() { close(q.in) }

func (q *utteranceQueue) pump() {
	defer close(q.out)
	var backlog []Utterance
	for {
		var ready chan Utterance
		var head Utterance
		if len(backlog) > 0 {
			ready = q.out
			head = backlog[0]
		}
		select {
		case u, ok := <-q.in:
			if !ok {
				return
			}
			backlog = append(backlog, u)
		case ready <- head:
			backlog = backlog[1:]
		}
	}
}
