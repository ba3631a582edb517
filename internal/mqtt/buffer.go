package mqtt

import (
	"github.com/sweeney/gpio-buttons/internal/button"
)

// bufferedMsg is a serialized message waiting for the broker, plus what it
// was built from so drops can be logged by button.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool

	button string           // empty for system events
	event  button.EventType // or the system event name
}

// label names the message for logs, e.g. "DOWN PRESSED" or "STARTUP".
func (m bufferedMsg) label() string {
	if m.button == "" {
		return string(m.event)
	}
	return m.button + " " + string(m.event)
}

// ringBuffer keeps the newest messages published while disconnected.
// Not safe for concurrent use; RealPublisher guards it with its mutex.
type ringBuffer struct {
	slots   []bufferedMsg
	next    int // slot the next push writes
	count   int
	dropped int // evictions since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{slots: make([]bufferedMsg, capacity)}
}

// push stores msg. When full it evicts the oldest message and returns it
// with ok set.
func (r *ringBuffer) push(msg bufferedMsg) (evicted bufferedMsg, ok bool) {
	if r.count == len(r.slots) {
		evicted, ok = r.slots[r.next], true
		r.dropped++
	} else {
		r.count++
	}
	r.slots[r.next] = msg
	r.next = (r.next + 1) % len(r.slots)
	return evicted, ok
}

// drainAll empties the buffer, returning messages oldest first and the
// number evicted since the previous drain.
func (r *ringBuffer) drainAll() ([]bufferedMsg, int) {
	dropped := r.dropped
	r.dropped = 0
	if r.count == 0 {
		r.next = 0
		return nil, dropped
	}

	out := make([]bufferedMsg, 0, r.count)
	oldest := (r.next - r.count + len(r.slots)) % len(r.slots)
	for i := 0; i < r.count; i++ {
		out = append(out, r.slots[(oldest+i)%len(r.slots)])
	}
	r.count, r.next = 0, 0
	return out, dropped
}

func (r *ringBuffer) len() int {
	return r.count
}

// droppedSinceDrain returns how many messages were evicted since the last drain.
func (r *ringBuffer) droppedSinceDrain() int {
	return r.dropped
}
