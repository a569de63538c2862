package mqtt

import "log"

// pending is a serialized message held for replay after reconnection.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO of messages published while the broker
// was unreachable. When full, the oldest message is dropped.
// Not safe for concurrent use; RealClient holds its lock around it.
type outbox struct {
	slots   []pending
	next    int // next write position
	count   int
	dropped int // since last drain
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{slots: make([]pending, capacity)}
}

func (o *outbox) push(msg pending) {
	if o.count == len(o.slots) {
		if o.dropped == 0 {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", len(o.slots))
		}
		o.dropped++
	} else {
		o.count++
	}
	o.slots[o.next] = msg
	o.next = (o.next + 1) % len(o.slots)
}

// drain returns queued messages oldest first and how many were lost to
// overflow, then empties the outbox.
func (o *outbox) drain() ([]pending, int) {
	if o.count == 0 {
		return nil, 0
	}
	n := len(o.slots)
	out := make([]pending, o.count)
	first := (o.next - o.count + n) % n
	for i := range out {
		out[i] = o.slots[(first+i)%n]
		o.slots[(first+i)%n] = pending{}
	}
	dropped := o.dropped
	o.count, o.next, o.dropped = 0, 0, 0
	return out, dropped
}

func (o *outbox) len() int {
	return o.count
}
