package machine

// EventLoop is the cooperative, single-threaded scheduler of spec.md
// §4.H: a microtask queue (Promise reactions, always drained to empty
// before the next macrotask runs) and a macrotask queue (timers), run
// strictly FIFO within each tier. There is no real wall clock in this
// runtime, so timer ordering is by requested delay, then by registration
// order among equal delays.
type EventLoop struct {
	microtasks []func()
	macrotasks []macrotask
	seq        int64
}

type macrotask struct {
	delay     int64
	seq       int64
	fn        func()
	cancelled bool
}

// NewEventLoop returns an empty event loop.
func NewEventLoop() *EventLoop { return &EventLoop{} }

func (el *EventLoop) enqueueMicrotask(fn func()) {
	el.microtasks = append(el.microtasks, fn)
}

// ScheduleTimer queues fn to run after delay logical ticks (the
// implementation behind setTimeout/setInterval's single-shot form),
// returning an id that CancelTimer can use to cancel it before it fires.
func (el *EventLoop) ScheduleTimer(delay int64, fn func()) int64 {
	el.seq++
	id := el.seq
	el.macrotasks = append(el.macrotasks, macrotask{delay: delay, seq: id, fn: fn})
	return id
}

// CancelTimer marks the timer with the given id (as returned by
// ScheduleTimer) so it is skipped rather than run, implementing
// clearTimeout/clearInterval.
func (el *EventLoop) CancelTimer(id int64) {
	for i := range el.macrotasks {
		if el.macrotasks[i].seq == id {
			el.macrotasks[i].cancelled = true
		}
	}
}

func (el *EventLoop) drainMicrotasks() {
	for len(el.microtasks) > 0 {
		fn := el.microtasks[0]
		el.microtasks = el.microtasks[1:]
		fn()
	}
}

// Pending reports whether any task (micro or macro) remains queued;
// RunProgram uses this to know when the program has truly finished.
func (el *EventLoop) Pending() bool {
	return len(el.microtasks) > 0 || len(el.macrotasks) > 0
}

// Run drains the microtask queue, then repeatedly pops the
// earliest-scheduled macrotask and drains the microtask queue again,
// until both queues are empty. Promises left forever pending (nothing
// left to settle them) simply stop the loop; they are not an error.
func (el *EventLoop) Run() {
	el.drainMicrotasks()
	for len(el.macrotasks) > 0 {
		idx := el.nextMacrotask()
		if idx < 0 {
			break
		}
		mt := el.macrotasks[idx]
		el.macrotasks = append(el.macrotasks[:idx], el.macrotasks[idx+1:]...)
		if !mt.cancelled {
			mt.fn()
		}
		el.drainMicrotasks()
	}
}

func (el *EventLoop) nextMacrotask() int {
	best := -1
	for i, mt := range el.macrotasks {
		if mt.cancelled {
			continue
		}
		if best == -1 || mt.delay < el.macrotasks[best].delay ||
			(mt.delay == el.macrotasks[best].delay && mt.seq < el.macrotasks[best].seq) {
			best = i
		}
	}
	return best
}

// Roots returns every heap reference retained by still-pending macrotasks'
// closures indirectly through Promises they will settle; the closures
// themselves are opaque to the collector, so the event loop conservatively
// reports nothing extra here and instead relies on those Promises also
// being reachable from wherever the script itself still holds them. This
// mirrors the language's own rule that an otherwise-unreferenced pending
// Promise with no reachable reactions is not required to be kept alive.
func (el *EventLoop) Roots() []HeapRef { return nil }

// whenSettled arranges for cb to run, as a fresh microtask, once v
// settles: immediately (next microtask turn) if v is not a promise, else
// chained onto the promise's own settlement. AWAIT always suspends at
// least one microtask turn this way, even awaiting an already-resolved
// value, matching the language's await semantics.
func (th *Thread) whenSettled(v Value, cb func(result Value, rejected bool)) {
	if r, ok := v.(HeapRef); ok {
		if p, ok := r.Object().(*Promise); ok {
			p.onSettle(th, cb)
			return
		}
	}
	th.Loop.enqueueMicrotask(func() { cb(v, false) })
}
