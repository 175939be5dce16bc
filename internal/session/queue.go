package session

// CommandQueue is the ordered sequence of pending commands described in
// spec §4.1. It is a singly-linked FIFO with head and tail insertion,
// adapted from the teacher's sippy_container.Fifo (src/sippy/container/fifo.go)
// to carry Command values directly and to add PushHead and Filter, which the
// plain producer/consumer Fifo never needed.
type commandNode struct {
	next  *commandNode
	value Command
}

type CommandQueue struct {
	first *commandNode
	last  *commandNode
	size  int
}

func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

// PushTail enqueues a command at the end. Commands with no ApplicationName
// are dropped per §4.1.
func (q *CommandQueue) PushTail(cmd Command) {
	if cmd.ApplicationName == "" {
		return
	}
	node := &commandNode{value: cmd}
	if q.last != nil {
		q.last.next = node
	} else {
		q.first = node
	}
	q.last = node
	q.size++
}

// PushHead enqueues a command at the front. Commands with no ApplicationName
// are dropped per §4.1.
func (q *CommandQueue) PushHead(cmd Command) {
	if cmd.ApplicationName == "" {
		return
	}
	node := &commandNode{value: cmd, next: q.first}
	q.first = node
	if q.last == nil {
		q.last = node
	}
	q.size++
}

// Pop removes and returns the head of the queue. The second return value is
// false when the queue was already empty.
func (q *CommandQueue) Pop() (Command, bool) {
	node := q.first
	if node == nil {
		return Command{}, false
	}
	q.first = node.next
	if q.first == nil {
		q.last = nil
	}
	q.size--
	return node.value, true
}

func (q *CommandQueue) IsEmpty() bool {
	return q.first == nil
}

func (q *CommandQueue) Len() int {
	return q.size
}

// Flush drops every queued command (§4.2 insert_at=flush).
func (q *CommandQueue) Flush() {
	q.first = nil
	q.last = nil
	q.size = 0
}

// Snapshot returns the queue contents head-to-tail without mutating it, for
// CLI inspection and tests.
func (q *CommandQueue) Snapshot() []Command {
	out := make([]Command, 0, q.size)
	for n := q.first; n != nil; n = n.next {
		out = append(out, n.value)
	}
	return out
}

// Filter applies the cooperative early-termination algorithm of §4.5,
// dropping a leading run of commands that match specs and replacing the
// queue contents with whatever remains.
func (q *CommandQueue) Filter(specs []FilterSpec) {
	remaining := filterCommands(specs, q.Snapshot())
	q.first = nil
	q.last = nil
	q.size = 0
	for _, cmd := range remaining {
		q.PushTail(cmd)
	}
}
