package dispatch

import (
	"container/heap"
	"time"

	"github.com/katalvlaran/tspgrid/matrix"
	"github.com/katalvlaran/tspgrid/tsp"
)

// Stats counts task outcomes of a session.
type Stats struct {
	Dispatched int `cbor:"dispatched" json:"dispatched"`
	Pruned     int `cbor:"pruned" json:"pruned"`
	Tours      int `cbor:"tours" json:"tours"`
	Branched   int `cbor:"branched" json:"branched"`
	Explored   int `cbor:"explored" json:"explored"`
	Exhausted  int `cbor:"exhausted" json:"exhausted"`
	Failed     int `cbor:"failed" json:"failed"`
	Requeued   int `cbor:"requeued" json:"requeued"`
	// Nodes is the number of nodes evaluated by workers, counting every
	// node of an explored subtree.
	Nodes int `cbor:"nodes" json:"nodes"`
	// CriticalPath is the longest root-to-leaf chain of compute time.
	CriticalPath time.Duration `cbor:"critical" json:"critical_path"`
}

// Invoice is the accounting returned by logout.
type Invoice struct {
	SessionID  string    `cbor:"session" json:"session"`
	Digest     string    `cbor:"digest" json:"digest"`
	Begin      time.Time `cbor:"begin" json:"begin"`
	End        time.Time `cbor:"end" json:"end"`
	Stats      Stats     `cbor:"stats" json:"stats"`
	UpperBound int       `cbor:"upper" json:"upper_bound"`
	Tour       *tsp.Tour `cbor:"tour,omitempty" json:"tour,omitempty"`
	Errors     []string  `cbor:"errors,omitempty" json:"errors,omitempty"`
}

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	ID         string    `json:"id"`
	Digest     string    `json:"digest"`
	Size       int       `json:"size"`
	Begin      time.Time `json:"begin"`
	UpperBound int       `json:"upper_bound"`
	Queued     int       `json:"queued"`
	InFlight   int       `json:"in_flight"`
	Drained    bool      `json:"drained"`
	Stats      Stats     `json:"stats"`
}

type taskState uint8

const (
	taskQueued taskState = iota
	taskInFlight
	taskDone
)

type task struct {
	id       string
	index    int
	blob     []byte
	hint     int
	seq      uint64
	critical time.Duration

	state  taskState
	worker string
	sentAt time.Time
	heapAt int
}

// taskQueue is a min-heap on (hint, seq): best parent bound first, FIFO on
// ties.
type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].hint != q[j].hint {
		return q[i].hint < q[j].hint
	}

	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].heapAt = i
	q[j].heapAt = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*task)
	t.heapAt = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	t := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	t.heapAt = -1

	return t
}

type session struct {
	id           string
	digest       string
	graph        *matrix.Dense
	graphBlob    []byte
	iterations   int
	exploreDepth int
	ub           *tsp.UpperBound
	best         *tsp.Tour

	queue taskQueue
	tasks map[string]*task
	seq   uint64

	stats   Stats
	errs    []string
	begin   time.Time
	end     time.Time
	drained chan struct{}
}

func (s *session) enqueue(t *task) {
	s.seq++
	t.seq = s.seq
	t.state = taskQueued
	t.worker = ""
	s.tasks[t.id] = t
	heap.Push(&s.queue, t)
}

func (s *session) inFlight() int {
	var k int
	for _, t := range s.tasks {
		if t.state == taskInFlight {
			k++
		}
	}

	return k
}

// checkDrained closes drained once nothing is queued or in flight.
func (s *session) checkDrained(now time.Time) bool {
	select {
	case <-s.drained:
		return true
	default:
	}
	if s.queue.Len() > 0 {
		return false
	}
	for _, t := range s.tasks {
		if t.state != taskDone {
			return false
		}
	}
	s.end = now
	close(s.drained)

	return true
}

func (s *session) invoice() Invoice {
	end := s.end
	if end.IsZero() {
		end = time.Now()
	}

	return Invoice{
		SessionID:  s.id,
		Digest:     s.digest,
		Begin:      s.begin,
		End:        end,
		Stats:      s.stats,
		UpperBound: s.ub.Value(),
		Tour:       s.best.Clone(),
		Errors:     append([]string(nil), s.errs...),
	}
}

func (s *session) info() SessionInfo {
	drained := false
	select {
	case <-s.drained:
		drained = true
	default:
	}

	return SessionInfo{
		ID:         s.id,
		Digest:     s.digest,
		Size:       s.graph.Size(),
		Begin:      s.begin,
		UpperBound: s.ub.Value(),
		Queued:     s.queue.Len(),
		InFlight:   s.inFlight(),
		Drained:    drained,
		Stats:      s.stats,
	}
}
