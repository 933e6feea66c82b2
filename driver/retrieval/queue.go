// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retrieval

import (
	"context"
	"errors"
	"sync"
	"time"

	"tsodbc/platform/driver/base"
)

// DefaultCapacity is the number of fetched pages held ahead of the consumer.
const DefaultCapacity = 2

var (
	// ErrQueueClosed is returned by Push and Pop once the queue was closed.
	ErrQueueClosed = errors.New("result queue closed")
	// ErrPopTimeout is returned by Pop when nothing arrived in time.
	ErrPopTimeout = errors.New("result queue pop timed out")
)

// ResultQueue is a bounded FIFO between one producer and one consumer.
// A full queue blocks Push; that is the only backpressure on the producer.
type ResultQueue struct {
	items     chan *base.PendingResult
	closed    chan struct{}
	closeOnce sync.Once
}

// NewResultQueue creates a queue holding at most capacity results
func NewResultQueue(capacity int) *ResultQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ResultQueue{
		items:  make(chan *base.PendingResult, capacity),
		closed: make(chan struct{}),
	}
}

// Push appends r, waiting for space. It returns ctx.Err() or ErrQueueClosed
// if either happens first.
func (q *ResultQueue) Push(ctx context.Context, r *base.PendingResult) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case q.items <- r:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPop removes the head without waiting
func (q *ResultQueue) TryPop() (*base.PendingResult, bool) {
	select {
	case r := <-q.items:
		return r, true
	default:
		return nil, false
	}
}

// Pop removes the head, waiting at most timeout. A closed queue returns
// ErrQueueClosed immediately.
func (q *ResultQueue) Pop(timeout time.Duration) (*base.PendingResult, error) {
	select {
	case <-q.closed:
		return nil, ErrQueueClosed
	default:
	}
	if r, ok := q.TryPop(); ok {
		return r, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-q.items:
		return r, nil
	case <-q.closed:
		return nil, ErrQueueClosed
	case <-timer.C:
		return nil, ErrPopTimeout
	}
}

// Len returns the number of queued results
func (q *ResultQueue) Len() int { return len(q.items) }

// Cap returns the queue capacity
func (q *ResultQueue) Cap() int { return cap(q.items) }

// Close releases every blocked Push and Pop and discards queued results.
// Safe to call more than once.
func (q *ResultQueue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
	q.Drain()
}

// Drain discards queued results and returns how many were dropped
func (q *ResultQueue) Drain() int {
	n := 0
	for {
		if _, ok := q.TryPop(); !ok {
			return n
		}
		n++
	}
}

// Closed reports whether Close was called
func (q *ResultQueue) Closed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}
