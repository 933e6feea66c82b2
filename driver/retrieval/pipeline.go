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
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tsodbc/platform/driver/base"
	"tsodbc/platform/driver/telemetry"
	"tsodbc/platform/shared/logger"
)

// DefaultPollInterval bounds how long PopResult waits before re-checking
// whether retrieval is still running.
const DefaultPollInterval = 100 * time.Millisecond

// Options configures a Pipeline
type Options struct {
	Capacity     int
	PollInterval time.Duration
	Logger       *logger.Logger
	ConnectionID string
}

// Pipeline runs one producer goroutine that pages a query's output into a
// bounded ResultQueue, and hands pages to the consumer through PopResult.
type Pipeline struct {
	queue        *ResultQueue
	pollInterval time.Duration
	logger       *logger.Logger
	connectionID string
	queryID      string

	retrieving atomic.Bool
	started    atomic.Bool
	done       chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
	err    error

	stopOnce sync.Once
}

// NewPipeline creates an idle pipeline
func NewPipeline(opts Options) *Pipeline {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Pipeline{
		queue:        NewResultQueue(opts.Capacity),
		pollInterval: poll,
		logger:       opts.Logger,
		connectionID: opts.ConnectionID,
		done:         make(chan struct{}),
	}
}

// Start launches the producer for query handle h. A pipeline runs at most
// one query.
func (p *Pipeline) Start(ctx context.Context, exec base.QueryExecutor, h base.QueryHandle) error {
	if exec == nil || h == nil {
		return base.NewError(base.KindNotConnected, "StartRetrieval", "no query to retrieve", nil)
	}
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("result retrieval already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	p.mu.Lock()
	p.cancel = cancel
	p.group = g
	p.queryID = h.ID()
	p.mu.Unlock()

	p.retrieving.Store(true)
	g.Go(func() error {
		defer close(p.done)
		return p.produce(gctx, exec, h)
	})
	return nil
}

func (p *Pipeline) produce(ctx context.Context, exec base.QueryExecutor, h base.QueryHandle) error {
	pages := 0
	for p.retrieving.Load() {
		timer := telemetry.NewOperationTimer("fetch_page")
		page, err := exec.FetchNextPage(ctx, h)
		elapsed := timer.Stop()

		if errors.Is(err, io.EOF) {
			p.debug("Result retrieval completed", map[string]interface{}{"pages": pages})
			telemetry.RecordRetrievalStop(telemetry.StopCompleted)
			return nil
		}
		if err != nil {
			if !p.retrieving.Load() {
				break
			}
			fetchErr := asFetchError(err)
			p.setErr(fetchErr)
			telemetry.RecordFetchError(fetchErr)
			telemetry.RecordRetrievalStop(telemetry.StopFailed)
			if p.logger != nil {
				p.logger.ErrorWithKind(p.connectionID, h.ID(), "Page fetch failed",
					string(base.KindOf(fetchErr)), fetchErr, map[string]interface{}{"pages": pages})
			}
			// The consumer sees the failure in order, after the pages before it.
			_ = p.queue.Push(ctx, base.NewErrorResult(fetchErr))
			return fetchErr
		}
		if page == nil {
			continue
		}

		pages++
		telemetry.RecordPage(len(page.Rows))
		p.debug("Fetched page", map[string]interface{}{
			"page":     pages,
			"rows":     len(page.Rows),
			"fetch_ms": float64(elapsed) / float64(time.Millisecond),
		})

		waitStart := time.Now()
		if err := p.queue.Push(ctx, base.NewRowsResult(page)); err != nil {
			break
		}
		telemetry.ObserveBackpressure(time.Since(waitStart))
	}

	p.debug("Result retrieval stopped", map[string]interface{}{"pages": pages})
	telemetry.RecordRetrievalStop(telemetry.StopCancelled)
	return nil
}

func asFetchError(err error) error {
	if base.IsKind(err, base.KindUpstreamFetchFailed) {
		return err
	}
	return base.NewError(base.KindUpstreamFetchFailed, "FetchNextPage", err.Error(), err)
}

// PopResult returns the next page in order. It returns nil once retrieval
// was stopped, or once the producer finished and every page was consumed.
func (p *Pipeline) PopResult() *base.PendingResult {
	for p.retrieving.Load() {
		r, err := p.queue.Pop(p.pollInterval)
		switch {
		case err == nil:
			return r
		case errors.Is(err, ErrQueueClosed):
			return nil
		}

		select {
		case <-p.done:
			// Producer pushed its last page before exiting.
			if r, ok := p.queue.TryPop(); ok {
				return r
			}
			return nil
		default:
		}
	}
	return nil
}

// Stop ends retrieval: the in-flight fetch is cancelled, blocked pushes and
// pops are released and queued pages are discarded. Safe to call more than
// once and before Start.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.retrieving.Store(false)

		p.mu.Lock()
		cancel := p.cancel
		p.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		dropped := len(p.queue.items)
		p.queue.Close()
		p.debug("Result retrieval stop requested", map[string]interface{}{"dropped_pages": dropped})
	})
}

// Wait blocks until the producer exits and returns its fetch error, if any
func (p *Pipeline) Wait() error {
	p.mu.Lock()
	g := p.group
	p.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// Err returns the fetch error that ended retrieval, if any
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// IsRetrieving reports whether the producer may still deliver pages
func (p *Pipeline) IsRetrieving() bool {
	if !p.retrieving.Load() {
		return false
	}
	select {
	case <-p.done:
		return p.queue.Len() > 0
	default:
		return true
	}
}

// Queued returns the number of pages waiting for the consumer
func (p *Pipeline) Queued() int { return p.queue.Len() }

func (p *Pipeline) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *Pipeline) debug(msg string, fields map[string]interface{}) {
	if p.logger == nil {
		return
	}
	p.mu.Lock()
	queryID := p.queryID
	p.mu.Unlock()
	p.logger.Debug(p.connectionID, queryID, msg, fields)
}
