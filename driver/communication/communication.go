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

// Package communication is the driver-facing facade over one connection:
// setup, status, client encoding, and query result retrieval.
package communication

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tsodbc/platform/driver/base"
	"tsodbc/platform/driver/retrieval"
	"tsodbc/platform/driver/session"
	"tsodbc/platform/shared/logger"
)

// Options configures a Communication
type Options struct {
	Session session.Options
	// QueueCapacity bounds how many pages the producer may fetch ahead.
	QueueCapacity int
	PollInterval  time.Duration
}

// Communication owns a connection and at most one running result retrieval
type Communication struct {
	conn     *session.Connection
	logger   *logger.Logger
	capacity int
	poll     time.Duration

	// queryMu serialises query starts, Setup and Disconnect.
	queryMu sync.Mutex

	mu       sync.Mutex
	pipeline *retrieval.Pipeline
	encoding ClientEncoding
	lastErr  error
}

// New creates a facade whose connection starts in the Bad state
func New(opts Options) *Communication {
	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = retrieval.DefaultCapacity
	}
	conn := session.New(opts.Session)
	enc, _ := LookupEncoding(DefaultEncoding)
	return &Communication{
		conn:     conn,
		logger:   conn.Logger(),
		capacity: capacity,
		poll:     opts.PollInterval,
		encoding: enc,
	}
}

// Connection exposes the underlying connection
func (c *Communication) Connection() *session.Connection { return c.conn }

// Setup connects with the given connection string and reports success.
// On failure the reason is available from LastError and GetStatus tells
// whether the attributes (Bad) or the credentials (Needed) were at fault.
func (c *Communication) Setup(ctx context.Context, raw string) bool {
	c.queryMu.Lock()
	defer c.queryMu.Unlock()

	c.stopAndWait()
	err := c.conn.Setup(ctx, raw)
	c.setErr(err)
	return err == nil
}

// GetStatus returns the connection status without blocking
func (c *Communication) GetStatus() base.ConnectionStatus {
	return c.conn.Status()
}

// LastError returns the error of the last failed operation, or nil
func (c *Communication) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SetClientEncoding selects the encoding used for text handed to the
// client. An unsupported name leaves the current encoding in place.
func (c *Communication) SetClientEncoding(name string) bool {
	enc, ok := LookupEncoding(name)
	if !ok {
		err := base.NewError(base.KindUnsupportedEncoding, "SetClientEncoding",
			fmt.Sprintf("unsupported client encoding %q", name), nil)
		c.setErr(err)
		c.logger.Warn(c.conn.ID(), "", "Client encoding rejected", map[string]interface{}{
			"requested": name,
			"current":   c.GetClientEncoding(),
		})
		return false
	}

	c.mu.Lock()
	c.encoding = enc
	c.mu.Unlock()
	c.logger.Debug(c.conn.ID(), "", "Client encoding set", map[string]interface{}{"encoding": enc.Name})
	return true
}

// GetClientEncoding returns the canonical name of the client encoding
func (c *Communication) GetClientEncoding() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encoding.Name
}

// Encode converts s to the client encoding
func (c *Communication) Encode(s string) ([]byte, error) {
	c.mu.Lock()
	enc := c.encoding
	c.mu.Unlock()
	return enc.Encode(s)
}

// Decode converts client-encoded bytes to UTF-8
func (c *Communication) Decode(b []byte) (string, error) {
	c.mu.Lock()
	enc := c.encoding
	c.mu.Unlock()
	return enc.Decode(b)
}

// ExecuteQuery stops any running retrieval, starts sql and begins paging
// its results in the background. Pages are read with PopResult.
func (c *Communication) ExecuteQuery(ctx context.Context, sql string) error {
	c.queryMu.Lock()
	defer c.queryMu.Unlock()

	c.stopAndWait()

	exec, err := c.conn.Executor()
	if err != nil {
		c.setErr(err)
		return err
	}

	h, err := exec.ExecuteQuery(ctx, sql)
	if err != nil {
		c.setErr(err)
		c.logger.ErrorWithKind(c.conn.ID(), "", "Query failed to start", string(base.KindOf(err)), err, nil)
		return err
	}

	p := retrieval.NewPipeline(retrieval.Options{
		Capacity:     c.capacity,
		PollInterval: c.poll,
		Logger:       c.logger,
		ConnectionID: c.conn.ID(),
	})
	// Retrieval outlives this call; only StopResultRetrieval ends it.
	if err := p.Start(context.WithoutCancel(ctx), exec, h); err != nil {
		c.setErr(err)
		return err
	}

	c.mu.Lock()
	c.pipeline = p
	c.lastErr = nil
	c.mu.Unlock()

	c.logger.Info(c.conn.ID(), h.ID(), "Query started", map[string]interface{}{
		"queue_capacity": c.capacity,
	})
	return nil
}

// PopResult blocks for the next page of the current query. It returns nil
// once retrieval has ended and every page was consumed, or after
// StopResultRetrieval.
func (c *Communication) PopResult() *base.PendingResult {
	c.mu.Lock()
	p := c.pipeline
	c.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.PopResult()
}

// StopResultRetrieval ends the current retrieval and releases any blocked
// PopResult. It does not wait for the in-flight fetch to return.
func (c *Communication) StopResultRetrieval() {
	c.mu.Lock()
	p := c.pipeline
	c.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

// IsRetrieving reports whether the current query may still deliver pages
func (c *Communication) IsRetrieving() bool {
	c.mu.Lock()
	p := c.pipeline
	c.mu.Unlock()
	return p != nil && p.IsRetrieving()
}

// RetrievalError returns the fetch error that ended the current retrieval
func (c *Communication) RetrievalError() error {
	c.mu.Lock()
	p := c.pipeline
	c.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Err()
}

// Disconnect stops retrieval and ends the session
func (c *Communication) Disconnect(ctx context.Context) error {
	c.queryMu.Lock()
	defer c.queryMu.Unlock()

	c.stopAndWait()
	return c.conn.Disconnect(ctx)
}

// stopAndWait stops the current pipeline and waits for its producer so the
// executor is idle before it is reused or closed. Callers hold queryMu.
func (c *Communication) stopAndWait() {
	c.mu.Lock()
	p := c.pipeline
	c.pipeline = nil
	c.mu.Unlock()
	if p == nil {
		return
	}
	p.Stop()
	_ = p.Wait()
}

func (c *Communication) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}
