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

package drivertest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"tsodbc/platform/driver/base"
)

// Handle is the QueryHandle returned by MockExecutor
type Handle struct {
	id  string
	SQL string
}

// ID implements base.QueryHandle
func (h *Handle) ID() string { return h.id }

// ExecuteCall records an ExecuteQuery call
type ExecuteCall struct {
	SQL  string
	Time time.Time
}

// MockExecutor provides a scripted base.QueryExecutor for tests. Every query
// returns the configured pages in order, then io.EOF.
type MockExecutor struct {
	// Mock responses
	pages        []*base.Page
	executeError error
	fetchError   error
	failAfter    int
	closeError   error

	// Hooks for custom behavior
	onFetch func(ctx context.Context, h base.QueryHandle, index int) (*base.Page, error)

	// Call tracking
	executeCalls []ExecuteCall
	fetchCalls   int
	closeCalls   int
	cursors      map[string]int
	nextID       int

	mu sync.Mutex
}

// NewMockExecutor creates an executor serving pages
func NewMockExecutor(pages ...*base.Page) *MockExecutor {
	return &MockExecutor{
		pages:     pages,
		failAfter: -1,
		cursors:   make(map[string]int),
	}
}

// ExecuteQuery implements base.QueryExecutor
func (m *MockExecutor) ExecuteQuery(ctx context.Context, sql string) (base.QueryHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executeCalls = append(m.executeCalls, ExecuteCall{SQL: sql, Time: time.Now()})
	if m.executeError != nil {
		return nil, m.executeError
	}
	m.nextID++
	h := &Handle{id: fmt.Sprintf("mock-query-%d", m.nextID), SQL: sql}
	m.cursors[h.id] = 0
	return h, nil
}

// FetchNextPage implements base.QueryExecutor
func (m *MockExecutor) FetchNextPage(ctx context.Context, h base.QueryHandle) (*base.Page, error) {
	m.mu.Lock()
	m.fetchCalls++
	index := m.cursors[h.ID()]
	m.cursors[h.ID()] = index + 1
	hook := m.onFetch
	m.mu.Unlock()

	if hook != nil {
		return hook(ctx, h, index)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter >= 0 && index >= m.failAfter {
		return nil, m.fetchError
	}
	if index >= len(m.pages) {
		return nil, io.EOF
	}
	return m.pages[index], nil
}

// Close implements base.QueryExecutor
func (m *MockExecutor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	return m.closeError
}

// SetPages replaces the scripted pages
func (m *MockExecutor) SetPages(pages ...*base.Page) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = pages
}

// SetExecuteError makes ExecuteQuery fail
func (m *MockExecutor) SetExecuteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executeError = err
}

// SetFetchError makes fetches fail with err once n pages were served
func (m *MockExecutor) SetFetchError(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.fetchError = err
}

// SetCloseError makes Close fail
func (m *MockExecutor) SetCloseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeError = err
}

// SetOnFetch sets a custom fetch handler. index counts fetches per query.
func (m *MockExecutor) SetOnFetch(fn func(ctx context.Context, h base.QueryHandle, index int) (*base.Page, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFetch = fn
}

// GetExecuteCalls returns all execute calls
func (m *MockExecutor) GetExecuteCalls() []ExecuteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]ExecuteCall, len(m.executeCalls))
	copy(calls, m.executeCalls)
	return calls
}

// GetFetchCalls returns the number of FetchNextPage calls
func (m *MockExecutor) GetFetchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

// GetCloseCalls returns the number of Close calls
func (m *MockExecutor) GetCloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// BlockingFetch returns a fetch hook that serves pages but waits on gate
// before each one, so tests control when the producer advances. It honours
// ctx cancellation while waiting.
func BlockingFetch(gate <-chan struct{}, pages ...*base.Page) func(context.Context, base.QueryHandle, int) (*base.Page, error) {
	return func(ctx context.Context, _ base.QueryHandle, index int) (*base.Page, error) {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if index >= len(pages) {
			return nil, io.EOF
		}
		return pages[index], nil
	}
}

// EndlessFetch returns a fetch hook that never runs out of pages
func EndlessFetch(columns ...string) func(context.Context, base.QueryHandle, int) (*base.Page, error) {
	return func(ctx context.Context, _ base.QueryHandle, index int) (*base.Page, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := make([]string, len(columns))
		for i := range row {
			row[i] = fmt.Sprintf("%d", index)
		}
		return NewPage(columns, row), nil
	}
}
