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

package base

import (
	"context"
	"io"
)

// ConnectionStatus is the externally visible state of a connection
type ConnectionStatus int

const (
	// StatusBad is the initial state and the state after Disconnect or an
	// attribute string that could not be parsed.
	StatusBad ConnectionStatus = iota
	// StatusNeeded means the attributes were usable but authentication or
	// connectivity failed; Setup may be retried.
	StatusNeeded
	// StatusOk means credentials were resolved and queries can run.
	StatusOk
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusBad:
		return "Bad"
	case StatusNeeded:
		return "Needed"
	case StatusOk:
		return "Ok"
	default:
		return "Unknown"
	}
}

// ResultKind tags what a PendingResult carries
type ResultKind int

const (
	ResultRows ResultKind = iota
	ResultError
)

func (k ResultKind) String() string {
	if k == ResultError {
		return "error"
	}
	return "rows"
}

// ColumnInfo describes one column of a result page
type ColumnInfo struct {
	Name string `json:"name"`
	// Type is the service scalar type name (VARCHAR, BIGINT, TIMESTAMP, ...).
	// Complex types are rendered as their textual form.
	Type string `json:"type"`
}

// Page is one page of rows returned by a QueryExecutor. A nil cell is SQL NULL.
type Page struct {
	Columns []ColumnInfo
	Rows    [][]*string
}

// PendingResult is one fetched page handed from the retrieval producer to the
// consumer. The consumer owns it after dequeue.
type PendingResult struct {
	Kind       ResultKind
	FieldCount int
	Columns    []ColumnInfo
	Rows       [][]*string
	// Err is set when Kind is ResultError.
	Err error
}

// NewRowsResult wraps a page as a PendingResult
func NewRowsResult(p *Page) *PendingResult {
	return &PendingResult{
		Kind:       ResultRows,
		FieldCount: len(p.Columns),
		Columns:    p.Columns,
		Rows:       p.Rows,
	}
}

// NewErrorResult creates the terminal error indicator for a failed fetch
func NewErrorResult(err error) *PendingResult {
	return &PendingResult{Kind: ResultError, Err: err}
}

// RowCount returns the number of rows in the result
func (r *PendingResult) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// QueryHandle identifies a running query on an executor
type QueryHandle interface {
	ID() string
}

// QueryExecutor runs SQL against the remote service and pages through its
// output. FetchNextPage returns io.EOF once the query has no more pages.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, sql string) (QueryHandle, error)
	FetchNextPage(ctx context.Context, h QueryHandle) (*Page, error)
	Close() error
}

// EndOfResults is returned by FetchNextPage when a query is exhausted.
var EndOfResults = io.EOF
