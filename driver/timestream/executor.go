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

package timestream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/timestreamquery"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"tsodbc/platform/driver/attributes"
	"tsodbc/platform/driver/auth"
	"tsodbc/platform/driver/base"
)

type queryAPI interface {
	Query(ctx context.Context, params *timestreamquery.QueryInput, optFns ...func(*timestreamquery.Options)) (*timestreamquery.QueryOutput, error)
	CancelQuery(ctx context.Context, params *timestreamquery.CancelQueryInput, optFns ...func(*timestreamquery.Options)) (*timestreamquery.CancelQueryOutput, error)
}

// Executor runs SQL on Amazon Timestream and pages through results with
// NextToken
type Executor struct {
	client  queryAPI
	maxRows int32
	logger  *log.Logger

	mu     sync.Mutex
	active map[string]*queryHandle
	closed bool
}

type queryHandle struct {
	id          string
	clientToken string
	sql         string

	mu        sync.Mutex
	pending   *timestreamquery.QueryOutput
	next      *string
	done      bool
	delivered bool
}

func (h *queryHandle) ID() string { return h.id }

// NewExecutor creates an Executor signing requests with creds. creds stay
// owned by the caller; wiping them stops further requests.
func NewExecutor(creds *auth.Credentials, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[TS_QUERY] ", log.LstdFlags)
	}

	httpClient := awshttp.NewBuildableClient().
		WithTimeout(opts.RequestTimeout).
		WithDialerOptions(func(d *net.Dialer) {
			if opts.ConnectionTimeout > 0 {
				d.Timeout = opts.ConnectionTimeout
			}
		})

	region := opts.Region
	if region == "" {
		region = auth.DefaultRegion
	}
	tsOpts := timestreamquery.Options{
		Region:      region,
		Credentials: creds.Provider(),
		HTTPClient:  httpClient,
	}
	if opts.MaxRetries > 0 {
		tsOpts.RetryMaxAttempts = opts.MaxRetries
	}
	if opts.Endpoint != "" {
		tsOpts.BaseEndpoint = aws.String(opts.Endpoint)
		tsOpts.EndpointDiscovery.EnableEndpointDiscovery = aws.EndpointDiscoveryDisabled
	}

	return newExecutor(timestreamquery.New(tsOpts), opts.MaxRows, logger)
}

func newExecutor(client queryAPI, maxRows int32, logger *log.Logger) *Executor {
	return &Executor{
		client:  client,
		maxRows: maxRows,
		logger:  logger,
		active:  make(map[string]*queryHandle),
	}
}

// Factory builds an Executor from connection attributes. Its signature
// matches session.ExecutorFactory.
func Factory(ctx context.Context, attrs *attributes.Attributes, creds *auth.Credentials) (base.QueryExecutor, error) {
	opts, err := OptionsFromAttributes(attrs)
	if err != nil {
		return nil, err
	}
	if !creds.Valid() {
		return nil, base.NewError(base.KindNotConnected, "NewExecutor", "no credentials for the query service", nil)
	}
	return NewExecutor(creds, opts), nil
}

// ExecuteQuery submits sql and waits for the first page. Syntax and
// permission errors surface here.
func (e *Executor) ExecuteQuery(ctx context.Context, sql string) (base.QueryHandle, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, base.NewError(base.KindUpstreamFetchFailed, "ExecuteQuery", "query text is empty", nil)
	}
	if err := e.checkOpen("ExecuteQuery"); err != nil {
		return nil, err
	}

	h := &queryHandle{clientToken: uuid.NewString(), sql: sql}
	out, err := e.query(ctx, h, nil)
	if err != nil {
		return nil, upstreamError("ExecuteQuery", err)
	}
	h.id = aws.ToString(out.QueryId)
	if h.id == "" {
		h.id = h.clientToken
	}
	h.pending = out

	e.mu.Lock()
	e.active[h.id] = h
	e.mu.Unlock()
	return h, nil
}

// FetchNextPage returns the next non-empty page or io.EOF. Empty pages the
// service returns while a query is still running are skipped.
func (e *Executor) FetchNextPage(ctx context.Context, qh base.QueryHandle) (*base.Page, error) {
	h, ok := qh.(*queryHandle)
	if !ok {
		return nil, base.NewError(base.KindUpstreamFetchFailed, "FetchNextPage",
			fmt.Sprintf("foreign query handle %T", qh), nil)
	}
	if err := e.checkOpen("FetchNextPage"); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		if out := h.pending; out != nil {
			h.pending = nil
			h.next = out.NextToken
			h.done = out.NextToken == nil
			// A query without rows still reports its columns once.
			if len(out.Rows) > 0 || (h.done && !h.delivered) {
				h.delivered = true
				return convertPage(out), nil
			}
		}
		if h.done {
			e.forget(h.id)
			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := e.query(ctx, h, h.next)
		if err != nil {
			return nil, upstreamError("FetchNextPage", err)
		}
		h.pending = out
	}
}

func (e *Executor) query(ctx context.Context, h *queryHandle, next *string) (*timestreamquery.QueryOutput, error) {
	input := &timestreamquery.QueryInput{
		QueryString: aws.String(h.sql),
		ClientToken: aws.String(h.clientToken),
		NextToken:   next,
	}
	if e.maxRows > 0 {
		input.MaxRows = aws.Int32(e.maxRows)
	}
	return e.client.Query(ctx, input)
}

// Cancel asks the service to stop a running query
func (e *Executor) Cancel(ctx context.Context, qh base.QueryHandle) error {
	h, ok := qh.(*queryHandle)
	if !ok {
		return nil
	}
	h.mu.Lock()
	finished := h.done
	h.mu.Unlock()
	e.forget(h.id)
	if finished {
		return nil
	}
	_, err := e.client.CancelQuery(ctx, &timestreamquery.CancelQueryInput{QueryId: aws.String(h.id)})
	if err != nil {
		return upstreamError("CancelQuery", err)
	}
	return nil
}

// Close cancels unfinished queries and rejects further calls
func (e *Executor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	handles := make([]*queryHandle, 0, len(e.active))
	for _, h := range e.active {
		handles = append(handles, h)
	}
	e.active = make(map[string]*queryHandle)
	e.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if _, err := e.client.CancelQuery(context.Background(), &timestreamquery.CancelQueryInput{QueryId: aws.String(h.id)}); err != nil {
			e.logger.Printf("Cancel of query %s on close failed: %v", h.id, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) checkOpen(op string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return base.NewError(base.KindNotConnected, op, "executor is closed", nil)
	}
	return nil
}

func (e *Executor) forget(id string) {
	e.mu.Lock()
	delete(e.active, id)
	e.mu.Unlock()
}

// upstreamError keeps the service's error message verbatim
func upstreamError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return base.NewError(base.KindUpstreamFetchFailed, op, apiErr.ErrorMessage(), err)
	}
	return base.NewError(base.KindUpstreamFetchFailed, op, err.Error(), err)
}
