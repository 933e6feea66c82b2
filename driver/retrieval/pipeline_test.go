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
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsodbc/platform/driver/base"
	"tsodbc/platform/driver/drivertest"
	"tsodbc/platform/shared/logger"
)

func startPipeline(t *testing.T, exec *drivertest.MockExecutor, opts Options) *Pipeline {
	t.Helper()
	h, err := exec.ExecuteQuery(context.Background(), "SELECT 1")
	require.NoError(t, err)
	p := NewPipeline(opts)
	require.NoError(t, p.Start(context.Background(), exec, h))
	t.Cleanup(p.Stop)
	return p
}

func TestPipeline_DeliversPagesInOrder(t *testing.T) {
	exec := drivertest.NewMockExecutor(
		drivertest.NewPage([]string{"host"}, []string{"a"}),
		drivertest.NewPage([]string{"host"}, []string{"b"}, []string{"c"}),
		drivertest.NewPage([]string{"host"}, []string{"d"}),
	)
	p := startPipeline(t, exec, Options{PollInterval: 10 * time.Millisecond})

	var got []string
	for r := p.PopResult(); r != nil; r = p.PopResult() {
		require.Equal(t, base.ResultRows, r.Kind)
		assert.Equal(t, 1, r.FieldCount)
		for _, row := range r.Rows {
			got = append(got, drivertest.Cell(row[0]))
		}
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
	assert.NoError(t, p.Wait())
	assert.NoError(t, p.Err())
	assert.False(t, p.IsRetrieving())
}

func TestPipeline_ProducerStaysAtMostCapacityAhead(t *testing.T) {
	exec := drivertest.NewMockExecutor()
	exec.SetOnFetch(drivertest.EndlessFetch("n"))
	p := startPipeline(t, exec, Options{PollInterval: 10 * time.Millisecond})

	require.Eventually(t, func() bool { return p.Queued() == DefaultCapacity }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	// Two pages queued plus one fetched and waiting to be pushed.
	assert.Equal(t, DefaultCapacity, p.Queued())
	assert.LessOrEqual(t, exec.GetFetchCalls(), DefaultCapacity+1)

	r := p.PopResult()
	require.NotNil(t, r)
	assert.Equal(t, "0", drivertest.Cell(r.Rows[0][0]))
}

func TestPipeline_StopReleasesBlockedPop(t *testing.T) {
	gate := make(chan struct{})
	exec := drivertest.NewMockExecutor()
	exec.SetOnFetch(drivertest.BlockingFetch(gate))
	p := startPipeline(t, exec, Options{PollInterval: time.Hour})

	popped := make(chan *base.PendingResult, 1)
	go func() { popped <- p.PopResult() }()

	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	p.Stop()

	select {
	case r := <-popped:
		assert.Nil(t, r)
		assert.Less(t, time.Since(start), time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("PopResult was not released by Stop")
	}

	// Later pops return immediately.
	start = time.Now()
	assert.Nil(t, p.PopResult())
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	// The in-flight fetch saw its context cancelled.
	assert.NoError(t, p.Wait())
	assert.NoError(t, p.Err())
}

func TestPipeline_StopDiscardsQueuedPages(t *testing.T) {
	exec := drivertest.NewMockExecutor()
	exec.SetOnFetch(drivertest.EndlessFetch("n"))
	p := startPipeline(t, exec, Options{})

	require.Eventually(t, func() bool { return p.Queued() == DefaultCapacity }, time.Second, 5*time.Millisecond)
	p.Stop()

	assert.Equal(t, 0, p.Queued())
	assert.Nil(t, p.PopResult())
	assert.NoError(t, p.Wait())

	// Stop is idempotent.
	p.Stop()
}

func TestPipeline_FetchErrorIsQueuedAfterPages(t *testing.T) {
	exec := drivertest.NewMockExecutor(
		drivertest.NewPage([]string{"c"}, []string{"1"}),
		drivertest.NewPage([]string{"c"}, []string{"2"}),
	)
	exec.SetFetchError(1, errors.New("ThrottlingException: Rate exceeded"))
	p := startPipeline(t, exec, Options{PollInterval: 10 * time.Millisecond})

	first := p.PopResult()
	require.NotNil(t, first)
	assert.Equal(t, base.ResultRows, first.Kind)

	failed := p.PopResult()
	require.NotNil(t, failed)
	assert.Equal(t, base.ResultError, failed.Kind)
	assert.True(t, errors.Is(failed.Err, base.ErrUpstreamFetchFailed))
	assert.Contains(t, failed.Err.Error(), "Rate exceeded")

	assert.Nil(t, p.PopResult())
	assert.True(t, errors.Is(p.Wait(), base.ErrUpstreamFetchFailed))
	assert.True(t, errors.Is(p.Err(), base.ErrUpstreamFetchFailed))
}

func TestPipeline_StartTwiceAndPopBeforeStart(t *testing.T) {
	p := NewPipeline(Options{})
	assert.Nil(t, p.PopResult())
	assert.NoError(t, p.Wait())

	err := p.Start(context.Background(), nil, nil)
	assert.True(t, errors.Is(err, base.ErrNotConnected))

	exec := drivertest.NewMockExecutor()
	h, _ := exec.ExecuteQuery(context.Background(), "SELECT 1")
	require.NoError(t, p.Start(context.Background(), exec, h))
	assert.Error(t, p.Start(context.Background(), exec, h))
	p.Stop()
}

func TestPipeline_LogsWithConnectionAndQueryIDs(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("tsodbc", &buf)
	log.SetLevel(logger.DEBUG)

	exec := drivertest.NewMockExecutor(drivertest.NewPage([]string{"c"}, []string{"1"}))
	p := startPipeline(t, exec, Options{Logger: log, ConnectionID: "conn-1", PollInterval: 10 * time.Millisecond})
	for p.PopResult() != nil {
	}
	require.NoError(t, p.Wait())

	out := buf.String()
	assert.Contains(t, out, `"connection_id":"conn-1"`)
	assert.Contains(t, out, `"query_id":"mock-query-1"`)
	assert.Contains(t, out, "Result retrieval completed")
}
