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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsodbc/platform/driver/base"
)

func rowsResult(n int) *base.PendingResult {
	return &base.PendingResult{Kind: base.ResultRows, FieldCount: n}
}

func TestResultQueue_ThirdPushBlocksUntilPop(t *testing.T) {
	q := NewResultQueue(0)
	require.Equal(t, DefaultCapacity, q.Cap())

	ctx := context.Background()
	require.NoError(t, q.Push(ctx, rowsResult(1)))
	require.NoError(t, q.Push(ctx, rowsResult(2)))

	pushed := make(chan error, 1)
	go func() { pushed <- q.Push(ctx, rowsResult(3)) }()

	select {
	case <-pushed:
		t.Fatal("third push should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	r, err := q.Pop(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, r.FieldCount)

	select {
	case err := <-pushed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("push was not released by pop")
	}
	assert.Equal(t, 2, q.Len())
}

func TestResultQueue_FIFO(t *testing.T) {
	q := NewResultQueue(2)
	ctx := context.Background()

	go func() {
		for i := 1; i <= 10; i++ {
			_ = q.Push(ctx, rowsResult(i))
		}
	}()

	for want := 1; want <= 10; want++ {
		r, err := q.Pop(time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, r.FieldCount)
	}
}

func TestResultQueue_PopTimeout(t *testing.T) {
	q := NewResultQueue(2)
	start := time.Now()
	_, err := q.Pop(20 * time.Millisecond)
	assert.ErrorIs(t, err, ErrPopTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestResultQueue_CloseReleasesWaiters(t *testing.T) {
	q := NewResultQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, rowsResult(1)))

	pushErr := make(chan error, 1)
	go func() { pushErr <- q.Push(ctx, rowsResult(2)) }()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-pushErr:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked push was not released")
	}

	_, err := q.Pop(time.Hour)
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.Equal(t, 0, q.Len())
	assert.True(t, q.Closed())

	// Idempotent.
	q.Close()
}

func TestResultQueue_PushHonoursContext(t *testing.T) {
	q := NewResultQueue(1)
	require.NoError(t, q.Push(context.Background(), rowsResult(1)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Push(ctx, rowsResult(2)), context.DeadlineExceeded)
}
