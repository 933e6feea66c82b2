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

package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tsodbc/platform/driver/base"
)

// Stop reasons recorded by RecordRetrievalStop
const (
	StopCompleted = "completed"
	StopCancelled = "cancelled"
	StopFailed    = "failed"
)

// Prometheus metrics for the driver core
var (
	promAuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsodbc_auth_attempts_total",
			Help: "Total number of credential resolutions by auth mode and outcome",
		},
		[]string{"mode", "outcome"},
	)
	promOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tsodbc_operation_duration_milliseconds",
			Help:    "Driver operation duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"operation"},
	)
	promPagesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tsodbc_pages_fetched_total",
			Help: "Total number of result pages fetched from the query service",
		},
	)
	promRowsFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tsodbc_rows_fetched_total",
			Help: "Total number of result rows fetched from the query service",
		},
	)
	promFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsodbc_fetch_errors_total",
			Help: "Total number of failed page fetches",
		},
		[]string{"error_type"},
	)
	promRetrievalStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsodbc_retrieval_stops_total",
			Help: "Total number of finished result retrievals by reason",
		},
		[]string{"reason"},
	)
	promBackpressureWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tsodbc_backpressure_wait_milliseconds",
			Help:    "Time the producer spent waiting for room in the result queue",
			Buckets: []float64{0.1, 1, 10, 50, 100, 500, 1000, 5000, 30000},
		},
	)
)

func init() {
	prometheus.MustRegister(promAuthAttempts)
	prometheus.MustRegister(promOperationDuration)
	prometheus.MustRegister(promPagesFetched)
	prometheus.MustRegister(promRowsFetched)
	prometheus.MustRegister(promFetchErrors)
	prometheus.MustRegister(promRetrievalStops)
	prometheus.MustRegister(promBackpressureWait)
}

// Outcome maps an error to a metric label: "success", the error kind, or
// "error" for errors outside the driver taxonomy.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	if kind := base.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

// RecordAuth counts one credential resolution attempt
func RecordAuth(mode string, err error) {
	promAuthAttempts.WithLabelValues(mode, Outcome(err)).Inc()
}

// RecordPage counts a fetched page and its rows
func RecordPage(rows int) {
	promPagesFetched.Inc()
	if rows > 0 {
		promRowsFetched.Add(float64(rows))
	}
}

// RecordFetchError counts a failed page fetch
func RecordFetchError(err error) {
	promFetchErrors.WithLabelValues(Outcome(err)).Inc()
}

// RecordRetrievalStop counts a finished retrieval
func RecordRetrievalStop(reason string) {
	promRetrievalStops.WithLabelValues(reason).Inc()
}

// ObserveBackpressure records how long a push waited for queue space
func ObserveBackpressure(d time.Duration) {
	promBackpressureWait.Observe(float64(d) / float64(time.Millisecond))
}

// OperationTimer times one driver operation
type OperationTimer struct {
	operation string
	start     time.Time
}

// NewOperationTimer starts a timer for operation
func NewOperationTimer(operation string) *OperationTimer {
	return &OperationTimer{operation: operation, start: time.Now()}
}

// Duration returns the elapsed time since the timer was started
func (t *OperationTimer) Duration() time.Duration {
	return time.Since(t.start)
}

// Stop records the elapsed time and returns it
func (t *OperationTimer) Stop() time.Duration {
	d := t.Duration()
	promOperationDuration.WithLabelValues(t.operation).Observe(float64(d) / float64(time.Millisecond))
	return d
}
