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
	"fmt"
	"log"
	"strings"
	"time"

	"tsodbc/platform/driver/attributes"
	"tsodbc/platform/driver/auth"
	"tsodbc/platform/driver/base"
)

// Defaults applied when the attributes leave a setting out
const (
	DefaultRequestTimeout    = 3 * time.Minute
	DefaultConnectionTimeout = 10 * time.Second
	// MaxRowsLimit is the largest page size the query API accepts.
	MaxRowsLimit = 1000
)

// Options configures an Executor
type Options struct {
	Region string
	// Endpoint replaces endpoint discovery with a fixed URL.
	Endpoint string
	// MaxRetries caps SDK attempts per request. 0 keeps the SDK default.
	MaxRetries int
	// MaxRows is the page size requested from the service. 0 lets the
	// service choose.
	MaxRows           int32
	RequestTimeout    time.Duration
	ConnectionTimeout time.Duration
	Logger            *log.Logger
}

// OptionsFromAttributes reads Region, EndpointOverride, MaxRetryCountClient,
// MaxRowsPerPage, RequestTimeout and ConnectionTimeout. Timeouts are in
// milliseconds.
func OptionsFromAttributes(attrs *attributes.Attributes) (Options, error) {
	opts := Options{
		Region:   strings.TrimSpace(attrs.Get(attributes.KeyRegion)),
		Endpoint: strings.TrimSpace(attrs.Get(attributes.KeyEndpointOverride)),
	}
	if opts.Region == "" {
		opts.Region = auth.DefaultRegion
	}

	retries, err := attrs.Int(attributes.KeyMaxRetryCountClient, 0)
	if err != nil {
		return opts, err
	}
	if retries < 0 {
		return opts, malformed(attributes.KeyMaxRetryCountClient, retries)
	}
	opts.MaxRetries = retries

	rows, err := attrs.Int(attributes.KeyMaxRowsPerPage, 0)
	if err != nil {
		return opts, err
	}
	if rows < 0 || rows > MaxRowsLimit {
		return opts, malformed(attributes.KeyMaxRowsPerPage, rows)
	}
	opts.MaxRows = int32(rows)

	reqMS, err := attrs.Int(attributes.KeyRequestTimeout, int(DefaultRequestTimeout/time.Millisecond))
	if err != nil {
		return opts, err
	}
	connMS, err := attrs.Int(attributes.KeyConnectionTimeout, int(DefaultConnectionTimeout/time.Millisecond))
	if err != nil {
		return opts, err
	}
	if reqMS < 0 {
		return opts, malformed(attributes.KeyRequestTimeout, reqMS)
	}
	if connMS < 0 {
		return opts, malformed(attributes.KeyConnectionTimeout, connMS)
	}
	opts.RequestTimeout = time.Duration(reqMS) * time.Millisecond
	opts.ConnectionTimeout = time.Duration(connMS) * time.Millisecond
	return opts, nil
}

func malformed(key string, v int) error {
	return base.NewError(base.KindMalformedAttributes, "ExecutorOptions",
		fmt.Sprintf("attribute %s has out-of-range value %d", key, v), nil)
}
