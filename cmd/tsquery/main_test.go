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

package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsodbc/platform/driver/base"
	"tsodbc/platform/driver/drivertest"
)

func TestMetricsHandler(t *testing.T) {
	h := metricsHandler()

	tests := []struct {
		method string
		path   string
		status int
		body   string
	}{
		{http.MethodGet, "/health", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/prometheus", http.StatusOK, "tsodbc_"},
		{http.MethodPost, "/prometheus", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/missing", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
		})
	}
}

func TestRenderPage(t *testing.T) {
	page := drivertest.NewPage([]string{"host", "cpu"}, []string{"web-1", "0.25"})
	page.Rows = append(page.Rows, []*string{nil, nil})

	out, err := renderPage(base.NewRowsResult(page))
	require.NoError(t, err)
	assert.Contains(t, out, "host")
	assert.Contains(t, out, "web-1")
	assert.Contains(t, out, "NULL")
}

func TestConnectionString(t *testing.T) {
	t.Setenv(envConnection, "Auth=IAM;Region=eu-west-1")

	f := &connectionFlags{}
	raw, err := f.connectionString()
	require.NoError(t, err)
	assert.Equal(t, "Auth=IAM;Region=eu-west-1", raw)

	f.conn = "DSN=analytics"
	raw, err = f.connectionString()
	require.NoError(t, err)
	assert.Equal(t, "DSN=analytics", raw)

	t.Setenv(envConnection, "")
	_, err = (&connectionFlags{}).connectionString()
	assert.Error(t, err)
}
