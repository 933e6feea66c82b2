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

/*
Package logger provides structured JSON logging for the driver.

# Overview

Each log entry is a single JSON line containing:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name
  - Instance ID and container name
  - Connection ID (one per driver connection)
  - Query ID (one per executed statement, optional)
  - Custom fields

Entries go to stderr by default because the hosting tool owns stdout.

# Usage

	log := logger.New("tsodbc")
	log.SetLevel(logger.ParseLevel(attrs.Get("LogLevel"), logger.WARN))

	log.Info(connID, "", "Setup completed", map[string]interface{}{
	    "auth_mode": "SamlAzureAd",
	})

	log.ErrorWithKind(connID, queryID, "Fetch failed", "UpstreamFetchFailed", err, nil)

Secrets never belong in fields. Connection strings must go through
attributes.MaskRaw or Attributes.Redacted before they are logged.

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
