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

// Package main implements tsquery, a command-line front end for running
// Timestream queries through the driver core.
//
// Usage:
//
//	tsquery query --conn "Auth=IAM;Region=us-east-1" "SELECT 1"
//	tsquery ping --conn "DSN=analytics"
//	tsquery dsn list
//
// Environment Variables:
//
//	TSODBC_<ATTRIBUTE> - default connection attributes, e.g. TSODBC_REGION
//	TSODBC_DSN_FILE - YAML data source registry
//	TSODBC_CONNECTION - connection string used when --conn is not given
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "tsquery",
		Short:   "Timestream query CLI",
		Long:    `tsquery connects to Amazon Timestream with ODBC-style connection strings and runs queries.`,
		Version: version,
	}

	flags := &connectionFlags{}
	flags.register(rootCmd)

	rootCmd.AddCommand(queryCmd(flags))
	rootCmd.AddCommand(pingCmd(flags))
	rootCmd.AddCommand(dsnCmd(flags))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
