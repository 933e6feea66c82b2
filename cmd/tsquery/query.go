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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"tsodbc/platform/driver/base"
	"tsodbc/platform/driver/communication"
)

// queryCmd runs one statement and prints each page as a table
func queryCmd(flags *connectionFlags) *cobra.Command {
	var encoding string
	var maxPages int
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "query SQL",
		Short: "Run a query and print its results",
		Long: `Run a query and print its results page by page.

Ctrl-C stops result retrieval and disconnects.

Examples:
  tsquery query -c "Auth=IAM;Region=us-east-1" "SELECT * FROM db.cpu LIMIT 10"
  tsquery query -c "DSN=analytics" --encoding WIN1252 "SHOW DATABASES"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				srv := startMetricsServer(metricsAddr)
				defer srv.Shutdown(context.Background())
			}

			comm, err := flags.connect(ctx)
			if err != nil {
				return err
			}
			defer comm.Disconnect(context.Background())

			if encoding != "" && !comm.SetClientEncoding(encoding) {
				return fmt.Errorf("%w (supported: %v)", comm.LastError(), communication.SupportedEncodings())
			}
			return runQuery(ctx, comm, args[0], maxPages)
		},
	}

	cmd.Flags().StringVar(&encoding, "encoding", "", "Client encoding for output: UTF8, UTF16LE, LATIN1 or WIN1252")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Stop after this many pages (0 = all)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the query runs")
	return cmd
}

func runQuery(ctx context.Context, comm *communication.Communication, sql string, maxPages int) error {
	if err := comm.ExecuteQuery(ctx, sql); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		comm.StopResultRetrieval()
	}()

	pages, rows := 0, 0
	for {
		r := comm.PopResult()
		if r == nil {
			break
		}
		if r.Kind == base.ResultError {
			return r.Err
		}
		pages++
		rows += r.RowCount()
		if err := printPage(comm, r); err != nil {
			return err
		}
		if maxPages > 0 && pages >= maxPages {
			comm.StopResultRetrieval()
			break
		}
	}

	if ctx.Err() != nil {
		pterm.Warning.Println("Query cancelled")
	}
	if err := comm.RetrievalError(); err != nil {
		return err
	}
	pterm.Info.Printfln("%d rows in %d pages", rows, pages)
	return nil
}

// printPage renders a page as a table in the client encoding
func printPage(comm *communication.Communication, r *base.PendingResult) error {
	out, err := renderPage(r)
	if err != nil {
		return err
	}
	b, err := comm.Encode(out)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(b)
	return err
}

func renderPage(r *base.PendingResult) (string, error) {
	data := make(pterm.TableData, 0, len(r.Rows)+1)
	header := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = c.Name
	}
	data = append(data, header)
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = *v
			}
		}
		data = append(data, cells)
	}

	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return "", err
	}
	return s + "\n", nil
}
