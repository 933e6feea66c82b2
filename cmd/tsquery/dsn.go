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
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"tsodbc/platform/driver/config"
)

// dsnCmd returns the dsn subcommand for inspecting the data source registry
func dsnCmd(flags *connectionFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dsn",
		Short: "Inspect configured data sources",
	}
	cmd.AddCommand(dsnListCmd(flags))
	cmd.AddCommand(dsnExampleCmd())
	return cmd
}

func dsnListCmd(flags *connectionFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List data sources in the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := flags.registry()
			if err != nil {
				return err
			}
			if registry == nil {
				return fmt.Errorf("no data source registry; pass --dsn-file or set %s", config.EnvDSNFile)
			}

			data := pterm.TableData{{"Name", "Attributes"}}
			for _, name := range registry.Names() {
				attrs, _ := registry.Lookup(name)
				data = append(data, []string{name, attrs.Redacted()})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
}

func dsnExampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example",
		Short: "Print an example data source registry",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(config.GenerateExampleDSNFile())
		},
	}
}
