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
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"tsodbc/platform/driver/attributes"
	"tsodbc/platform/driver/auth"
	"tsodbc/platform/driver/communication"
	"tsodbc/platform/driver/config"
	"tsodbc/platform/driver/session"
	"tsodbc/platform/driver/timestream"
	"tsodbc/platform/shared/logger"
)

const envConnection = "TSODBC_CONNECTION"

// connectionFlags are shared by every command that opens a connection
type connectionFlags struct {
	conn          string
	dsnFile       string
	logLevel      string
	secretsRegion string
	oktaSessions  bool
	sessionsRedis string
}

func (f *connectionFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.conn, "conn", "c", "", "Connection string (default $"+envConnection+")")
	pf.StringVar(&f.dsnFile, "dsn-file", "", "YAML data source registry (default $"+config.EnvDSNFile+")")
	pf.StringVar(&f.logLevel, "log-level", "WARN", "Driver log level: DEBUG, INFO, WARN, ERROR or OFF")
	pf.StringVar(&f.secretsRegion, "secrets-region", "", "Region for secretsmanager: references")
	pf.BoolVar(&f.oktaSessions, "okta-sessions", false, "Reuse Okta sessions through the OS keyring")
	pf.StringVar(&f.sessionsRedis, "okta-sessions-redis", "", "Share Okta sessions through Redis (redis://host:port/db)")
}

func (f *connectionFlags) connectionString() (string, error) {
	raw := f.conn
	if raw == "" {
		raw = os.Getenv(envConnection)
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("--conn or %s is required", envConnection)
	}
	return raw, nil
}

// newFacade wires the driver with the Timestream executor and whatever
// configuration sources are available
func (f *connectionFlags) newFacade(ctx context.Context) (*communication.Communication, error) {
	log := logger.New("tsquery")
	log.SetLevel(logger.ParseLevel(f.logLevel, logger.WARN))

	registry, err := f.registry()
	if err != nil {
		return nil, err
	}

	var secrets config.SecretsManager
	if sm, err := config.NewAWSSecretsManager(ctx, config.AWSSecretsManagerOptions{
		Region:   f.secretsRegion,
		CacheTTL: 5 * time.Minute,
	}); err != nil {
		pterm.Warning.Printfln("Secrets Manager unavailable, secret references will fail: %v", err)
	} else {
		secrets = sm
	}

	var sessions *auth.SessionCache
	switch {
	case f.sessionsRedis != "":
		if sessions, err = auth.OpenRedisSessionCache(ctx, f.sessionsRedis, 0); err != nil {
			return nil, err
		}
	case f.oktaSessions:
		if sessions, err = auth.OpenSessionCache(); err != nil {
			pterm.Warning.Printfln("OS keyring unavailable, Okta sessions will not be reused: %v", err)
		}
	}

	return communication.New(communication.Options{
		Session: session.Options{
			Resolver:        auth.NewResolver(auth.ResolverOptions{OktaSessions: sessions}),
			ExecutorFactory: timestream.Factory,
			DSNRegistry:     registry,
			Secrets:         secrets,
			Defaults:        config.LoadFromEnv(config.DefaultEnvPrefix),
			Logger:          log,
		},
	}), nil
}

func (f *connectionFlags) registry() (*config.DSNRegistry, error) {
	path := f.dsnFile
	if path == "" {
		path = config.DSNFileFromEnv()
	}
	if path == "" {
		return nil, nil
	}
	r, err := config.NewDSNRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load data sources: %w", err)
	}
	return r, nil
}

// connect opens a facade and sets it up, returning a descriptive error when
// the connection is not Ok
func (f *connectionFlags) connect(ctx context.Context) (*communication.Communication, error) {
	raw, err := f.connectionString()
	if err != nil {
		return nil, err
	}
	comm, err := f.newFacade(ctx)
	if err != nil {
		return nil, err
	}

	pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Connection: ") +
		pterm.NewStyle(pterm.FgLightBlue).Sprint(attributes.MaskRaw(raw)))
	if !comm.Setup(ctx, raw) {
		return nil, fmt.Errorf("connection %s: %w", comm.GetStatus(), comm.LastError())
	}
	return comm, nil
}

// pingCmd checks that a connection string authenticates
func pingCmd(flags *connectionFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Authenticate and report the connection status",
		RunE: func(cmd *cobra.Command, args []string) error {
			comm, err := flags.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer comm.Disconnect(context.Background())

			conn := comm.Connection()
			pterm.Success.Printfln("Connected (%s, auth mode %s)", comm.GetStatus(), conn.Mode())
			pterm.Println("   Attributes: " + conn.Attributes().Redacted())
			return nil
		},
	}
}
