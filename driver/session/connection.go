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

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tsodbc/platform/driver/attributes"
	"tsodbc/platform/driver/auth"
	"tsodbc/platform/driver/base"
	"tsodbc/platform/driver/config"
	"tsodbc/platform/driver/telemetry"
	"tsodbc/platform/shared/logger"
)

// CredentialResolver turns attributes into service credentials.
// *auth.Resolver implements it.
type CredentialResolver interface {
	Validate(attrs *attributes.Attributes) (auth.AuthMode, error)
	Resolve(ctx context.Context, attrs *attributes.Attributes) (*auth.Credentials, error)
}

// ExecutorFactory builds the query executor for an established connection
type ExecutorFactory func(ctx context.Context, attrs *attributes.Attributes, creds *auth.Credentials) (base.QueryExecutor, error)

// Options configures a Connection
type Options struct {
	Resolver        CredentialResolver
	ExecutorFactory ExecutorFactory
	// DSNRegistry, when set, supplies defaults for the DSN attribute.
	DSNRegistry *config.DSNRegistry
	// Secrets resolves secretsmanager: references in attribute values.
	Secrets config.SecretsManager
	// Defaults sit under everything else, e.g. attributes from the
	// environment.
	Defaults *attributes.Attributes
	Logger   *logger.Logger
}

// Connection owns one session's attributes, credentials and executor, and
// tracks its ConnectionStatus
type Connection struct {
	id       string
	resolver CredentialResolver
	factory  ExecutorFactory
	registry *config.DSNRegistry
	secrets  config.SecretsManager
	defaults *attributes.Attributes
	logger   *logger.Logger
	now      func() time.Time

	// opMu serialises Setup and Disconnect; mu guards the fields below.
	opMu sync.Mutex
	mu   sync.RWMutex

	status  base.ConnectionStatus
	mode    auth.AuthMode
	attrs   *attributes.Attributes
	creds   *auth.Credentials
	exec    base.QueryExecutor
	lastErr error
}

// New creates a Connection in the Bad state
func New(opts Options) *Connection {
	log := opts.Logger
	if log == nil {
		log = logger.New("tsodbc")
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = auth.NewResolver(auth.ResolverOptions{})
	}
	return &Connection{
		id:       uuid.NewString(),
		resolver: resolver,
		factory:  opts.ExecutorFactory,
		registry: opts.DSNRegistry,
		secrets:  opts.Secrets,
		defaults: opts.Defaults,
		logger:   log,
		now:      time.Now,
		status:   base.StatusBad,
	}
}

// ID returns the connection id used in logs
func (c *Connection) ID() string { return c.id }

// Setup tears down any previous session and connects with raw. Attribute
// errors leave the connection Bad; authentication and executor errors
// leave it Needed.
func (c *Connection) Setup(ctx context.Context, raw string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.teardown(base.StatusBad)
	timer := telemetry.NewOperationTimer("setup")
	c.logger.Debug(c.id, "", "Connection setup started", map[string]interface{}{
		"attributes": attributes.MaskRaw(raw),
	})

	attrs, mode, err := c.prepare(ctx, raw)
	if err != nil {
		return c.fail(base.StatusBad, "Connection attributes rejected", err)
	}

	c.setStatus(base.StatusNeeded)
	creds, err := c.resolver.Resolve(ctx, attrs)
	if err != nil {
		return c.fail(base.StatusNeeded, "Authentication failed", err)
	}

	if c.factory == nil {
		creds.Wipe()
		return c.fail(base.StatusNeeded, "No query executor configured",
			base.NewError(base.KindConfigurationFailed, "Setup", "no query executor factory configured", nil))
	}
	exec, err := c.factory(ctx, attrs, creds)
	if err != nil {
		creds.Wipe()
		return c.fail(base.StatusNeeded, "Query executor unavailable", err)
	}

	kept := attrs.Without(attributes.SecretKeys...)
	c.mu.Lock()
	c.status = base.StatusOk
	c.mode = mode
	c.attrs = kept
	c.creds = creds
	c.exec = exec
	c.lastErr = nil
	c.mu.Unlock()

	fields := map[string]interface{}{
		"auth_mode":  mode.String(),
		"source":     creds.Source,
		"attributes": kept.Redacted(),
	}
	if creds.CanExpire() {
		fields["expires"] = creds.Expires.UTC().Format(time.RFC3339)
	}
	c.logger.InfoWithDuration(c.id, "", "Connection established",
		float64(timer.Stop())/float64(time.Millisecond), fields)
	return nil
}

// prepare parses raw, applies defaults, the DSN registry and secret
// references, then validates. No identity provider is contacted.
func (c *Connection) prepare(ctx context.Context, raw string) (*attributes.Attributes, auth.AuthMode, error) {
	parsed, err := attributes.Parse(raw)
	if err != nil {
		return nil, 0, err
	}
	if lvl := parsed.Get(attributes.KeyLogLevel); lvl != "" {
		c.logger.SetLevel(logger.ParseLevel(lvl, c.logger.Level()))
	}

	attrs := parsed
	if c.registry != nil {
		if attrs, err = c.registry.Expand(attrs); err != nil {
			return nil, 0, err
		}
	}
	if c.defaults != nil {
		attrs = c.defaults.Merge(attrs)
	}
	if attrs, err = config.ResolveSecretReferences(ctx, c.secrets, attrs); err != nil {
		return nil, 0, err
	}

	mode, err := c.resolver.Validate(attrs)
	if err != nil {
		return nil, mode, err
	}
	return attrs, mode, nil
}

func (c *Connection) fail(status base.ConnectionStatus, msg string, err error) error {
	c.mu.Lock()
	c.status = status
	c.lastErr = err
	c.mu.Unlock()

	c.logger.ErrorWithKind(c.id, "", msg, string(base.KindOf(err)), err, map[string]interface{}{
		"status": status.String(),
	})
	return err
}

func (c *Connection) setStatus(s base.ConnectionStatus) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// teardown releases the executor and wipes credentials. Callers hold opMu.
func (c *Connection) teardown(next base.ConnectionStatus) error {
	c.mu.Lock()
	exec, creds := c.exec, c.creds
	c.exec, c.creds, c.attrs = nil, nil, nil
	c.status = next
	c.mu.Unlock()

	var err error
	if exec != nil {
		if err = exec.Close(); err != nil {
			c.logger.Warn(c.id, "", "Query executor close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	creds.Wipe()
	return err
}

// Disconnect ends the session. The connection is Bad afterwards.
func (c *Connection) Disconnect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	wasOk := c.Status() == base.StatusOk
	err := c.teardown(base.StatusBad)
	if wasOk {
		c.logger.Info(c.id, "", "Connection closed", nil)
	}
	return err
}

// Status returns the current state. It never blocks on Setup.
func (c *Connection) Status() base.ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Executor returns the query executor of an Ok connection
func (c *Connection) Executor() (base.QueryExecutor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.status != base.StatusOk || c.exec == nil {
		return nil, base.NewError(base.KindNotConnected, "Executor",
			"connection is "+c.status.String(), nil)
	}
	return c.exec, nil
}

// Mode returns the authentication mode of the current session
func (c *Connection) Mode() auth.AuthMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Attributes returns the session's attributes without secrets, or nil when
// not connected
func (c *Connection) Attributes() *attributes.Attributes {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.attrs == nil {
		return nil
	}
	return c.attrs.Clone()
}

// CredentialsExpired reports whether temporary credentials have expired.
// Static credentials never expire.
func (c *Connection) CredentialsExpired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds.Expired(c.now())
}

// LastError returns the error of the most recent failed Setup
func (c *Connection) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Logger returns the connection's logger
func (c *Connection) Logger() *logger.Logger { return c.logger }
