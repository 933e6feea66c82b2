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

package auth

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"tsodbc/platform/driver/attributes"
	"tsodbc/platform/driver/base"
	"tsodbc/platform/driver/telemetry"
)

// Strategy turns connection attributes into service credentials.
// Validate must not touch the network.
type Strategy interface {
	Validate(attrs *attributes.Attributes) error
	Resolve(ctx context.Context, attrs *attributes.Attributes) (*Credentials, error)
}

// ResolverOptions holds options for creating a Resolver
type ResolverOptions struct {
	// HTTPClient is used for identity provider calls. Defaults to a client
	// with a 30s timeout.
	HTTPClient *http.Client
	// AzureCredential backs the Azure AD integrated flow. Defaults to
	// azidentity.DefaultAzureCredential, created on first use.
	AzureCredential azcore.TokenCredential
	// AzureAuthority overrides https://login.microsoftonline.com.
	AzureAuthority string
	// OktaSessions enables Okta session reuse across connections.
	OktaSessions *SessionCache
	// HostValidation applies to IdpHost. Defaults to https only with private
	// addresses blocked.
	HostValidation *HostValidationOptions
	// STSEndpoint overrides the regional STS endpoint.
	STSEndpoint string
	Logger      *log.Logger
}

// Resolver dispatches credential resolution to the strategy registered for
// the connection's AuthMode.
type Resolver struct {
	mu         sync.RWMutex
	strategies map[AuthMode]Strategy
	logger     *log.Logger
}

// NewResolver creates a Resolver with the static, Azure AD and Okta
// strategies registered.
func NewResolver(opts ResolverOptions) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[TS_AUTH] ", log.LstdFlags)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	hostOpts := DefaultHostValidationOptions()
	if opts.HostValidation != nil {
		hostOpts = *opts.HostValidation
	}
	assumers := func(region string) RoleAssumer {
		return NewSTSAssumer(STSOptions{Region: region, Endpoint: opts.STSEndpoint, HTTPClient: client})
	}

	r := &Resolver{
		strategies: make(map[AuthMode]Strategy),
		logger:     logger,
	}
	r.Register(ModeDefault, NewStaticStrategy(logger))
	r.Register(ModeSamlAzureAd, NewSAMLStrategy(NewAzureADProvider(AzureADOptions{
		HTTPClient: client,
		Authority:  opts.AzureAuthority,
		Credential: opts.AzureCredential,
		Logger:     logger,
	}), assumers, logger))
	r.Register(ModeSamlOkta, NewSAMLStrategy(NewOktaProvider(OktaOptions{
		HTTPClient:     client,
		Sessions:       opts.OktaSessions,
		HostValidation: hostOpts,
		Logger:         logger,
	}), assumers, logger))
	return r
}

// NewEmptyResolver creates a Resolver with no strategies. Used when callers
// want to assemble their own table.
func NewEmptyResolver(logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(os.Stderr, "[TS_AUTH] ", log.LstdFlags)
	}
	return &Resolver{strategies: make(map[AuthMode]Strategy), logger: logger}
}

// Register sets the strategy for a mode, replacing any previous one
func (r *Resolver) Register(mode AuthMode, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[mode] = s
}

func (r *Resolver) strategyFor(attrs *attributes.Attributes) (AuthMode, Strategy, error) {
	mode, err := ModeFromAttributes(attrs)
	if err != nil {
		return 0, nil, err
	}
	r.mu.RLock()
	s, ok := r.strategies[mode]
	r.mu.RUnlock()
	if !ok {
		return mode, nil, base.NewError(base.KindUnsupportedAuthMode, "SelectMode",
			fmt.Sprintf("no strategy registered for %s", mode), nil)
	}
	return mode, s, nil
}

// Validate selects the mode and checks required attributes without any
// network call.
func (r *Resolver) Validate(attrs *attributes.Attributes) (AuthMode, error) {
	mode, s, err := r.strategyFor(attrs)
	if err != nil {
		return mode, err
	}
	return mode, s.Validate(attrs)
}

// Resolve produces credentials for attrs. The password is only read inside
// this call.
func (r *Resolver) Resolve(ctx context.Context, attrs *attributes.Attributes) (*Credentials, error) {
	mode, s, err := r.strategyFor(attrs)
	if err != nil {
		telemetry.RecordAuth(mode.String(), err)
		return nil, err
	}
	if err := s.Validate(attrs); err != nil {
		telemetry.RecordAuth(mode.String(), err)
		return nil, err
	}

	timer := telemetry.NewOperationTimer("resolve_" + mode.String())
	creds, err := s.Resolve(ctx, attrs)
	timer.Stop()
	telemetry.RecordAuth(mode.String(), err)
	if err != nil {
		r.logger.Printf("Credential resolution failed for %s: %v", mode, err)
		return nil, err
	}
	r.logger.Printf("Resolved credentials for %s: %s", mode, creds)
	return creds, nil
}
