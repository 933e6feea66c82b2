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
	"strings"

	"tsodbc/platform/driver/attributes"
	"tsodbc/platform/driver/base"
)

// IdentityProvider authenticates an end user and returns a base64-encoded
// SAML response suitable for AssumeRoleWithSAML.
type IdentityProvider interface {
	Name() string
	// Validate checks provider-specific attributes without network calls.
	Validate(attrs *attributes.Attributes) error
	Authenticate(ctx context.Context, attrs *attributes.Attributes, username, password string) (string, error)
}

// IntegratedAuthenticator is implemented by providers that can obtain an
// assertion without a username and password.
type IntegratedAuthenticator interface {
	AuthenticateIntegrated(ctx context.Context, attrs *attributes.Attributes) (string, error)
}

// RoleAssumer exchanges a SAML assertion for temporary credentials
type RoleAssumer interface {
	AssumeRoleWithAssertion(ctx context.Context, assertion, roleARN, idpARN string) (*Credentials, error)
}

// SAMLStrategy federates through an identity provider and STS
type SAMLStrategy struct {
	provider IdentityProvider
	assumer  func(region string) RoleAssumer
	logger   *log.Logger
}

// NewSAMLStrategy creates a strategy for provider. assumer builds the role
// assumer for the connection's region.
func NewSAMLStrategy(provider IdentityProvider, assumer func(region string) RoleAssumer, logger *log.Logger) *SAMLStrategy {
	return &SAMLStrategy{provider: provider, assumer: assumer, logger: logger}
}

// Validate checks RoleARN, IdpARN, the provider's fields and UID/PWD pairing
func (s *SAMLStrategy) Validate(attrs *attributes.Attributes) error {
	if err := requireAttributes(attrs, "Validate", attributes.KeyRoleARN, attributes.KeyIdpARN); err != nil {
		return err
	}
	if err := s.provider.Validate(attrs); err != nil {
		return err
	}
	_, _, err := userAndPassword(attrs, "Validate")
	return err
}

// Resolve authenticates, then assumes RoleARN with the resulting assertion.
// An identity provider rejection stops here and never reaches STS.
func (s *SAMLStrategy) Resolve(ctx context.Context, attrs *attributes.Attributes) (*Credentials, error) {
	if err := s.Validate(attrs); err != nil {
		return nil, err
	}
	uid, pwd, _ := userAndPassword(attrs, "Resolve")

	var assertion string
	var err error
	if uid == "" {
		integrated, ok := s.provider.(IntegratedAuthenticator)
		if !ok {
			return nil, base.NewError(base.KindAuthenticationRejected, "Authenticate",
				fmt.Sprintf("%s does not support integrated authentication; UID and PWD are required", s.provider.Name()), nil)
		}
		s.logf("Authenticating with %s using integrated flow", s.provider.Name())
		assertion, err = integrated.AuthenticateIntegrated(ctx, attrs)
	} else {
		s.logf("Authenticating %s user with password", s.provider.Name())
		assertion, err = s.provider.Authenticate(ctx, attrs, uid, pwd)
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(assertion) == "" {
		return nil, base.NewError(base.KindAuthenticationRejected, "Authenticate",
			fmt.Sprintf("%s returned an empty SAML assertion", s.provider.Name()), nil)
	}

	creds, err := s.assumer(regionOf(attrs)).AssumeRoleWithAssertion(ctx, assertion,
		strings.TrimSpace(attrs.Get(attributes.KeyRoleARN)), strings.TrimSpace(attrs.Get(attributes.KeyIdpARN)))
	if err != nil {
		return nil, err
	}
	creds.Source = "saml:" + s.provider.Name()
	return creds, nil
}

func (s *SAMLStrategy) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func requireAttributes(attrs *attributes.Attributes, op string, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if !attrs.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return base.NewError(base.KindMalformedAttributes, op,
			fmt.Sprintf("required attributes are empty: %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}

func regionOf(attrs *attributes.Attributes) string {
	if r := strings.TrimSpace(attrs.Get(attributes.KeyRegion)); r != "" {
		return r
	}
	return DefaultRegion
}

// DefaultRegion is used for STS and the query service when Region is empty.
const DefaultRegion = "us-east-1"
