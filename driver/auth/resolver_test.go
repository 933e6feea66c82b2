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
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsodbc/platform/driver/attributes"
	"tsodbc/platform/driver/base"
)

var quietLogger = log.New(io.Discard, "", 0)

// fakeAssumer records AssumeRoleWithAssertion calls
type fakeAssumer struct {
	mu         sync.Mutex
	calls      int
	assertion  string
	roleARN    string
	idpARN     string
	region     string
	err        error
	expiration time.Time
}

func (f *fakeAssumer) factory(region string) RoleAssumer {
	f.mu.Lock()
	f.region = region
	f.mu.Unlock()
	return f
}

func (f *fakeAssumer) AssumeRoleWithAssertion(ctx context.Context, assertion, roleARN, idpARN string) (*Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.assertion, f.roleARN, f.idpARN = assertion, roleARN, idpARN
	if f.err != nil {
		return nil, f.err
	}
	exp := f.expiration
	if exp.IsZero() {
		exp = time.Now().Add(time.Hour)
	}
	return &Credentials{
		AccessKeyID:     "ASIATEMPORARY0001",
		SecretAccessKey: "temporary-secret",
		SessionToken:    "temporary-session-token",
		Expires:         exp,
		Source:          "sts",
	}, nil
}

func (f *fakeAssumer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestStaticStrategy_KeysFromAttributes(t *testing.T) {
	s := NewStaticStrategy(quietLogger)
	attrs := mustParse(t, "UID=AKIAEXAMPLE;PWD=wJalrXUtnFEMI;SessionToken=tok")

	require.NoError(t, s.Validate(attrs))
	creds, err := s.Resolve(context.Background(), attrs)
	require.NoError(t, err)

	assert.Equal(t, "AKIAEXAMPLE", creds.AccessKeyID)
	assert.Equal(t, "wJalrXUtnFEMI", creds.SecretAccessKey)
	assert.Equal(t, "tok", creds.SessionToken)
	assert.False(t, creds.CanExpire(), "static keys have no expiry")
	assert.Equal(t, "static", creds.Source)
}

func TestStaticStrategy_OnlyOneOfUIDAndPWD(t *testing.T) {
	s := NewStaticStrategy(quietLogger)
	for _, raw := range []string{"UID=AKIA;PWD=", "UID=;PWD=secret", "PWD=secret"} {
		t.Run(raw, func(t *testing.T) {
			attrs := mustParse(t, raw)
			err := s.Validate(attrs)
			assert.True(t, errors.Is(err, base.ErrMalformedAttributes), "got %v", err)

			_, err = s.Resolve(context.Background(), attrs)
			assert.True(t, errors.Is(err, base.ErrMalformedAttributes), "got %v", err)
		})
	}
}

func TestStaticStrategy_AmbientChain(t *testing.T) {
	var got config.LoadOptions
	s := NewStaticStrategy(quietLogger)
	s.loadConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			require.NoError(t, fn(&got))
		}
		return aws.Config{
			Region:      got.Region,
			Credentials: credentials.NewStaticCredentialsProvider("AKIAPROFILE", "profile-secret", ""),
		}, nil
	}

	creds, err := s.Resolve(context.Background(), mustParse(t, "Auth=IAM;ProfileName=analytics;Region=eu-west-1"))
	require.NoError(t, err)

	assert.Equal(t, "analytics", got.SharedConfigProfile)
	assert.Equal(t, "eu-west-1", got.Region)
	assert.Equal(t, "AKIAPROFILE", creds.AccessKeyID)
	assert.Equal(t, "profile:analytics", creds.Source)
}

func TestStaticStrategy_AmbientChainFailure(t *testing.T) {
	s := NewStaticStrategy(quietLogger)
	s.loadConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{
			Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{}, errors.New("no EC2 IMDS role found")
			}),
		}, nil
	}

	_, err := s.Resolve(context.Background(), mustParse(t, "Auth=IAM"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, base.ErrAuthenticationRejected))
	assert.Contains(t, err.Error(), "no EC2 IMDS role found")

	s.loadConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("bad shared config")
	}
	_, err = s.Resolve(context.Background(), mustParse(t, "Auth=IAM;ProfileName=missing"))
	assert.True(t, errors.Is(err, base.ErrAuthenticationRejected))
}

// stubStrategy lets the dispatch tests observe which strategy ran
type stubStrategy struct {
	validateErr error
	resolved    int
}

func (s *stubStrategy) Validate(*attributes.Attributes) error { return s.validateErr }

func (s *stubStrategy) Resolve(context.Context, *attributes.Attributes) (*Credentials, error) {
	s.resolved++
	return &Credentials{AccessKeyID: "AKIA", SecretAccessKey: "s"}, nil
}

func TestResolver_Dispatch(t *testing.T) {
	r := NewEmptyResolver(quietLogger)
	def, okta := &stubStrategy{}, &stubStrategy{}
	r.Register(ModeDefault, def)
	r.Register(ModeSamlOkta, okta)

	_, err := r.Resolve(context.Background(), mustParse(t, "Auth=OKTA"))
	require.NoError(t, err)
	assert.Equal(t, 1, okta.resolved)
	assert.Equal(t, 0, def.resolved)

	// No Azure AD strategy registered.
	_, err = r.Resolve(context.Background(), mustParse(t, "Auth=AAD"))
	assert.True(t, errors.Is(err, base.ErrUnsupportedAuthMode), "got %v", err)

	_, err = r.Resolve(context.Background(), mustParse(t, "Auth=LDAP"))
	assert.True(t, errors.Is(err, base.ErrUnsupportedAuthMode), "got %v", err)

	mode, err := r.Validate(mustParse(t, "UID=x;PWD=y"))
	require.NoError(t, err)
	assert.Equal(t, ModeDefault, mode)
}

func TestResolver_ValidationFailureSkipsResolve(t *testing.T) {
	r := NewEmptyResolver(quietLogger)
	s := &stubStrategy{validateErr: base.NewError(base.KindMalformedAttributes, "Validate", "missing", nil)}
	r.Register(ModeDefault, s)

	_, err := r.Resolve(context.Background(), mustParse(t, "Auth=IAM"))
	assert.True(t, errors.Is(err, base.ErrMalformedAttributes))
	assert.Equal(t, 0, s.resolved)
}

func TestNewResolver_RegistersAllModes(t *testing.T) {
	r := NewResolver(ResolverOptions{Logger: quietLogger})

	for _, raw := range []string{"Auth=IAM", "Auth=AAD", "Auth=OKTA"} {
		_, s, err := r.strategyFor(mustParse(t, raw))
		require.NoError(t, err, raw)
		assert.NotNil(t, s, raw)
	}

	// SAML strategies reject the empty sample before any network call.
	_, err := r.Validate(mustParse(t, "Driver=x;UID=;PWD=;Auth=AAD;IdpName=AzureAD;AADTenant=;AADApplicationID=;AADClientSecret=;RoleARN=;IdpARN=;"))
	assert.True(t, errors.Is(err, base.ErrMalformedAttributes), "got %v", err)
}
