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
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"tsodbc/platform/driver/attributes"
	"tsodbc/platform/driver/base"
)

// StaticStrategy uses UID/PWD as an access key pair, or falls back to the
// ambient AWS credential chain when both are empty.
type StaticStrategy struct {
	logger *log.Logger
	// loadConfig is config.LoadDefaultConfig, replaceable in tests.
	loadConfig func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error)
}

// NewStaticStrategy creates the ModeDefault strategy
func NewStaticStrategy(logger *log.Logger) *StaticStrategy {
	return &StaticStrategy{logger: logger, loadConfig: config.LoadDefaultConfig}
}

// Validate requires UID and PWD to be either both set or both empty
func (s *StaticStrategy) Validate(attrs *attributes.Attributes) error {
	_, _, err := userAndPassword(attrs, "Validate")
	return err
}

// Resolve returns credentials from the attributes or the environment
func (s *StaticStrategy) Resolve(ctx context.Context, attrs *attributes.Attributes) (*Credentials, error) {
	uid, pwd, err := userAndPassword(attrs, "Resolve")
	if err != nil {
		return nil, err
	}

	if uid != "" {
		provider := credentials.NewStaticCredentialsProvider(uid, pwd, attrs.Get(attributes.KeySessionToken))
		v, err := provider.Retrieve(ctx)
		if err != nil {
			return nil, base.NewError(base.KindAuthenticationRejected, "Resolve", err.Error(), err)
		}
		return fromAWS(v, "static"), nil
	}

	cfgOpts := []func(*config.LoadOptions) error{}
	if region := strings.TrimSpace(attrs.Get(attributes.KeyRegion)); region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(region))
	}
	source := "environment"
	if profile := strings.TrimSpace(attrs.Get(attributes.KeyProfileName)); profile != "" {
		cfgOpts = append(cfgOpts, config.WithSharedConfigProfile(profile))
		source = "profile:" + profile
	}

	cfg, err := s.loadConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, base.NewError(base.KindAuthenticationRejected, "LoadConfig", "failed to load AWS config", err)
	}
	if cfg.Credentials == nil {
		return nil, base.NewError(base.KindAuthenticationRejected, "Resolve", "no AWS credentials available in the environment", nil)
	}
	v, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, base.NewError(base.KindAuthenticationRejected, "Resolve", err.Error(), err)
	}
	if s.logger != nil {
		s.logger.Printf("Loaded credentials from %s", source)
	}
	return fromAWS(v, source), nil
}

// userAndPassword returns trimmed UID and raw PWD, rejecting the case where
// only one of them is set.
func userAndPassword(attrs *attributes.Attributes, op string) (string, string, error) {
	uid := strings.TrimSpace(attrs.Get(attributes.KeyUID))
	pwd := attrs.Get(attributes.KeyPWD)
	if (uid == "") != (pwd == "") {
		return "", "", base.NewError(base.KindMalformedAttributes, op,
			"UID and PWD must be provided together or both left empty", nil)
	}
	return uid, pwd, nil
}
