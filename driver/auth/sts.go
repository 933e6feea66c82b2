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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"tsodbc/platform/driver/base"
)

type stsAPI interface {
	AssumeRoleWithSAML(ctx context.Context, params *sts.AssumeRoleWithSAMLInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleWithSAMLOutput, error)
}

// STSOptions holds options for creating an STSAssumer
type STSOptions struct {
	Region string
	// Endpoint overrides the resolved STS endpoint.
	Endpoint string
	// DurationSeconds is the requested session length; 0 keeps the STS
	// default of one hour.
	DurationSeconds int32
	HTTPClient      aws.HTTPClient
}

// STSAssumer calls AssumeRoleWithSAML. The call is unsigned, so the client
// carries anonymous credentials.
type STSAssumer struct {
	client   stsAPI
	duration int32
}

// NewSTSAssumer creates an STSAssumer for the given region
func NewSTSAssumer(opts STSOptions) *STSAssumer {
	region := opts.Region
	if region == "" {
		region = DefaultRegion
	}
	stsOpts := sts.Options{
		Region:      region,
		Credentials: aws.AnonymousCredentials{},
	}
	if opts.Endpoint != "" {
		stsOpts.BaseEndpoint = aws.String(opts.Endpoint)
	}
	if opts.HTTPClient != nil {
		stsOpts.HTTPClient = opts.HTTPClient
	}
	return &STSAssumer{client: sts.New(stsOpts), duration: opts.DurationSeconds}
}

// AssumeRoleWithAssertion exchanges assertion for credentials of roleARN.
// STS error messages are kept verbatim.
func (a *STSAssumer) AssumeRoleWithAssertion(ctx context.Context, assertion, roleARN, idpARN string) (*Credentials, error) {
	input := &sts.AssumeRoleWithSAMLInput{
		RoleArn:       aws.String(roleARN),
		PrincipalArn:  aws.String(idpARN),
		SAMLAssertion: aws.String(assertion),
	}
	if a.duration > 0 {
		input.DurationSeconds = aws.Int32(a.duration)
	}

	out, err := a.client.AssumeRoleWithSAML(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return nil, base.NewError(base.KindRoleAssumptionRejected, "AssumeRoleWithSAML", apiErr.ErrorMessage(), err)
		}
		return nil, base.NewError(base.KindRoleAssumptionRejected, "AssumeRoleWithSAML", err.Error(), err)
	}
	if out.Credentials == nil {
		return nil, base.NewError(base.KindRoleAssumptionRejected, "AssumeRoleWithSAML", "STS returned no credentials", nil)
	}

	c := &Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Source:          "sts",
	}
	if out.Credentials.Expiration != nil {
		c.Expires = *out.Credentials.Expiration
	}
	return c, nil
}
