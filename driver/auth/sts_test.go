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
	"net"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsodbc/platform/driver/base"
)

type fakeSTS struct {
	input *sts.AssumeRoleWithSAMLInput
	out   *sts.AssumeRoleWithSAMLOutput
	err   error
}

func (f *fakeSTS) AssumeRoleWithSAML(ctx context.Context, params *sts.AssumeRoleWithSAMLInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleWithSAMLOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestSTSAssumer_Success(t *testing.T) {
	exp := time.Now().Add(time.Hour).UTC()
	fake := &fakeSTS{out: &sts.AssumeRoleWithSAMLOutput{
		Credentials: &types.Credentials{
			AccessKeyId:     aws.String("ASIAFROMSTS"),
			SecretAccessKey: aws.String("sts-secret"),
			SessionToken:    aws.String("sts-token"),
			Expiration:      aws.Time(exp),
		},
	}}
	a := &STSAssumer{client: fake, duration: 900}

	creds, err := a.AssumeRoleWithAssertion(context.Background(), "PHNhbWw+", "arn:role", "arn:idp")
	require.NoError(t, err)

	assert.Equal(t, "ASIAFROMSTS", creds.AccessKeyID)
	assert.Equal(t, "sts-token", creds.SessionToken)
	assert.Equal(t, exp, creds.Expires)
	assert.Equal(t, "arn:role", aws.ToString(fake.input.RoleArn))
	assert.Equal(t, "arn:idp", aws.ToString(fake.input.PrincipalArn))
	assert.Equal(t, "PHNhbWw+", aws.ToString(fake.input.SAMLAssertion))
	assert.Equal(t, int32(900), aws.ToInt32(fake.input.DurationSeconds))
}

func TestSTSAssumer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		out     *sts.AssumeRoleWithSAMLOutput
		message string
	}{
		{
			name: "API error message kept verbatim",
			err: &smithy.GenericAPIError{
				Code:    "AccessDenied",
				Message: "Not authorized to perform sts:AssumeRoleWithSAML",
			},
			message: "Not authorized to perform sts:AssumeRoleWithSAML",
		},
		{
			name:    "transport error",
			err:     &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			message: "connection refused",
		},
		{
			name:    "no credentials in response",
			out:     &sts.AssumeRoleWithSAMLOutput{},
			message: "STS returned no credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &STSAssumer{client: &fakeSTS{out: tt.out, err: tt.err}}
			_, err := a.AssumeRoleWithAssertion(context.Background(), "x", "r", "i")
			require.Error(t, err)
			assert.True(t, errors.Is(err, base.ErrRoleAssumptionRejected))

			var de *base.Error
			require.True(t, errors.As(err, &de))
			assert.Contains(t, de.Message, tt.message)
		})
	}
}

func TestNewSTSAssumer(t *testing.T) {
	a := NewSTSAssumer(STSOptions{Endpoint: "http://localhost:4566"})
	client, ok := a.client.(*sts.Client)
	require.True(t, ok)

	opts := client.Options()
	assert.Equal(t, DefaultRegion, opts.Region)
	assert.Equal(t, "http://localhost:4566", aws.ToString(opts.BaseEndpoint))
	assert.NotNil(t, opts.Credentials)
}
