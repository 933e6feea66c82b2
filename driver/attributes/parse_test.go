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

package attributes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsodbc/platform/driver/base"
)

const aadSample = "Driver=x;UID=;PWD=;Auth=AAD;IdpName=AzureAD;AADTenant=;AADApplicationID=;AADClientSecret=;RoleARN=;IdpARN=;"

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
		keys []string
	}{
		{
			name: "simple pairs",
			raw:  "DSN=timestream;UID=AKIA;PWD=secret",
			want: map[string]string{"DSN": "timestream", "UID": "AKIA", "PWD": "secret"},
			keys: []string{"DSN", "UID", "PWD"},
		},
		{
			name: "canonical casing for known keys",
			raw:  "uid=a;pwd=b;AUTH=okta;idphost=example.okta.com",
			want: map[string]string{"UID": "a", "PWD": "b", "Auth": "okta", "IdpHost": "example.okta.com"},
			keys: []string{"UID", "PWD", "Auth", "IdpHost"},
		},
		{
			name: "unknown keys kept verbatim",
			raw:  "Driver=ts;FancyNewOption=On",
			want: map[string]string{"Driver": "ts", "FancyNewOption": "On"},
			keys: []string{"Driver", "FancyNewOption"},
		},
		{
			name: "brace quoted value keeps semicolons",
			raw:  "PWD={a;b;c};UID=me",
			want: map[string]string{"PWD": "a;b;c", "UID": "me"},
			keys: []string{"PWD", "UID"},
		},
		{
			name: "doubled closing brace is a literal",
			raw:  "PWD={p}}w;d}",
			want: map[string]string{"PWD": "p}w;d"},
			keys: []string{"PWD"},
		},
		{
			name: "empty braces",
			raw:  "PWD={};UID=x;",
			want: map[string]string{"PWD": "", "UID": "x"},
			keys: []string{"PWD", "UID"},
		},
		{
			name: "last write wins and keeps first position",
			raw:  "UID=first;Region=us-east-1;uid=second",
			want: map[string]string{"UID": "second", "Region": "us-east-1"},
			keys: []string{"UID", "Region"},
		},
		{
			name: "pairs without equals are skipped",
			raw:  "garbage;UID=x;;=orphan;PWD=y",
			want: map[string]string{"UID": "x", "PWD": "y"},
			keys: []string{"UID", "PWD"},
		},
		{
			name: "value split on first equals",
			raw:  "RoleARN=a=b=c",
			want: map[string]string{"RoleARN": "a=b=c"},
			keys: []string{"RoleARN"},
		},
		{
			name: "keys are trimmed",
			raw:  "  UID =x; PWD=y",
			want: map[string]string{"UID": "x", "PWD": "y"},
			keys: []string{"UID", "PWD"},
		},
		{
			name: "closing brace inside unquoted value is ordinary",
			raw:  "Driver=a}b",
			want: map[string]string{"Driver": "a}b"},
			keys: []string{"Driver"},
		},
		{
			name: "empty input",
			raw:  "",
			want: map[string]string{},
			keys: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, attrs.Map())
			assert.Equal(t, tt.keys, attrs.Keys())
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		message string
	}{
		{name: "missing closing brace", raw: "UID=x;PWD={abc;def", message: "missing closing brace for attribute PWD"},
		{name: "missing closing brace at end", raw: "PWD={", message: "missing closing brace"},
		{name: "only escaped braces", raw: "PWD={abc}}", message: "missing closing brace"},
		{name: "junk after closing brace", raw: "PWD={abc}x;UID=y", message: "unexpected character 'x' after closing brace"},
		{name: "space after closing brace", raw: "PWD={abc} ;UID=y", message: "unexpected character ' '"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs, err := Parse(tt.raw)
			require.Error(t, err)
			assert.Nil(t, attrs)
			assert.True(t, errors.Is(err, base.ErrMalformedAttributes))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestParse_AzureADSample(t *testing.T) {
	attrs, err := Parse(aadSample)
	require.NoError(t, err)

	assert.Equal(t, "AAD", attrs.Get(KeyAuth))
	assert.Equal(t, "AzureAD", attrs.Get(KeyIdpName))
	assert.Equal(t, 10, attrs.Len())
	v, ok := attrs.Lookup(KeyAADTenant)
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestParse_RoundTrip(t *testing.T) {
	inputs := []string{
		aadSample,
		"DSN=ts;UID=AKIA;PWD={p;w}}d};Region=eu-west-1",
		"Driver={Amazon Timestream ODBC Driver};Auth=OKTA;IdpHost=dev.okta.com;OktaApplicationID=0oa1",
		"PWD={{starts with brace};UID= padded ",
		"Custom={}};x}",
		"A=1;a=2;B=;C={;}",
	}

	for _, raw := range inputs {
		t.Run(raw, func(t *testing.T) {
			first, err := Parse(raw)
			require.NoError(t, err)

			second, err := Parse(first.String())
			require.NoError(t, err)

			assert.True(t, first.Equal(second), "round trip changed %q into %q", first.String(), second.String())
			assert.Equal(t, first.String(), second.String())
		})
	}
}

func TestAttributes_Redacted(t *testing.T) {
	attrs, err := Parse("UID=user;PWD={se;cret};AADClientSecret=abc;SessionToken=tok;Region=us-east-1;SessionToken2=visible")
	require.NoError(t, err)

	redacted := attrs.Redacted()
	assert.Equal(t, "UID=user;PWD=***;AADClientSecret=***;SessionToken=***;Region=us-east-1;SessionToken2=visible;", redacted)
	assert.NotContains(t, redacted, "cret")
	// The original values are untouched.
	assert.Equal(t, "se;cret", attrs.Get(KeyPWD))
}

func TestMaskRaw(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"UID=a;PWD=hunter2;Region=x", "UID=a;PWD=***;Region=x"},
		{"pwd=hunter2", "pwd=***"},
		{"UID=a;PWD={hun;ter}}2};Region=x", "UID=a;PWD=***;Region=x"},
		{"UID=a;PWD={hun;ter2", "UID=a;PWD=***"},
		{"AADClientSecret=s1;SessionToken=t1", "AADClientSecret=***;SessionToken=***"},
		{"MyPWD=visible;UID=a", "MyPWD=visible;UID=a"},
		{"UID=a", "UID=a"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskRaw(tt.raw))
		})
	}
}

func TestAttributes_MergeWithoutDelete(t *testing.T) {
	defaults, err := Parse("Region=us-east-1;Auth=IAM;LogLevel=WARN")
	require.NoError(t, err)
	over, err := Parse("auth=OKTA;UID=me;PWD=pw")
	require.NoError(t, err)

	merged := defaults.Merge(over)
	assert.Equal(t, []string{"Region", "Auth", "LogLevel", "UID", "PWD"}, merged.Keys())
	assert.Equal(t, "OKTA", merged.Get("AUTH"))
	// Inputs are not modified.
	assert.Equal(t, "IAM", defaults.Get(KeyAuth))

	stripped := merged.Without(KeyPWD, "nope")
	assert.False(t, stripped.Has(KeyPWD))
	assert.True(t, merged.Has(KeyPWD))

	stripped.Delete(KeyRegion)
	assert.Equal(t, []string{"Auth", "LogLevel", "UID"}, stripped.Keys())
	assert.Equal(t, "me", stripped.Get("uid"))
}

func TestAttributes_Int(t *testing.T) {
	attrs := FromMap(map[string]string{"RequestTimeout": "3000", "MaxRowsPerPage": "lots"})

	n, err := attrs.Int(KeyRequestTimeout, 0)
	require.NoError(t, err)
	assert.Equal(t, 3000, n)

	n, err = attrs.Int(KeyConnectionTimeout, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	_, err = attrs.Int("maxrowsperpage", 0)
	assert.ErrorContains(t, err, "MaxRowsPerPage is not an integer")
	assert.True(t, base.IsKind(err, base.KindMalformedAttributes))
}

func TestFromMapOrdering(t *testing.T) {
	attrs := FromMap(map[string]string{"zeta": "1", "UID": "u", "Auth": "IAM", "alpha": "2"})
	assert.Equal(t, []string{"Auth", "UID", "alpha", "zeta"}, attrs.Keys())
}

func TestCanonicalAndSecret(t *testing.T) {
	name, known := Canonical("aadclientsecret")
	assert.True(t, known)
	assert.Equal(t, KeyAADClientSecret, name)

	name, known = Canonical("Whatever")
	assert.False(t, known)
	assert.Equal(t, "Whatever", name)

	assert.True(t, IsSecret("pwd"))
	assert.False(t, IsSecret("UID"))
}
