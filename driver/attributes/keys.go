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

import "strings"

// Canonical attribute names.
const (
	KeyDSN                 = "DSN"
	KeyDriver              = "Driver"
	KeyUID                 = "UID"
	KeyPWD                 = "PWD"
	KeyAuth                = "Auth"
	KeyIdpName             = "IdpName"
	KeyIdpHost             = "IdpHost"
	KeyIdpARN              = "IdpARN"
	KeyRoleARN             = "RoleARN"
	KeyAADTenant           = "AADTenant"
	KeyAADApplicationID    = "AADApplicationID"
	KeyAADClientSecret     = "AADClientSecret"
	KeyOktaApplicationID   = "OktaApplicationID"
	KeyRegion              = "Region"
	KeyEndpointOverride    = "EndpointOverride"
	KeyProfileName         = "ProfileName"
	KeySessionToken        = "SessionToken"
	KeyRequestTimeout      = "RequestTimeout"
	KeyConnectionTimeout   = "ConnectionTimeout"
	KeyMaxRetryCountClient = "MaxRetryCountClient"
	KeyMaxRowsPerPage      = "MaxRowsPerPage"
	KeyLogLevel            = "LogLevel"
)

var knownKeys = map[string]string{}

// SecretKeys are the attributes whose values must never be surfaced.
var SecretKeys = []string{KeyPWD, KeyAADClientSecret, KeySessionToken}

func init() {
	for _, k := range []string{
		KeyDSN, KeyDriver, KeyUID, KeyPWD, KeyAuth, KeyIdpName, KeyIdpHost,
		KeyIdpARN, KeyRoleARN, KeyAADTenant, KeyAADApplicationID,
		KeyAADClientSecret, KeyOktaApplicationID, KeyRegion, KeyEndpointOverride,
		KeyProfileName, KeySessionToken, KeyRequestTimeout, KeyConnectionTimeout,
		KeyMaxRetryCountClient, KeyMaxRowsPerPage, KeyLogLevel,
	} {
		knownKeys[strings.ToLower(k)] = k
	}
}

// Canonical returns the canonical spelling of key and whether it is a known
// attribute. Unknown keys are returned unchanged.
func Canonical(key string) (string, bool) {
	if c, ok := knownKeys[strings.ToLower(key)]; ok {
		return c, true
	}
	return key, false
}

// IsSecret reports whether key names a secret-bearing attribute
func IsSecret(key string) bool {
	for _, s := range SecretKeys {
		if strings.EqualFold(s, key) {
			return true
		}
	}
	return false
}
