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
	"fmt"
	"strings"

	"tsodbc/platform/driver/attributes"
	"tsodbc/platform/driver/base"
)

// AuthMode selects the strategy used to obtain service credentials
type AuthMode int

const (
	// ModeDefault uses static keys from UID/PWD or the ambient AWS
	// credential chain (optionally a named profile).
	ModeDefault AuthMode = iota
	// ModeSamlAzureAd federates through Azure AD.
	ModeSamlAzureAd
	// ModeSamlOkta federates through Okta.
	ModeSamlOkta
)

func (m AuthMode) String() string {
	switch m {
	case ModeDefault:
		return "Default"
	case ModeSamlAzureAd:
		return "SamlAzureAd"
	case ModeSamlOkta:
		return "SamlOkta"
	default:
		return fmt.Sprintf("AuthMode(%d)", int(m))
	}
}

// IsSAML reports whether the mode federates through an identity provider
func (m AuthMode) IsSAML() bool {
	return m == ModeSamlAzureAd || m == ModeSamlOkta
}

func modeFromAuth(v string) (AuthMode, bool, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "":
		return 0, false, nil
	case "IAM", "DEFAULT", "AWS_PROFILE":
		return ModeDefault, true, nil
	case "AAD", "AZUREAD", "AZURE_AD":
		return ModeSamlAzureAd, true, nil
	case "OKTA":
		return ModeSamlOkta, true, nil
	}
	return 0, false, fmt.Errorf("unsupported authentication mode %q", v)
}

func modeFromIdpName(v string) (AuthMode, bool, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "", "NONE":
		return 0, false, nil
	case "AZUREAD", "AAD", "AZURE_AD":
		return ModeSamlAzureAd, true, nil
	case "OKTA":
		return ModeSamlOkta, true, nil
	}
	return 0, false, fmt.Errorf("unsupported identity provider %q", v)
}

// ModeFromAttributes picks the AuthMode from the Auth and IdpName
// attributes. Auth wins when it names IAM; a SAML Auth value must agree with
// IdpName when both are given. With neither set the mode is ModeDefault.
// Unknown values fail with UnsupportedAuthMode.
func ModeFromAttributes(attrs *attributes.Attributes) (AuthMode, error) {
	authMode, hasAuth, err := modeFromAuth(attrs.Get(attributes.KeyAuth))
	if err != nil {
		return 0, base.NewError(base.KindUnsupportedAuthMode, "SelectMode", err.Error(), nil)
	}
	idpMode, hasIdp, err := modeFromIdpName(attrs.Get(attributes.KeyIdpName))
	if err != nil && !(hasAuth && authMode == ModeDefault) {
		return 0, base.NewError(base.KindUnsupportedAuthMode, "SelectMode", err.Error(), nil)
	}

	switch {
	case hasAuth && authMode == ModeDefault:
		return ModeDefault, nil
	case hasAuth && hasIdp && authMode != idpMode:
		return 0, base.NewError(base.KindUnsupportedAuthMode, "SelectMode",
			fmt.Sprintf("Auth=%s conflicts with IdpName=%s",
				attrs.Get(attributes.KeyAuth), attrs.Get(attributes.KeyIdpName)), nil)
	case hasAuth:
		return authMode, nil
	case hasIdp:
		return idpMode, nil
	}
	return ModeDefault, nil
}
