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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/golang-jwt/jwt/v5"

	"tsodbc/platform/driver/attributes"
	"tsodbc/platform/driver/base"
)

const (
	defaultAzureAuthority = "https://login.microsoftonline.com"
	saml2TokenType        = "urn:ietf:params:oauth:token-type:saml2"
	jwtBearerGrant        = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	maxIdpResponseBytes   = 1 << 20
)

// AzureADOptions holds options for creating an AzureADProvider
type AzureADOptions struct {
	HTTPClient *http.Client
	Authority  string
	// Credential supplies the signed-in user's token for the integrated
	// flow. Nil means azidentity.NewDefaultAzureCredential on first use.
	Credential azcore.TokenCredential
	Logger     *log.Logger
}

// AzureADProvider obtains SAML assertions from Azure AD's token endpoint
type AzureADProvider struct {
	client    *http.Client
	authority string
	logger    *log.Logger

	credMu     sync.Mutex
	credential azcore.TokenCredential
	newCred    func() (azcore.TokenCredential, error)
}

// NewAzureADProvider creates an AzureADProvider
func NewAzureADProvider(opts AzureADOptions) *AzureADProvider {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	authority := strings.TrimRight(opts.Authority, "/")
	if authority == "" {
		authority = defaultAzureAuthority
	}
	return &AzureADProvider{
		client:     client,
		authority:  authority,
		logger:     opts.Logger,
		credential: opts.Credential,
		newCred: func() (azcore.TokenCredential, error) {
			return azidentity.NewDefaultAzureCredential(nil)
		},
	}
}

// Name returns the provider name
func (p *AzureADProvider) Name() string { return "AzureAD" }

// Validate requires tenant, application id and client secret
func (p *AzureADProvider) Validate(attrs *attributes.Attributes) error {
	return requireAttributes(attrs, "Validate",
		attributes.KeyAADTenant, attributes.KeyAADApplicationID, attributes.KeyAADClientSecret)
}

type aadTokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Authenticate runs the resource-owner password grant asking for a SAML 2.0
// token
func (p *AzureADProvider) Authenticate(ctx context.Context, attrs *attributes.Attributes, username, password string) (string, error) {
	appID := strings.TrimSpace(attrs.Get(attributes.KeyAADApplicationID))
	form := url.Values{
		"grant_type":           {"password"},
		"requested_token_type": {saml2TokenType},
		"username":             {username},
		"password":             {password},
		"client_id":            {appID},
		"client_secret":        {attrs.Get(attributes.KeyAADClientSecret)},
		"resource":             {appID},
	}
	return p.requestSAML(ctx, attrs, form, "Authenticate")
}

// AuthenticateIntegrated exchanges the signed-in user's Azure token for a
// SAML token on behalf of the application. The token's tenant must match
// AADTenant.
func (p *AzureADProvider) AuthenticateIntegrated(ctx context.Context, attrs *attributes.Attributes) (string, error) {
	cred, err := p.tokenCredential()
	if err != nil {
		return "", base.NewError(base.KindAuthenticationRejected, "AuthenticateIntegrated",
			"no Azure identity available for integrated authentication", err)
	}

	appID := strings.TrimSpace(attrs.Get(attributes.KeyAADApplicationID))
	tok, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{appID + "/.default"}})
	if err != nil {
		return "", base.NewError(base.KindAuthenticationRejected, "AuthenticateIntegrated", err.Error(), err)
	}

	tenant := strings.TrimSpace(attrs.Get(attributes.KeyAADTenant))
	if err := checkTenantClaim(tok.Token, tenant); err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type":           {jwtBearerGrant},
		"requested_token_use":  {"on_behalf_of"},
		"requested_token_type": {saml2TokenType},
		"assertion":            {tok.Token},
		"client_id":            {appID},
		"client_secret":        {attrs.Get(attributes.KeyAADClientSecret)},
		"resource":             {appID},
	}
	return p.requestSAML(ctx, attrs, form, "AuthenticateIntegrated")
}

func (p *AzureADProvider) tokenCredential() (azcore.TokenCredential, error) {
	p.credMu.Lock()
	defer p.credMu.Unlock()
	if p.credential != nil {
		return p.credential, nil
	}
	cred, err := p.newCred()
	if err != nil {
		return nil, err
	}
	p.credential = cred
	return cred, nil
}

func (p *AzureADProvider) requestSAML(ctx context.Context, attrs *attributes.Attributes, form url.Values, op string) (string, error) {
	tenant := strings.TrimSpace(attrs.Get(attributes.KeyAADTenant))
	endpoint := fmt.Sprintf("%s/%s/oauth2/token", p.authority, url.PathEscape(tenant))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", base.NewError(base.KindAuthenticationRejected, op, "failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", base.NewError(base.KindAuthenticationRejected, op, "Azure AD token endpoint unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIdpResponseBytes))
	if err != nil {
		return "", base.NewError(base.KindAuthenticationRejected, op, "failed to read Azure AD response", err)
	}

	var tr aadTokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", base.NewError(base.KindAuthenticationRejected, op,
			fmt.Sprintf("unexpected Azure AD response (HTTP %d)", resp.StatusCode), err)
	}
	if resp.StatusCode != http.StatusOK || tr.Error != "" {
		msg := tr.ErrorDescription
		if msg == "" {
			msg = tr.Error
		}
		if msg == "" {
			msg = fmt.Sprintf("Azure AD returned HTTP %d", resp.StatusCode)
		}
		return "", base.NewError(base.KindAuthenticationRejected, op, msg, nil)
	}
	if tr.AccessToken == "" {
		return "", base.NewError(base.KindAuthenticationRejected, op, "Azure AD response has no access_token", nil)
	}

	assertion, err := decodeBase64URL(tr.AccessToken)
	if err != nil {
		return "", base.NewError(base.KindAuthenticationRejected, op, "access_token is not a base64url SAML assertion", err)
	}
	if p.logger != nil {
		p.logger.Printf("Obtained SAML assertion from Azure AD tenant %s", tenant)
	}
	return wrapSAMLResponse(assertion), nil
}

// wrapSAMLResponse wraps a bare assertion in a successful samlp:Response and
// base64-encodes it, the form STS expects.
func wrapSAMLResponse(assertion []byte) string {
	var sb strings.Builder
	sb.WriteString(`<samlp:Response xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol">`)
	sb.WriteString(`<samlp:Status><samlp:StatusCode Value="urn:oasis:names:tc:SAML:2.0:status:Success"/></samlp:Status>`)
	sb.Write(assertion)
	sb.WriteString(`</samlp:Response>`)
	return base64.StdEncoding.EncodeToString([]byte(sb.String()))
}

func decodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	return base64.RawURLEncoding.DecodeString(s)
}

func checkTenantClaim(token, tenant string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return base.NewError(base.KindAuthenticationRejected, "AuthenticateIntegrated", "Azure identity token is not a JWT", err)
	}
	tid, _ := claims["tid"].(string)
	if !strings.EqualFold(tid, tenant) {
		return base.NewError(base.KindAuthenticationRejected, "AuthenticateIntegrated",
			fmt.Sprintf("signed-in Azure identity belongs to tenant %q, not %q", tid, tenant), nil)
	}
	return nil
}
