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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"tsodbc/platform/driver/attributes"
	"tsodbc/platform/driver/base"
)

// OktaOptions holds options for creating an OktaProvider
type OktaOptions struct {
	HTTPClient *http.Client
	// Sessions, when set, keeps Okta session ids so later connections can
	// authenticate without a password.
	Sessions       *SessionCache
	HostValidation HostValidationOptions
	Logger         *log.Logger
}

// OktaProvider authenticates against the Okta authn API and fetches the
// SAML response from the AWS app's SSO endpoint
type OktaProvider struct {
	client   *http.Client
	sessions *SessionCache
	hostOpts HostValidationOptions
	logger   *log.Logger
}

// NewOktaProvider creates an OktaProvider
func NewOktaProvider(opts OktaOptions) *OktaProvider {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &OktaProvider{
		client:   client,
		sessions: opts.Sessions,
		hostOpts: opts.HostValidation,
		logger:   opts.Logger,
	}
}

// Name returns the provider name
func (p *OktaProvider) Name() string { return "Okta" }

// Validate requires IdpHost and OktaApplicationID and checks the host
func (p *OktaProvider) Validate(attrs *attributes.Attributes) error {
	if err := requireAttributes(attrs, "Validate", attributes.KeyIdpHost, attributes.KeyOktaApplicationID); err != nil {
		return err
	}
	u, err := url.Parse(normalizeHost(attrs.Get(attributes.KeyIdpHost)))
	if err != nil || u.Hostname() == "" {
		return hostError(fmt.Sprintf("invalid IdpHost %q", attrs.Get(attributes.KeyIdpHost)))
	}
	return validateScheme(u.Scheme, p.hostOpts.AllowedSchemes)
}

type oktaAuthnResponse struct {
	Status       string `json:"status"`
	SessionToken string `json:"sessionToken"`
	ExpiresAt    string `json:"expiresAt"`
	ErrorCode    string `json:"errorCode"`
	ErrorSummary string `json:"errorSummary"`
}

type oktaSessionResponse struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Authenticate exchanges username and password for a session token, then
// fetches the SAML response for OktaApplicationID
func (p *OktaProvider) Authenticate(ctx context.Context, attrs *attributes.Attributes, username, password string) (string, error) {
	baseURL, err := ValidateIdpHost(attrs.Get(attributes.KeyIdpHost), p.hostOpts)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", base.NewError(base.KindAuthenticationRejected, "Authenticate", "failed to encode authn request", err)
	}
	var authn oktaAuthnResponse
	status, err := p.doJSON(ctx, http.MethodPost, baseURL.String()+"/api/v1/authn", payload, &authn)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", base.NewError(base.KindAuthenticationRejected, "Authenticate", oktaMessage(authn, status), nil)
	}
	if authn.Status != "SUCCESS" || authn.SessionToken == "" {
		return "", base.NewError(base.KindAuthenticationRejected, "Authenticate",
			fmt.Sprintf("Okta authentication status %s; only SUCCESS is supported", authn.Status), nil)
	}

	appID := strings.TrimSpace(attrs.Get(attributes.KeyOktaApplicationID))
	if p.sessions == nil {
		return p.fetchSAML(ctx, baseURL, appID, "onetimetoken", authn.SessionToken, "")
	}

	sess, err := p.createSession(ctx, baseURL, authn.SessionToken)
	if err != nil {
		return "", err
	}
	if err := p.sessions.Store(baseURL.Host, sess.ID, sess.ExpiresAt); err != nil && p.logger != nil {
		p.logger.Printf("Could not cache Okta session for %s: %v", baseURL.Host, err)
	}
	return p.fetchSAML(ctx, baseURL, appID, "", "", sess.ID)
}

// AuthenticateIntegrated reuses a cached Okta session for IdpHost
func (p *OktaProvider) AuthenticateIntegrated(ctx context.Context, attrs *attributes.Attributes) (string, error) {
	baseURL, err := ValidateIdpHost(attrs.Get(attributes.KeyIdpHost), p.hostOpts)
	if err != nil {
		return "", err
	}
	if p.sessions == nil {
		return "", base.NewError(base.KindAuthenticationRejected, "AuthenticateIntegrated",
			"Okta integrated authentication needs a session cache; provide UID and PWD", nil)
	}
	sid, ok := p.sessions.Load(baseURL.Host)
	if !ok {
		return "", base.NewError(base.KindAuthenticationRejected, "AuthenticateIntegrated",
			fmt.Sprintf("no active Okta session for %s; provide UID and PWD", baseURL.Host), nil)
	}

	appID := strings.TrimSpace(attrs.Get(attributes.KeyOktaApplicationID))
	assertion, err := p.fetchSAML(ctx, baseURL, appID, "", "", sid)
	if err != nil {
		// The cached session is no longer honoured by Okta.
		_ = p.sessions.Delete(baseURL.Host)
		return "", err
	}
	return assertion, nil
}

func (p *OktaProvider) createSession(ctx context.Context, baseURL *url.URL, sessionToken string) (*oktaSessionResponse, error) {
	payload, err := json.Marshal(map[string]string{"sessionToken": sessionToken})
	if err != nil {
		return nil, base.NewError(base.KindAuthenticationRejected, "CreateSession", "failed to encode session request", err)
	}
	var sess oktaSessionResponse
	status, err := p.doJSON(ctx, http.MethodPost, baseURL.String()+"/api/v1/sessions", payload, &sess)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || sess.ID == "" {
		return nil, base.NewError(base.KindAuthenticationRejected, "CreateSession",
			fmt.Sprintf("Okta session creation failed with HTTP %d", status), nil)
	}
	return &sess, nil
}

func (p *OktaProvider) doJSON(ctx context.Context, method, endpoint string, payload []byte, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, base.NewError(base.KindAuthenticationRejected, "Authenticate", "failed to build Okta request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, base.NewError(base.KindAuthenticationRejected, "Authenticate", "Okta unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIdpResponseBytes))
	if err != nil {
		return resp.StatusCode, base.NewError(base.KindAuthenticationRejected, "Authenticate", "failed to read Okta response", err)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, base.NewError(base.KindAuthenticationRejected, "Authenticate",
				fmt.Sprintf("unexpected Okta response (HTTP %d)", resp.StatusCode), err)
		}
	}
	return resp.StatusCode, nil
}

// fetchSAML loads the app's SSO page either with a one-time token query
// parameter or with the sid session cookie, and extracts SAMLResponse.
func (p *OktaProvider) fetchSAML(ctx context.Context, baseURL *url.URL, appID, tokenParam, token, sid string) (string, error) {
	endpoint := fmt.Sprintf("%s/app/amazon_aws/%s/sso/saml", baseURL.String(), url.PathEscape(appID))
	if tokenParam != "" {
		endpoint += "?" + url.Values{tokenParam: {token}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", base.NewError(base.KindAuthenticationRejected, "FetchSAML", "failed to build SAML request", err)
	}
	req.Header.Set("Accept", "text/html")
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", base.NewError(base.KindAuthenticationRejected, "FetchSAML", "Okta unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", base.NewError(base.KindAuthenticationRejected, "FetchSAML",
			fmt.Sprintf("Okta SSO endpoint returned HTTP %d", resp.StatusCode), nil)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxIdpResponseBytes))
	if err != nil {
		return "", base.NewError(base.KindAuthenticationRejected, "FetchSAML", "failed to parse Okta SSO page", err)
	}
	value := findInputValue(doc, "SAMLResponse")
	if value == "" {
		return "", base.NewError(base.KindAuthenticationRejected, "FetchSAML",
			"SAMLResponse not found in Okta SSO page; the session may have expired", nil)
	}
	if p.logger != nil {
		p.logger.Printf("Obtained SAML response from Okta host %s", baseURL.Host)
	}
	return value, nil
}

// findInputValue walks the document for <input name=...> and returns its
// value attribute
func findInputValue(n *html.Node, name string) string {
	if n.Type == html.ElementNode && n.Data == "input" {
		var inputName, value string
		for _, a := range n.Attr {
			switch a.Key {
			case "name":
				inputName = a.Val
			case "value":
				value = a.Val
			}
		}
		if inputName == name {
			return value
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if v := findInputValue(c, name); v != "" {
			return v
		}
	}
	return ""
}

func oktaMessage(r oktaAuthnResponse, status int) string {
	if r.ErrorSummary != "" {
		return r.ErrorSummary
	}
	if r.ErrorCode != "" {
		return r.ErrorCode
	}
	return fmt.Sprintf("Okta returned HTTP %d", status)
}

func normalizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return "https://" + raw
	}
	return raw
}
