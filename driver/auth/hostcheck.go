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
	"net"
	"net/url"
	"strings"

	"tsodbc/platform/driver/base"
)

// HostValidationOptions configures how IdpHost is checked before any
// request is sent to it
type HostValidationOptions struct {
	// AllowPrivateIPs permits hosts resolving to private or loopback addresses
	AllowPrivateIPs bool
	// AllowedSchemes lists permitted URL schemes (default: ["https"])
	AllowedSchemes []string
	// AllowedHostSuffixes restricts hosts to these domain suffixes,
	// e.g. [".okta.com", ".oktapreview.com"]
	AllowedHostSuffixes []string
	// BlockedHosts explicitly blocks certain hostnames
	BlockedHosts []string
	// LookupIP resolves hostnames; defaults to net.LookupIP
	LookupIP func(host string) ([]net.IP, error)
}

// DefaultHostValidationOptions returns https-only validation with private
// addresses blocked
func DefaultHostValidationOptions() HostValidationOptions {
	return HostValidationOptions{
		AllowedSchemes: []string{"https"},
	}
}

// ValidateIdpHost turns an IdpHost attribute into a base URL. A bare host
// gets the https scheme.
func ValidateIdpHost(raw string, opts HostValidationOptions) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, hostError("IdpHost cannot be empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, hostError(fmt.Sprintf("invalid IdpHost: %v", err))
	}
	if err := validateScheme(parsed.Scheme, opts.AllowedSchemes); err != nil {
		return nil, err
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return nil, hostError("IdpHost must contain a hostname")
	}
	if isHostBlocked(hostname, opts.BlockedHosts) {
		return nil, hostError(fmt.Sprintf("hostname %q is blocked", hostname))
	}
	if len(opts.AllowedHostSuffixes) > 0 && !hasAllowedSuffix(hostname, opts.AllowedHostSuffixes) {
		return nil, hostError(fmt.Sprintf("hostname %q is not in the allowed list", hostname))
	}
	if !opts.AllowPrivateIPs {
		if err := validateHostNotPrivate(hostname, opts.LookupIP); err != nil {
			return nil, err
		}
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed, nil
}

func hostError(msg string) error {
	return base.NewError(base.KindMalformedAttributes, "ValidateIdpHost", msg, nil)
}

func validateScheme(scheme string, allowed []string) error {
	if len(allowed) == 0 {
		allowed = []string{"https"}
	}
	scheme = strings.ToLower(scheme)
	for _, a := range allowed {
		if scheme == strings.ToLower(a) {
			return nil
		}
	}
	return hostError(fmt.Sprintf("URL scheme %q is not allowed; permitted schemes: %v", scheme, allowed))
}

func validateHostNotPrivate(hostname string, lookup func(string) ([]net.IP, error)) error {
	var ips []net.IP
	if ip := net.ParseIP(hostname); ip != nil {
		ips = []net.IP{ip}
	} else {
		if lookup == nil {
			lookup = net.LookupIP
		}
		resolved, err := lookup(hostname)
		if err != nil {
			return base.NewError(base.KindAuthenticationRejected, "ValidateIdpHost",
				fmt.Sprintf("failed to resolve hostname %q", hostname), err)
		}
		ips = resolved
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			return hostError(fmt.Sprintf("connection to private/internal IP %s is not allowed (hostname: %s)", ip, hostname))
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}

func isHostBlocked(hostname string, blocked []string) bool {
	hostname = strings.ToLower(hostname)
	for _, b := range blocked {
		if hostname == strings.ToLower(b) {
			return true
		}
	}
	return false
}

func hasAllowedSuffix(hostname string, suffixes []string) bool {
	hostname = strings.ToLower(hostname)
	for _, s := range suffixes {
		s = strings.ToLower(s)
		if strings.HasSuffix(hostname, s) || hostname == strings.TrimPrefix(s, ".") {
			return true
		}
	}
	return false
}
