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

package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"tsodbc/platform/driver/attributes"
	"tsodbc/platform/driver/base"
)

// DSNFile represents the root structure of a data source file
type DSNFile struct {
	Version     string              `yaml:"version"`
	DataSources map[string]DSNEntry `yaml:"data_sources"`
}

// DSNEntry is one named data source. Attributes use the same names as the
// connection string.
type DSNEntry struct {
	Description string            `yaml:"description,omitempty"`
	Disabled    bool              `yaml:"disabled,omitempty"`
	Attributes  map[string]string `yaml:"attributes"`
}

// DSNRegistry resolves the DSN attribute against a YAML data source file
type DSNRegistry struct {
	filePath string

	mu      sync.RWMutex
	sources map[string]*attributes.Attributes
}

// NewDSNRegistry loads a data source file
func NewDSNRegistry(filePath string) (*DSNRegistry, error) {
	r := &DSNRegistry{filePath: filePath}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewDSNRegistryFromBytes parses data source YAML already in memory
func NewDSNRegistryFromBytes(data []byte) (*DSNRegistry, error) {
	r := &DSNRegistry{}
	if err := r.load(data); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the data source file
func (r *DSNRegistry) Reload() error {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return base.NewError(base.KindConfigurationFailed, "LoadDSNFile",
			fmt.Sprintf("failed to read data source file %s", r.filePath), err)
	}
	return r.load(data)
}

func (r *DSNRegistry) load(data []byte) error {
	expanded := expandEnvVars(string(data))

	var file DSNFile
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return base.NewError(base.KindConfigurationFailed, "LoadDSNFile", "failed to parse data source file", err)
	}
	if err := ValidateDSNFile(&file); err != nil {
		return err
	}

	sources := make(map[string]*attributes.Attributes, len(file.DataSources))
	for name, entry := range file.DataSources {
		if entry.Disabled {
			continue
		}
		sources[strings.ToLower(name)] = attributes.FromMap(entry.Attributes)
	}

	r.mu.Lock()
	r.sources = sources
	r.mu.Unlock()
	return nil
}

// Lookup returns a copy of the named data source's attributes. Names are
// case-insensitive.
func (r *DSNRegistry) Lookup(name string) (*attributes.Attributes, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.sources[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// Names returns the enabled data source names, sorted
func (r *DSNRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Expand overlays attrs on the data source named by its DSN attribute.
// Values from attrs win. Without a DSN attribute attrs is returned as a copy.
func (r *DSNRegistry) Expand(attrs *attributes.Attributes) (*attributes.Attributes, error) {
	name := strings.TrimSpace(attrs.Get(attributes.KeyDSN))
	if name == "" {
		return attrs.Clone(), nil
	}
	defaults, ok := r.Lookup(name)
	if !ok {
		return nil, base.NewError(base.KindConfigurationFailed, "ExpandDSN",
			fmt.Sprintf("data source name %q not found", name), nil)
	}
	return defaults.Merge(attrs), nil
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands ${VAR}, ${VAR:-default} and $VAR references.
// Undefined variables expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}

// ValidateDSNFile checks the structure of a data source file
func ValidateDSNFile(file *DSNFile) error {
	if file.Version == "" {
		return base.NewError(base.KindConfigurationFailed, "ValidateDSNFile", "data source file must specify a version", nil)
	}
	for name, entry := range file.DataSources {
		if strings.TrimSpace(name) == "" {
			return base.NewError(base.KindConfigurationFailed, "ValidateDSNFile", "data source with an empty name", nil)
		}
		for key := range entry.Attributes {
			if strings.EqualFold(key, attributes.KeyDSN) {
				return base.NewError(base.KindConfigurationFailed, "ValidateDSNFile",
					fmt.Sprintf("data source %q must not reference another DSN", name), nil)
			}
		}
	}
	return nil
}

// GenerateExampleDSNFile returns an example data source file
func GenerateExampleDSNFile() string {
	return `# Timestream data sources
# Values may reference environment variables with ${VAR_NAME} or
# ${VAR_NAME:-default}. Secrets can point at AWS Secrets Manager with
# secretsmanager:<arn>[#field].

version: "1.0"

data_sources:
  # Access keys or the default AWS credential chain
  timestream_iam:
    description: "IAM credentials from the environment"
    attributes:
      Auth: IAM
      Region: ${AWS_REGION:-us-east-1}
      ProfileName: ${AWS_PROFILE:-default}

  # Azure AD federation
  timestream_aad:
    description: "Azure AD SAML federation"
    attributes:
      Auth: AAD
      IdpName: AzureAD
      AADTenant: ${AAD_TENANT}
      AADApplicationID: ${AAD_APP_ID}
      AADClientSecret: secretsmanager:${AAD_SECRET_ARN}#client_secret
      RoleARN: ${TS_ROLE_ARN}
      IdpARN: ${TS_IDP_ARN}
      Region: ${AWS_REGION:-us-east-1}

  # Okta federation
  timestream_okta:
    description: "Okta SAML federation"
    disabled: true
    attributes:
      Auth: OKTA
      IdpName: Okta
      IdpHost: ${OKTA_HOST}
      OktaApplicationID: ${OKTA_APP_ID}
      RoleARN: ${TS_ROLE_ARN}
      IdpARN: ${TS_IDP_ARN}
`
}
