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
	"context"
	"fmt"
	"os"
	"strings"

	"tsodbc/platform/driver/attributes"
	"tsodbc/platform/driver/base"
)

// DefaultEnvPrefix prefixes environment variables that supply attributes,
// e.g. TSODBC_REGION or TSODBC_ROLE_ARN.
const DefaultEnvPrefix = "TSODBC_"

// EnvDSNFile names the data source file used when none is configured
// explicitly.
const EnvDSNFile = "TSODBC_DSN_FILE"

// SecretRefPrefix marks an attribute value stored in AWS Secrets Manager
const SecretRefPrefix = "secretsmanager:"

// LoadFromEnv collects attributes from environment variables named
// prefix + attribute name. Matching ignores case and underscores, so
// TSODBC_AAD_TENANT sets AADTenant. Unknown names are ignored.
func LoadFromEnv(prefix string) *attributes.Attributes {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	found := make(map[string]string)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(strings.ToUpper(name), strings.ToUpper(prefix)) {
			continue
		}
		key := strings.ReplaceAll(name[len(prefix):], "_", "")
		canonical, known := attributes.Canonical(key)
		if !known {
			continue
		}
		found[canonical] = value
	}
	return attributes.FromMap(found)
}

// DSNFileFromEnv returns the data source file path from TSODBC_DSN_FILE
func DSNFileFromEnv() string {
	return os.Getenv(EnvDSNFile)
}

// SecretRef is a parsed secretsmanager:<arn>[#field] reference
type SecretRef struct {
	ARN   string
	Field string
}

// ParseSecretRef reports whether value is a secret reference and parses it
func ParseSecretRef(value string) (SecretRef, bool) {
	v := strings.TrimSpace(value)
	if !strings.HasPrefix(strings.ToLower(v), SecretRefPrefix) {
		return SecretRef{}, false
	}
	v = v[len(SecretRefPrefix):]
	ref := SecretRef{ARN: v}
	if idx := strings.LastIndex(v, "#"); idx != -1 {
		ref.ARN, ref.Field = v[:idx], v[idx+1:]
	}
	return ref, ref.ARN != ""
}

// ResolveSecretReferences returns a copy of attrs with every secret reference
// replaced by the secret's value. Without a field the secret's "value" entry
// is used, then the entry named like the attribute (case-insensitive).
func ResolveSecretReferences(ctx context.Context, sm SecretsManager, attrs *attributes.Attributes) (*attributes.Attributes, error) {
	out := attrs.Clone()
	for _, key := range attrs.Keys() {
		ref, ok := ParseSecretRef(attrs.Get(key))
		if !ok {
			continue
		}
		if sm == nil {
			return nil, base.NewError(base.KindConfigurationFailed, "ResolveSecret",
				fmt.Sprintf("attribute %s references a secret but no secrets manager is configured", key), nil)
		}
		secret, err := sm.GetSecret(ctx, ref.ARN)
		if err != nil {
			return nil, base.NewError(base.KindConfigurationFailed, "ResolveSecret",
				fmt.Sprintf("failed to resolve secret for attribute %s", key), err)
		}
		value, ok := pickSecretField(secret, ref.Field, key)
		if !ok {
			return nil, base.NewError(base.KindConfigurationFailed, "ResolveSecret",
				fmt.Sprintf("secret %s has no field for attribute %s", maskARN(ref.ARN), key), nil)
		}
		out.Set(key, value)
	}
	return out, nil
}

func pickSecretField(secret map[string]string, field, key string) (string, bool) {
	if field != "" {
		v, ok := secret[field]
		return v, ok
	}
	if v, ok := secret["value"]; ok {
		return v, true
	}
	for k, v := range secret {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
