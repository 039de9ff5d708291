package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

type SettingsType struct {
	m map[string]SettingType
}

type SettingType struct {
	Description string
	Value       string
	Secret      bool
}

func NewSettingType(print bool) *SettingsType {
	s := &SettingsType{m: make(map[string]SettingType)}

	s.Set(LISTEN_ADDR, "Server listen address", ":8080")
	s.Set(TLS_ENABLED, "Serve HTTPS with TLS_CERT/TLS_KEY, generating a self-signed pair when missing", "false")
	s.Set(TLS_CERT, "TLS certificate path", "certs/server.crt")
	s.Set(TLS_KEY, "TLS private key path", "certs/server.key")
	s.Set(NTLM_UNICODE_NAMES, "Decode UTF-16LE user and domain names instead of stripping NUL bytes", "false")
	s.Set(NTLM_CHALLENGE_LAYOUT, "NTLM challenge byte layout: compact or legacy", "compact")
	s.Set(CONN_CACHE_TTL, "How long an authenticated connection keeps its identity, 0 disables", "2m")
	s.Set(SESSION_TTL, "Lifetime of the identity session cookie, 0 disables", "30m")
	s.Set(SESSION_SECURE_COOKIE, "Mark the session cookie Secure", "true")
	s.Set(LDAP_URL, "LDAP server url, empty disables directory lookups", "")
	s.Set(LDAP_BASE_DN, "LDAP base DN", "dc=example,dc=com")
	s.Set(LDAP_BIND_DN, "LDAP service account DN", "")
	s.SetSecret(LDAP_BIND_PASSWORD, "LDAP service account password", "")
	s.Set(LDAP_USER_FILTER, "LDAP user filter", "(sAMAccountName=%s)")
	s.Set(LDAP_STARTTLS, "Use StartTLS when connecting to LDAP", "false")
	s.Set(LDAP_SKIP_TLS_VERIFY, "Skip TLS verification when connecting to LDAP", "false")

	if print {
		table := tablewriter.NewWriter(os.Stdout)

		table.Header("KEY", "Description", "value")
		for _, key := range s.Keys() {
			setting := s.m[key]
			value := setting.Value
			if setting.Secret && value != "" {
				value = "********"
			}
			table.Append([]string{key, setting.Description, value})
		}
		table.Render()
	}
	return s
}

func (s *SettingsType) Get(id string) string {
	return s.m[id].Value
}

func (s *SettingsType) Has(id string) bool {
	return len(s.m[id].Value) > 0
}

func (s *SettingsType) IsTrue(id string) bool {
	v := strings.ToLower(strings.TrimSpace(s.m[id].Value))
	return v == "1" || v == "true" || v == "yes"
}

// Duration parses the setting as a time.Duration. A bare number is read as
// seconds.
func (s *SettingsType) Duration(id string) (time.Duration, error) {
	v := strings.TrimSpace(s.m[id].Value)
	if v == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func (s *SettingsType) Keys() []string {
	keys := make([]string, 0, len(s.m))
	for key := range s.m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *SettingsType) Set(id string, description string, defaultValue string) {
	if value, ok := os.LookupEnv(id); ok {
		s.m[id] = SettingType{Description: description, Value: value}
	} else {
		s.m[id] = SettingType{Description: description, Value: defaultValue}
	}
}

func (s *SettingsType) SetSecret(id string, description string, defaultValue string) {
	s.Set(id, description, defaultValue)
	setting := s.m[id]
	setting.Secret = true
	s.m[id] = setting
}

const (
	LISTEN_ADDR           = "LISTEN_ADDR"
	TLS_ENABLED           = "TLS_ENABLED"
	TLS_CERT              = "TLS_CERT"
	TLS_KEY               = "TLS_KEY"
	NTLM_UNICODE_NAMES    = "NTLM_UNICODE_NAMES"
	NTLM_CHALLENGE_LAYOUT = "NTLM_CHALLENGE_LAYOUT"
	CONN_CACHE_TTL        = "CONN_CACHE_TTL"
	SESSION_TTL           = "SESSION_TTL"
	SESSION_SECURE_COOKIE = "SESSION_SECURE_COOKIE"
	LDAP_URL              = "LDAP_URL"
	LDAP_BASE_DN          = "LDAP_BASE_DN"
	LDAP_BIND_DN          = "LDAP_BIND_DN"
	LDAP_BIND_PASSWORD    = "LDAP_BIND_PASSWORD"
	LDAP_USER_FILTER      = "LDAP_USER_FILTER"
	LDAP_STARTTLS         = "LDAP_STARTTLS"
	LDAP_SKIP_TLS_VERIFY  = "LDAP_SKIP_TLS_VERIFY"
)
