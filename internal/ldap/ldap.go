package ldap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"windowsauth/internal/config"
	"windowsauth/internal/types"
)

const dialTimeout = 10 * time.Second

var ErrUserNotFound = errors.New("user not found in directory")

// Directory enriches resolved identities with attributes from LDAP or Active
// Directory using a service account.
type Directory struct {
	settings *config.SettingsType
}

func NewDirectory(settings *config.SettingsType) *Directory {
	return &Directory{settings: settings}
}

func (d *Directory) Enabled() bool {
	return d != nil && d.settings != nil && d.settings.Has(config.LDAP_URL)
}

func (d *Directory) Lookup(ctx context.Context, id types.Identity) (types.Identity, error) {
	if !d.Enabled() {
		return id, nil
	}
	if err := ctx.Err(); err != nil {
		return id, err
	}

	conn, err := dialLDAP(d.settings)
	if err != nil {
		return id, fmt.Errorf("ldap dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetTimeout(time.Until(deadline))
	}

	if bindDN := d.settings.Get(config.LDAP_BIND_DN); bindDN != "" {
		if err := conn.Bind(bindDN, d.settings.Get(config.LDAP_BIND_PASSWORD)); err != nil {
			return id, fmt.Errorf("ldap bind failed: %w", err)
		}
	}

	filter := fmt.Sprintf(d.settings.Get(config.LDAP_USER_FILTER), ldap.EscapeFilter(normalizeUser(id.User)))
	searchReq := ldap.NewSearchRequest(
		d.settings.Get(config.LDAP_BASE_DN),
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases, 1, 0, false,
		filter,
		[]string{"displayName", "cn", "mail"},
		nil,
	)

	sr, err := conn.Search(searchReq)
	if err != nil {
		return id, fmt.Errorf("ldap search: %w", err)
	}
	if len(sr.Entries) == 0 {
		return id, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}

	entry := sr.Entries[0]
	id.DisplayName = entry.GetAttributeValue("displayName")
	if id.DisplayName == "" {
		id.DisplayName = entry.GetAttributeValue("cn")
	}
	id.Mail = entry.GetAttributeValue("mail")
	return id, nil
}

func dialLDAP(settings *config.SettingsType) (*ldap.Conn, error) {

	// #nosec G402 -- skip TLS verification if configured
	ldapUrl := settings.Get(config.LDAP_URL)
	insecureSkipVerify := settings.IsTrue(config.LDAP_SKIP_TLS_VERIFY)
	startTLS := settings.IsTrue(config.LDAP_STARTTLS)

	conn, err := ldap.DialURL(ldapUrl,
		ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: insecureSkipVerify}),
		ldap.DialWithDialer(&net.Dialer{Timeout: dialTimeout}),
	)
	if err != nil {
		return nil, err
	}

	if startTLS && strings.HasPrefix(ldapUrl, "ldap://") {
		// #nosec G402 -- skip TLS verification if configured
		if err := conn.StartTLS(&tls.Config{InsecureSkipVerify: insecureSkipVerify}); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return conn, nil
}

// normalizeUser drops a DOMAIN\ prefix or @realm suffix from a login name.
func normalizeUser(user string) string {
	user = strings.TrimSpace(user)
	if user == "" {
		return ""
	}
	if idx := strings.LastIndex(user, "\\"); idx >= 0 {
		user = user[idx+1:]
	}
	if idx := strings.Index(user, "@"); idx > 0 {
		user = user[:idx]
	}
	return user
}
