package config

import (
	"fmt"
	"strings"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

// MakeConnStr builds a libpq keyword/value connection string for the postgres storage backend.
func MakeConnStr(conf Database) (string, error) {
	host, err := commoncfg.LoadValueFromSourceRef(conf.Host)
	if err != nil {
		return "", fmt.Errorf("loading db host: %w", err)
	}

	user, err := commoncfg.LoadValueFromSourceRef(conf.User)
	if err != nil {
		return "", fmt.Errorf("loading db user: %w", err)
	}

	password, err := commoncfg.LoadValueFromSourceRef(conf.Password)
	if err != nil {
		return "", fmt.Errorf("loading db password: %w", err)
	}

	params := [][2]string{
		{"host", string(host)},
		{"user", string(user)},
		{"password", string(password)},
		{"dbname", conf.Name},
		{"port", conf.Port},
	}
	if conf.SSLMode != "" {
		params = append(params, [2]string{"sslmode", conf.SSLMode})
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p[0]+"="+quoteValue(p[1]))
	}

	return strings.Join(parts, " "), nil
}

// quoteValue quotes values libpq would otherwise split or misread.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
