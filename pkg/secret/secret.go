// Package secret generates database credentials and keeps the two
// representations stored in the credentials secret consistent: the raw
// password key and the password embedded inside the connection URL.
package secret

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/cyberedu/rangectl/pkg/common"
	"github.com/cyberedu/rangectl/pkg/connector"
	"github.com/cyberedu/rangectl/pkg/logger"
	"github.com/cyberedu/rangectl/pkg/runner"
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GeneratePassword returns a random alphanumeric password. Alphanumeric only,
// so the value never needs escaping inside connection URLs or shell-quoted
// manifests.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		length = common.DefaultGeneratedPwLen
	}
	buf := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "failed to generate password")
		}
		buf[i] = passwordAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// DatabaseURL assembles the canonical connection URL stored alongside the
// raw password.
func DatabaseURL(user, password, host string, port int, dbName string) string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s", user, password, host, port, dbName)
}

// Report describes the outcome of a consistency check.
type Report struct {
	Consistent bool
	Repaired   bool
}

// ConsistencyChecker verifies that the password key and the connection URL
// inside the credentials secret agree, repairing the URL when they drift.
type ConsistencyChecker struct {
	rnr  runner.Runner
	conn connector.Connector
	log  *logger.Logger
}

func NewConsistencyChecker(rnr runner.Runner, conn connector.Connector, log *logger.Logger) *ConsistencyChecker {
	return &ConsistencyChecker{rnr: rnr, conn: conn, log: log}
}

// Verify reads the credentials secret and compares the raw password against
// the password embedded in the connection URL. On mismatch the URL is
// rebuilt around the raw password, which is authoritative because the
// database container consumed it at init time, and patched back with a
// merge patch touching only the URL key.
func (c *ConsistencyChecker) Verify(ctx context.Context, namespace, secretName string) (Report, error) {
	out, err := c.rnr.KubectlGet(ctx, c.conn, "secret", secretName, runner.KubectlGetOptions{
		Namespace:    namespace,
		OutputFormat: "json",
	})
	if err != nil {
		return Report{}, errors.Wrapf(err, "failed to read secret %s", secretName)
	}

	password, err := decodeKey(out, common.PostgresPasswordKey)
	if err != nil {
		return Report{}, err
	}
	rawURL, err := decodeKey(out, common.DatabaseURLKey)
	if err != nil {
		return Report{}, err
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Report{}, errors.Wrapf(err, "secret %s holds a malformed connection URL", secretName)
	}
	embedded, _ := parsed.User.Password()
	if embedded == password {
		return Report{Consistent: true}, nil
	}

	c.log.Warnf("secret %s: connection URL password drifted from the raw password, repairing", secretName)
	repaired := DatabaseURL(parsed.User.Username(), password, parsed.Hostname(), portOf(parsed), strings.TrimPrefix(parsed.Path, "/"))

	patch, err := sjson.Set("{}", "data."+escapeKey(common.DatabaseURLKey), base64.StdEncoding.EncodeToString([]byte(repaired)))
	if err != nil {
		return Report{}, errors.Wrap(err, "failed to build secret patch")
	}
	if err := c.rnr.KubectlPatch(ctx, c.conn, "secret", secretName, runner.KubectlPatchOptions{
		Namespace: namespace,
		Type:      "merge",
		Patch:     patch,
	}); err != nil {
		return Report{}, errors.Wrapf(err, "failed to repair secret %s", secretName)
	}
	return Report{Consistent: false, Repaired: true}, nil
}

func decodeKey(secretJSON, key string) (string, error) {
	val := gjson.Get(secretJSON, "data."+escapeKey(key))
	if !val.Exists() {
		return "", errors.Errorf("secret is missing the %s key", key)
	}
	decoded, err := base64.StdEncoding.DecodeString(val.String())
	if err != nil {
		return "", errors.Wrapf(err, "secret key %s is not valid base64", key)
	}
	return string(decoded), nil
}

func portOf(u *url.URL) int {
	if u.Port() == "" {
		return common.DatabasePort
	}
	var port int
	fmt.Sscanf(u.Port(), "%d", &port)
	return port
}

// escapeKey keeps dots inside secret key names from being read as JSON path
// separators.
func escapeKey(key string) string {
	return strings.ReplaceAll(key, ".", "\\.")
}
