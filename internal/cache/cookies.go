package cache

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fragmede/authpanel/internal/api"
)

var _ api.CookieStore = (*DB)(nil)

// LoadCookies returns the unexpired cookies stored for host.
func (d *DB) LoadCookies(host string) ([]*http.Cookie, error) {
	rows, err := d.db.Query(`SELECT name, value, domain, path, expires_unix, secure, http_only
		FROM cookies WHERE host = ? AND expires_unix > ? ORDER BY name`, host, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("loading cookies: %w", err)
	}
	defer rows.Close()

	var cookies []*http.Cookie
	for rows.Next() {
		var c http.Cookie
		var expires int64
		var secure, httpOnly int
		if err := rows.Scan(&c.Name, &c.Value, &c.Domain, &c.Path, &expires, &secure, &httpOnly); err != nil {
			return nil, err
		}
		c.Expires = time.Unix(expires, 0)
		c.Secure = secure != 0
		c.HttpOnly = httpOnly != 0
		cookies = append(cookies, &c)
	}
	return cookies, rows.Err()
}

// SaveCookies records cookies set by host. Deleted and expired cookies are
// removed; session cookies are not kept across runs, like a browser.
func (d *DB) SaveCookies(host string, cookies []*http.Cookie) error {
	now := time.Now()
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		expires, ok := api.Expiry(c, now)
		if !ok || expires.IsZero() {
			if _, err := tx.Exec(`DELETE FROM cookies WHERE host = ? AND name = ? AND path = ?`, host, c.Name, path); err != nil {
				return fmt.Errorf("deleting cookie %s: %w", c.Name, err)
			}
			continue
		}
		_, err := tx.Exec(`INSERT OR REPLACE INTO cookies
			(host, name, path, value, domain, expires_unix, secure, http_only, saved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			host, c.Name, path, c.Value, c.Domain, expires.Unix(), boolInt(c.Secure), boolInt(c.HttpOnly), now.Unix())
		if err != nil {
			return fmt.Errorf("saving cookie %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// ClearCookies removes every cookie stored for host.
func (d *DB) ClearCookies(host string) error {
	_, err := d.db.Exec(`DELETE FROM cookies WHERE host = ?`, host)
	return err
}

// PruneCookies deletes expired cookies for all hosts.
func (d *DB) PruneCookies() (int64, error) {
	res, err := d.db.Exec(`DELETE FROM cookies WHERE expires_unix <= ?`, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
