// Package adminauth verifies credentials for the operational endpoints.
package adminauth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"github.com/dgellow/vetfront/internal/config"
)

// Verify checks basic-auth credentials against the admin config. It always
// runs the bcrypt comparison so response timing does not reveal whether
// the username matched.
func Verify(cfg *config.AdminConfig, username, password string) bool {
	if cfg == nil || !cfg.Enabled {
		return false
	}

	usernameOK := subtle.ConstantTimeCompare([]byte(cfg.Username), []byte(username)) == 1
	passwordOK := bcrypt.CompareHashAndPassword([]byte(cfg.HashedPassword), []byte(password)) == nil
	return usernameOK && passwordOK
}
