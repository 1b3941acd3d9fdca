package app

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"
)

const (
	DefaultAuthFile = "auth.secret"
	authRealm       = `Basic realm="Recycle Kalender Audit"`
)

// ErrAuthFileExists is returned by CreateAuthFile when overwrite is not allowed.
var ErrAuthFileExists = errors.New("auth file already exists")

// argon2Params are the Argon2id settings (OWASP recommended)
type argon2Params struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
	saltLen int
}

var defaultArgon2 = argon2Params{
	time:    1,
	memory:  64 * 1024,
	threads: 4,
	keyLen:  32,
	saltLen: 16,
}

// Authenticator guards the operator endpoints with Basic Auth.
type Authenticator struct {
	user string
	hash string
}

// AuthFilePath resolves the auth file: explicit path, else next to the binary.
func AuthFilePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(execPath), DefaultAuthFile), nil
}

// LoadAuthenticator reads a `username:hash` file. A missing file returns
// (nil, nil); the operator endpoints are then not served at all.
func LoadAuthenticator(path string) (*Authenticator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("file", path).Warn("No auth file found, audit endpoint disabled (run `recycle-kalender hash-password` to create one)")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read auth file: %w", err)
	}

	user, hash, ok := strings.Cut(strings.TrimSpace(string(data)), ":")
	if !ok || user == "" || hash == "" {
		return nil, fmt.Errorf("invalid auth file format (expected: username:hash)")
	}

	log.WithFields(log.Fields{"user": user, "file": path}).Info("Basic Auth enabled for audit endpoint")
	return &Authenticator{user: user, hash: hash}, nil
}

// RequireAuth rejects requests without valid credentials
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) == 1

		passMatch := false
		if ok && userMatch {
			var err error
			passMatch, err = VerifyPassword(pass, a.hash)
			if err != nil {
				log.WithError(err).Error("Error verifying password")
			}
		}

		if !ok || !userMatch || !passMatch {
			log.WithFields(log.Fields{"remote": c.ClientIP(), "user": user}).Warn("Failed auth attempt")
			c.Header("WWW-Authenticate", authRealm)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

// HashPassword creates an Argon2id hash encoded as
// $argon2id$v=19$m=65536,t=1,p=4$salt$hash
func HashPassword(password string) (string, error) {
	p := defaultArgon2
	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// VerifyPassword checks password against an encoded Argon2id hash
func VerifyPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, fmt.Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return false, fmt.Errorf("not an argon2id hash")
	}

	var p argon2Params
	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &threads); err != nil {
		return false, fmt.Errorf("failed to parse hash parameters: %w", err)
	}
	p.threads = uint8(threads)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	got := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

// CreateAuthFile writes `username:hash` to path with mode 0400
func CreateAuthFile(path, username, password string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return fmt.Errorf("%w: %s", ErrAuthFileExists, path)
		}
		// the file is read-only, so it has to be removed first
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove existing auth file: %w", err)
		}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := os.WriteFile(path, []byte(username+":"+hash+"\n"), 0400); err != nil {
		return fmt.Errorf("failed to write auth file: %w", err)
	}
	return nil
}
