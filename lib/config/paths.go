package config

import (
	"os"
	"path/filepath"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

const (
	// SecureFilePermissions for the config file and the unix socket
	SecureFilePermissions = 0o600
	// SecureDirPermissions for the base directory
	SecureDirPermissions = 0o700
)

// CreateSecureDirectory creates path (and parents) readable only by the
// current user.
func CreateSecureDirectory(path string) error {
	cleanPath := filepath.Clean(path)

	if err := os.MkdirAll(cleanPath, SecureDirPermissions); err != nil {
		return oops.Wrapf(err, "failed to create directory %q", cleanPath)
	}

	// MkdirAll leaves an existing directory untouched.
	if err := os.Chmod(cleanPath, SecureDirPermissions); err != nil {
		log.WithFields(logger.Fields{
			"at":    "config.CreateSecureDirectory",
			"path":  cleanPath,
			"error": err.Error(),
		}).Warn("could_not_restrict_directory_permissions")
	}
	return nil
}

// RestrictFile sets SecureFilePermissions on an existing file or socket.
// A missing path is not an error.
func RestrictFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return oops.Errorf("expected file but found directory: %s", path)
	}
	if info.Mode().Perm() == SecureFilePermissions {
		return nil
	}

	if err := os.Chmod(path, SecureFilePermissions); err != nil {
		return oops.Wrapf(err, "failed to restrict %q", path)
	}
	log.WithFields(logger.Fields{
		"at":   "config.RestrictFile",
		"path": path,
	}).Debug("restricted_file_permissions")
	return nil
}
