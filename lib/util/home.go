package util

import (
	"os"
)

// UserHome returns the current user's home directory, falling back to
// $HOME and then to the working directory.
func UserHome() string {
	homeDir, err := os.UserHomeDir()
	if err == nil {
		return homeDir
	}

	if home := os.Getenv("HOME"); home != "" {
		log.WithError(err).Warn("user_home_dir_failed_using_HOME")
		return home
	}
	if wd, wdErr := os.Getwd(); wdErr == nil {
		log.WithError(err).Warn("user_home_dir_failed_using_working_dir")
		return wd
	}
	panic("go-cbcservice: unable to determine home directory; set $HOME")
}
