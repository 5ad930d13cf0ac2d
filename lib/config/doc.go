// Package config loads go-cbcservice settings with viper.
//
// Settings come from $HOME/.go-cbcservice/config.yaml, which is written
// with the defaults on first run, or from the file named by --config.
// Keys are grouped by component:
//
//	service.*    session table and request loop
//	transport.*  socket listener
//	metrics.*    Prometheus endpoint
//	client.*     caller-side options used by selftest
package config
