// Package credentials resolves the secrets needed by the download services.
// Secrets are looked up by key through a chain of backends (environment,
// dotenv file, system keyring): the first backend that knows the key wins.
package credentials

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/geoharvest/geoharvest/service"
)

// Keys of the known secrets
const (
	CopernicusUsername = "COPERNICUS_USERNAME"
	CopernicusPassword = "COPERNICUS_PASSWORD"
	EarthdataToken     = "EARTHDATA_TOKEN"
	AWSAccessKeyID     = "AWS_ACCESS_KEY_ID"
	AWSSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	FTPUsername        = "FTP_USERNAME"
	FTPPassword        = "FTP_PASSWORD"
)

// Resolver finds the secret registered under a key
type Resolver interface {
	Resolve(key string) (string, error)
}

// MissingError is returned when no backend knows the key.
// It is fatal: retrying the resolution cannot succeed.
type MissingError struct {
	Key string
}

func (e MissingError) Error() string {
	return fmt.Sprintf("no credential found for %s", e.Key)
}

func (e MissingError) Fatal() bool { return true }

// Env resolves from the process environment
type Env struct{}

func (Env) Resolve(key string) (string, error) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, nil
	}
	return "", MissingError{Key: key}
}

// EnvFile resolves from a dotenv file. A missing file is not an error, the
// backend simply knows no key.
type EnvFile struct {
	values map[string]string
}

func NewEnvFile(path string) (*EnvFile, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &EnvFile{}, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("NewEnvFile: %w", err)
	}
	return &EnvFile{values: values}, nil
}

func (f *EnvFile) Resolve(key string) (string, error) {
	if v, ok := f.values[key]; ok && v != "" {
		return v, nil
	}
	return "", MissingError{Key: key}
}

// Chain tries each resolver in order and returns the first resolved secret
type Chain []Resolver

func (c Chain) Resolve(key string) (string, error) {
	var err error
	for _, resolver := range c {
		v, rerr := resolver.Resolve(key)
		if rerr == nil {
			return v, nil
		}
		err = service.MergeErrors(true, err, rerr)
	}
	if err == nil {
		err = MissingError{Key: key}
	}
	return "", err
}

// Default is the standard resolution order: environment, then the dotenv file,
// then the system keyring
func Default(envFile string) (Resolver, error) {
	file, err := NewEnvFile(envFile)
	if err != nil {
		return nil, fmt.Errorf("Default.%w", err)
	}
	return Chain{Env{}, file, &Keyring{}}, nil
}
