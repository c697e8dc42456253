package credentials_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/geoharvest/geoharvest/interface/credentials"
	"github.com/geoharvest/geoharvest/service"
)

func TestEnv(t *testing.T) {
	t.Setenv("COPERNICUS_USERNAME", "alice")
	v, err := credentials.Env{}.Resolve(credentials.CopernicusUsername)
	if err != nil || v != "alice" {
		t.Errorf("unexpected: %q, %v", v, err)
	}
	_, err = credentials.Env{}.Resolve("GEOHARVEST_TEST_UNSET")
	var missing credentials.MissingError
	if !errors.As(err, &missing) {
		t.Errorf("expected MissingError, got %v", err)
	}
}

func TestEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("COPERNICUS_USERNAME=bob\nCOPERNICUS_PASSWORD=secret\n"), 0600); err != nil {
		t.Fatal(err)
	}
	file, err := credentials.NewEnvFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if v, err := file.Resolve(credentials.CopernicusPassword); err != nil || v != "secret" {
		t.Errorf("unexpected: %q, %v", v, err)
	}
	if _, err := file.Resolve(credentials.EarthdataToken); err == nil {
		t.Errorf("expected error")
	}
}

func TestEnvFileMissingFile(t *testing.T) {
	file, err := credentials.NewEnvFile(filepath.Join(t.TempDir(), "nope.env"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := file.Resolve(credentials.CopernicusUsername); err == nil {
		t.Errorf("expected error")
	}
}

func TestChainPrecedence(t *testing.T) {
	// the environment takes precedence over the file
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("COPERNICUS_USERNAME=from_file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	file, err := credentials.NewEnvFile(path)
	if err != nil {
		t.Fatal(err)
	}
	chain := credentials.Chain{credentials.Env{}, file}

	t.Setenv("COPERNICUS_USERNAME", "from_env")
	if v, _ := chain.Resolve(credentials.CopernicusUsername); v != "from_env" {
		t.Errorf("expected from_env, got %q", v)
	}

	os.Unsetenv("COPERNICUS_USERNAME")
	if v, _ := chain.Resolve(credentials.CopernicusUsername); v != "from_file" {
		t.Errorf("expected from_file, got %q", v)
	}
}

func TestChainMissingIsFatal(t *testing.T) {
	chain := credentials.Chain{credentials.Env{}}
	_, err := chain.Resolve("GEOHARVEST_TEST_UNSET")
	if err == nil {
		t.Fatal("expected error")
	}
	if !service.Fatal(err) {
		t.Errorf("a missing credential must be fatal")
	}
}

func TestKeyring(t *testing.T) {
	keyring.MockInit()
	k := credentials.Keyring{}
	if err := k.Set(credentials.EarthdataToken, "token123"); err != nil {
		t.Fatal(err)
	}
	if v, err := k.Resolve(credentials.EarthdataToken); err != nil || v != "token123" {
		t.Errorf("unexpected: %q, %v", v, err)
	}
	if err := k.Delete(credentials.EarthdataToken); err != nil {
		t.Fatal(err)
	}
	if _, err := k.Resolve(credentials.EarthdataToken); err == nil {
		t.Errorf("expected error after delete")
	}
}
