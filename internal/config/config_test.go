package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recdb/internal/rectype"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Password)
	assert.NotNil(t, cfg.Aliases)
}

func TestLoadParsesPasswordAndAliases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recdb.toml")
	data := "password = \"s3cr3t\"\n\n[aliases]\nEmailAddr = \"email\"\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.Password)
	assert.Equal(t, "email", cfg.Aliases["EmailAddr"])
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recdb.toml")
	require.NoError(t, os.WriteFile(path, []byte("this is not = = valid toml"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestRegisterAliasesDefinesEveryAlias(t *testing.T) {
	cfg := Default()
	cfg.Aliases["EmailAddr"] = "email"
	cfg.Aliases["SerialNumber"] = "int"

	reg := rectype.NewRegistry()
	require.NoError(t, cfg.RegisterAliases(reg))
	typ, ok := reg.Lookup("EmailAddr")
	require.True(t, ok)
	require.NotNil(t, typ)
}

func TestRegisterAliasesSynonymForwarding(t *testing.T) {
	cfg := Default()
	cfg.Aliases["SerialNumber"] = "int"
	cfg.Aliases["Invoice"] = "SerialNumber"

	reg := rectype.NewRegistry()
	require.NoError(t, cfg.RegisterAliases(reg))
	typ, ok := reg.Lookup("Invoice")
	require.True(t, ok, "want the synonym to resolve to int")
	require.NotNil(t, typ)
}
