package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg := Default()
	BindFlags(fs, &cfg)
	require.NoError(t, fs.Parse(nil))

	loaded, err := Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "easyfs.img", loaded.ImagePath)
	assert.Equal(t, 16, loaded.CacheBlocks)
}

func TestLoadOverridesFromFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg := Default()
	BindFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"--image=custom.img", "--cache-blocks=64"}))

	loaded, err := Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "custom.img", loaded.ImagePath)
	assert.Equal(t, 64, loaded.CacheBlocks)
}
