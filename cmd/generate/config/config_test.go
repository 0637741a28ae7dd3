package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Mmx233/RGNB/config"
	"github.com/Mmx233/RGNB/examples"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decodeStrict(t *testing.T, content []byte, out any) {
	t.Helper()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true) // Error on unknown fields
	require.NoError(t, decoder.Decode(out), "template contains unknown fields or invalid YAML")
}

// TestGnbConfigTemplateFields verifies that the embedded gnb.yaml template
// parses into config.Gnb without unknown fields and passes validation.
func TestGnbConfigTemplateFields(t *testing.T) {
	content, err := examples.GnbConfig()
	require.NoError(t, err, "failed to load gnb config template")

	var cfg config.Gnb
	decodeStrict(t, content, &cfg)
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.NotEmpty(t, cfg.AmfConfigs, "amfConfigs should not be empty")
	assert.Equal(t, config.DefaultAmfPort, cfg.AmfConfigs[0].Port, "AMF port should match DefaultAmfPort")
	assert.Equal(t, config.DefaultGnbIDLength, cfg.GnbIDLength, "idLength should match DefaultGnbIDLength")
	assert.NotEmpty(t, cfg.Slices, "slices should not be empty")
}

// TestUeConfigTemplateFields verifies that the embedded ue.yaml template
// parses into config.Ue without unknown fields and passes validation.
func TestUeConfigTemplateFields(t *testing.T) {
	content, err := examples.UeConfig()
	require.NoError(t, err, "failed to load ue config template")

	var cfg config.Ue
	decodeStrict(t, content, &cfg)
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.NotEmpty(t, cfg.GnbSearchList, "gnbSearchList should not be empty")
	assert.Equal(t, config.DefaultRoutingIndicator, cfg.RoutingIndicator)
	assert.Equal(t, "imsi-208930000000003", cfg.NodeName())
}

func TestWriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gnb.yaml")
	require.NoError(t, writeTemplate("gnb", path, examples.GnbConfig))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	expected, err := examples.GnbConfig()
	require.NoError(t, err)
	assert.Equal(t, expected, written)

	assert.ErrorContains(t, writeTemplate("gnb", path, examples.GnbConfig), "file already exists")
}
