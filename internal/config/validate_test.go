package config

import (
	"testing"

	"github.com/songokas/hvents/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfigNil(t *testing.T) {
	require.Error(t, ValidateConfig(nil))
}

func TestValidateConfigRejectsDuplicateMQTTPoolID(t *testing.T) {
	cfg := &models.Config{
		MQTT: []models.MQTTPoolConfig{
			{ID: "default", Host: "broker1"},
			{ID: "default", Host: "broker2"},
		},
	}
	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate mqtt pool id")
}

func TestValidateConfigRejectsDuplicateHTTPPoolID(t *testing.T) {
	cfg := &models.Config{
		HTTP: []models.HTTPPoolConfig{
			{ID: "default", Bind: ":8080"},
			{ID: "default", Bind: ":8081"},
		},
	}
	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate http pool id")
}

func TestValidateConfigRejectsBadLocation(t *testing.T) {
	cfg := &models.Config{Location: &models.LocationConfig{Latitude: 200, Longitude: 0}}
	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latitude")
}

func TestValidateConfigAcceptsEmptyConfig(t *testing.T) {
	require.NoError(t, ValidateConfig(&models.Config{}))
}

func TestValidateConfigRejectsNegativeMaxConcurrency(t *testing.T) {
	cfg := &models.Config{Application: models.ApplicationSettings{MaxConcurrency: -1}}
	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrency")
}
