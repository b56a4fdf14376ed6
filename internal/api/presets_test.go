package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fuomag9/webstatus/internal/models"
)

func TestApplyPreset_FillsZeroFields(t *testing.T) {
	target := &models.Target{DeviceType: "mobile"}
	applyPreset(target)

	assert.Equal(t, 10, target.FailureThreshold)
	assert.Equal(t, 300, target.CheckInterval)
	assert.Equal(t, models.AudioSilent, target.AudioBehavior)
}

func TestApplyPreset_ExplicitValuesWin(t *testing.T) {
	target := &models.Target{
		DeviceType:       "server",
		FailureThreshold: 7,
		CheckInterval:    45,
		AudioBehavior:    models.AudioSilent,
	}
	applyPreset(target)

	assert.Equal(t, 7, target.FailureThreshold)
	assert.Equal(t, 45, target.CheckInterval)
	assert.Equal(t, models.AudioSilent, target.AudioBehavior)
}

func TestApplyPreset_UnknownDeviceTypeUntouched(t *testing.T) {
	target := &models.Target{DeviceType: "spaceship"}
	applyPreset(target)

	assert.Zero(t, target.FailureThreshold)
	assert.Zero(t, target.CheckInterval)
	assert.Empty(t, target.AudioBehavior)
}

func TestDevicePresets_CoverAllDeviceTypes(t *testing.T) {
	for _, dt := range []string{"server", "network", "workstation", "mobile", "printer", "iot", "storage", "other"} {
		preset, ok := devicePresets[dt]
		assert.True(t, ok, dt)
		assert.Greater(t, preset.FailureThreshold, 0, dt)
		assert.Greater(t, preset.CheckInterval, 0, dt)
		assert.NotEmpty(t, preset.AudioBehavior, dt)
	}
}
