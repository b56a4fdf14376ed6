package api

import (
	"net/http"

	"github.com/fuomag9/webstatus/internal/models"
)

// DevicePreset is a recommended monitoring configuration for a device class.
type DevicePreset struct {
	FailureThreshold int    `json:"failure_threshold"`
	AudioBehavior    string `json:"audio_behavior"`
	CheckInterval    int    `json:"check_interval"` // seconds
	Description      string `json:"description"`
}

// devicePresets maps device types to their recommended settings. Applied at
// creation time only; later preset changes never touch existing targets.
var devicePresets = map[string]DevicePreset{
	"server": {
		FailureThreshold: 3,
		AudioBehavior:    models.AudioUrgent,
		CheckInterval:    60,
		Description:      "Production servers, critical infrastructure",
	},
	"network": {
		FailureThreshold: 2,
		AudioBehavior:    models.AudioUrgent,
		CheckInterval:    60,
		Description:      "Routers, switches, gateways, firewalls",
	},
	"workstation": {
		FailureThreshold: 5,
		AudioBehavior:    models.AudioNormal,
		CheckInterval:    120,
		Description:      "Desktop computers, laptops",
	},
	"mobile": {
		FailureThreshold: 10,
		AudioBehavior:    models.AudioSilent,
		CheckInterval:    300,
		Description:      "Phones, tablets - frequently sleep/disconnect",
	},
	"printer": {
		FailureThreshold: 5,
		AudioBehavior:    models.AudioNormal,
		CheckInterval:    120,
		Description:      "Printers, scanners, fax machines",
	},
	"iot": {
		FailureThreshold: 6,
		AudioBehavior:    models.AudioNormal,
		CheckInterval:    120,
		Description:      "Smart home devices, sensors, cameras",
	},
	"storage": {
		FailureThreshold: 3,
		AudioBehavior:    models.AudioUrgent,
		CheckInterval:    60,
		Description:      "NAS, SAN, file servers",
	},
	"other": {
		FailureThreshold: 3,
		AudioBehavior:    models.AudioNormal,
		CheckInterval:    60,
		Description:      "Uncategorized devices",
	},
}

// applyPreset fills zero-valued tuning fields from the device type's preset.
// Explicit values on the request always win.
func applyPreset(t *models.Target) {
	preset, ok := devicePresets[t.DeviceType]
	if !ok {
		return
	}
	if t.FailureThreshold == 0 {
		t.FailureThreshold = preset.FailureThreshold
	}
	if t.CheckInterval == 0 {
		t.CheckInterval = preset.CheckInterval
	}
	if t.AudioBehavior == "" {
		t.AudioBehavior = preset.AudioBehavior
	}
}

// HandleGetDevicePresets returns the preset catalog.
func HandleGetDevicePresets() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, devicePresets)
	}
}
