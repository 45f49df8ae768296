// Package models defines the request and response shapes of the HTTP
// API.
package models

import (
	"github.com/AstroPlant/astroplant-camera-module/internal/camera"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"ab12cd3" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-03-14T09:00:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.1" doc:"Go toolchain the binary was built with"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// State models
type StateData struct {
	State        string `json:"state" example:"READY" doc:"Camera lifecycle state"`
	CameraID     string `json:"camera_id" example:"imx219" doc:"Capture hardware identity"`
	CalibratedAt string `json:"calibrated_at,omitempty" example:"2026-03-14T09:30:00Z" doc:"When the active settings were produced"`
	Converged    bool   `json:"converged" example:"true" doc:"False when any channel kept best-observed settings"`
}

type StateResponse struct {
	Body StateData
}

// Calibration models
type ChannelSettingsData struct {
	Channel    string  `json:"channel" example:"white" doc:"Light channel"`
	ExposureUs int64   `json:"exposure_us" example:"20000" doc:"Sensor integration time in microseconds"`
	Gain       float64 `json:"gain" example:"2.5" doc:"Combined analog and digital gain"`
	AWBRed     float64 `json:"awb_red" example:"1.4" doc:"White-balance red gain"`
	AWBBlue    float64 `json:"awb_blue" example:"1.2" doc:"White-balance blue gain"`
}

type CalibrationData struct {
	CameraID     string                `json:"camera_id" example:"imx219" doc:"Camera the settings belong to"`
	CalibratedAt string                `json:"calibrated_at" example:"2026-03-14T09:30:00Z" doc:"When the settings were produced"`
	Converged    bool                  `json:"converged" example:"true" doc:"False when any channel kept best-observed settings"`
	Channels     []ChannelSettingsData `json:"channels" doc:"Per-channel calibrated settings"`
}

type CalibrationResponse struct {
	Body CalibrationData
}

// Channel models
type ChannelData struct {
	Name string `json:"name" example:"nir" doc:"Channel name"`
	Lit  bool   `json:"lit" example:"false" doc:"Last commanded switch state"`
}

type ChannelListData struct {
	Channels []ChannelData `json:"channels" doc:"Light channels the kit exposes"`
	Count    int           `json:"count" example:"4" doc:"Number of channels"`
}

type ChannelListResponse struct {
	Body ChannelListData
}

// Command models. The command name is validated by the dispatcher, not
// the schema, so unknown names produce the documented error code
// instead of a schema rejection.
type CommandRequestData struct {
	Command string `json:"command" minLength:"1" example:"NDVI_PHOTO" doc:"Command name, case-insensitive"`
}

type CommandRequest struct {
	Body CommandRequestData
}

type CommandResponse struct {
	Body camera.Result
}
