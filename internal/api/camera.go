package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/AstroPlant/astroplant-camera-module/internal/api/models"
	"github.com/AstroPlant/astroplant-camera-module/internal/camera"
)

// registerCameraRoutes registers the command and status endpoints.
func (s *Server) registerCameraRoutes() {
	// Run a command
	huma.Register(s.api, huma.Operation{
		OperationID: "run-command",
		Method:      http.MethodPost,
		Path:        "/api/commands",
		Summary:     "Run Command",
		Description: "Execute a camera command and return its result record. Commands are rejected while another is running.",
		Tags:        []string{"camera"},
		Errors:      []int{400, 401, 409, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CommandRequest) (*models.CommandResponse, error) {
		result, err := s.camera.Do(ctx, camera.Command(input.Body.Command))
		if err != nil {
			return nil, s.mapCameraError(err)
		}

		return &models.CommandResponse{Body: *result}, nil
	})

	// Current state
	huma.Register(s.api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/api/state",
		Summary:     "Get State",
		Description: "Get the camera lifecycle state and calibration freshness",
		Tags:        []string{"camera"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.StateResponse, error) {
		at, converged := s.camera.CalibrationInfo()
		data := models.StateData{
			State:     string(s.camera.State()),
			CameraID:  s.camera.ID(),
			Converged: converged,
		}
		if !at.IsZero() {
			data.CalibratedAt = at.Format(time.RFC3339)
		}

		return &models.StateResponse{Body: data}, nil
	})

	// Active calibration settings
	huma.Register(s.api, huma.Operation{
		OperationID: "get-calibration",
		Method:      http.MethodGet,
		Path:        "/api/calibration",
		Summary:     "Get Calibration",
		Description: "Get the active per-channel settings produced by the last calibration",
		Tags:        []string{"camera"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.CalibrationResponse, error) {
		settings := s.camera.Settings()
		if len(settings) == 0 {
			return nil, huma.Error404NotFound("camera has no calibrated settings")
		}

		at, converged := s.camera.CalibrationInfo()
		data := models.CalibrationData{
			CameraID:     s.camera.ID(),
			CalibratedAt: at.Format(time.RFC3339),
			Converged:    converged,
			Channels:     make([]models.ChannelSettingsData, 0, len(settings)),
		}
		for _, ch := range s.camera.Channels() {
			st, ok := settings[ch]
			if !ok {
				continue
			}
			data.Channels = append(data.Channels, models.ChannelSettingsData{
				Channel:    string(ch),
				ExposureUs: st.Exposure.Microseconds(),
				Gain:       st.Gain,
				AWBRed:     st.AWBRed,
				AWBBlue:    st.AWBBlue,
			})
		}

		return &models.CalibrationResponse{Body: data}, nil
	})

	// Channel registry
	huma.Register(s.api, huma.Operation{
		OperationID: "list-channels",
		Method:      http.MethodGet,
		Path:        "/api/channels",
		Summary:     "List Channels",
		Description: "Get the light channels this kit exposes and their switch state",
		Tags:        []string{"camera"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.ChannelListResponse, error) {
		lit := s.camera.LitChannels()
		channels := s.camera.Channels()

		data := models.ChannelListData{
			Channels: make([]models.ChannelData, 0, len(channels)),
			Count:    len(channels),
		}
		for _, ch := range channels {
			data.Channels = append(data.Channels, models.ChannelData{
				Name: string(ch),
				Lit:  lit[ch],
			})
		}

		return &models.ChannelListResponse{Body: data}, nil
	})
}

// mapCameraError converts camera error codes to HTTP status codes.
func (s *Server) mapCameraError(err error) error {
	if cerr, ok := err.(*camera.Error); ok {
		switch cerr.Code {
		case camera.ErrCodeUnknownCommand,
			camera.ErrCodeChannelUnavailable,
			camera.ErrCodeNoLightControl:
			return huma.Error400BadRequest(cerr.Message, err)
		case camera.ErrCodeNotCalibrated, camera.ErrCodeBusy:
			return huma.Error409Conflict(cerr.Message, err)
		case camera.ErrCodeCameraFault:
			return huma.Error503ServiceUnavailable(cerr.Message, err)
		case camera.ErrCodeCaptureFailed, camera.ErrCodeStorageFailed:
			return huma.Error500InternalServerError(cerr.Message, err)
		default:
			return huma.Error500InternalServerError("internal server error", err)
		}
	}
	return huma.Error500InternalServerError("internal server error", err)
}
