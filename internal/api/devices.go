package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/edgevision/perceptd/internal/api/models"
	"github.com/edgevision/perceptd/pkg/linuxav/v4l2"
)

// registerDeviceRoutes exposes capture device enumeration.
func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "Capture Devices",
		Description: "Video capture devices present on the system with their supported formats",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, input *struct{}) (*models.DevicesResponse, error) {
		found, err := v4l2.FindDevices()
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to enumerate devices", err)
		}

		devices := make([]models.DeviceInfo, 0, len(found))
		for _, dev := range found {
			info := models.DeviceInfo{
				DevicePath: dev.DevicePath,
				DeviceName: dev.DeviceName,
				DeviceID:   dev.DeviceID,
			}
			// Format probing is best effort; a device busy with another
			// process still shows up in the list.
			if formats, err := v4l2.GetFormats(dev.DevicePath); err == nil {
				for _, f := range formats {
					info.Formats = append(info.Formats, v4l2.FourCC(f.PixelFormat))
				}
			} else {
				s.logger.Debug("failed to probe device formats", "device", dev.DevicePath, "error", err)
			}
			devices = append(devices, info)
		}

		return &models.DevicesResponse{
			Body: models.DevicesData{
				Devices: devices,
				Count:   len(devices),
			},
		}, nil
	})
}
