package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/phonecam/internal/api/models"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "Video output nodes on this host, such as v4l2loopback cameras",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, input *struct{}) (*models.DeviceListResponse, error) {
		found, err := s.options.ListDevices()
		if err != nil {
			s.logger.Error("Failed to list output devices", "error", err)
			return nil, huma.Error500InternalServerError("failed to list output devices", err)
		}

		devices := make([]models.DeviceInfo, 0, len(found))
		for _, d := range found {
			devices = append(devices, models.DeviceInfo{
				DevicePath: d.Path,
				DeviceName: d.Name,
				Driver:     d.Driver,
				BusInfo:    d.BusInfo,
				Loopback:   d.Loopback,
				InUse:      d.Path == s.options.SinkDevice,
			})
		}
		return &models.DeviceListResponse{
			Body: models.DeviceListData{
				Devices: devices,
				Count:   len(devices),
			},
		}, nil
	})
}
