package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/phonecam/internal/api/models"
	"github.com/smazurov/phonecam/internal/session"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/sessions",
		Summary:     "List Sessions",
		Description: "Connected clients with their transform, resolution and counters",
		Tags:        []string{"sessions"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.SessionListResponse, error) {
		infos := []session.Info{}
		if s.options.Controller != nil {
			infos = s.options.Controller.Registry().List()
		}
		return &models.SessionListResponse{
			Body: models.SessionListData{
				Sessions: infos,
				Count:    len(infos),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{session_id}",
		Summary:     "Get Session",
		Description: "One connected client",
		Tags:        []string{"sessions"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *models.SessionInput) (*models.SessionResponse, error) {
		if s.options.Controller == nil {
			return nil, huma.Error404NotFound("session not found: " + input.SessionID)
		}
		info, ok := s.options.Controller.Registry().Get(input.SessionID)
		if !ok {
			return nil, huma.Error404NotFound("session not found: " + input.SessionID)
		}
		return &models.SessionResponse{Body: info}, nil
	})
}
