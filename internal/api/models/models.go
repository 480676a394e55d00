// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"github.com/smazurov/phonecam/internal/session"
	"github.com/smazurov/phonecam/internal/sink"
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
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.4" doc:"Go toolchain version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target OS and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// Status models
type StatusData struct {
	Sink           sink.Status `json:"sink" doc:"Virtual camera state"`
	ActiveSessions int         `json:"active_sessions" example:"1" doc:"Connected clients"`
	StreamPath     string      `json:"stream_path" example:"/" doc:"Websocket path clients connect to"`
	Version        string      `json:"version" example:"1.2.0" doc:"Application version"`
}

type StatusResponse struct {
	Body StatusData
}

// Session models
type SessionListData struct {
	Sessions []session.Info `json:"sessions" doc:"Connected sessions, oldest first"`
	Count    int            `json:"count" example:"1" doc:"Number of connected sessions"`
}

type SessionListResponse struct {
	Body SessionListData
}

type SessionInput struct {
	SessionID string `path:"session_id" example:"3f0c2f8e-5a6b-4a39-9a55-0b9c1f5f2d11" doc:"Session identifier"`
}

type SessionResponse struct {
	Body session.Info
}

// Device models
type DeviceInfo struct {
	DevicePath string `json:"device_path" example:"/dev/video2" doc:"Device node"`
	DeviceName string `json:"device_name" example:"Mobile Camera" doc:"Card label"`
	Driver     string `json:"driver" example:"v4l2 loopback" doc:"Kernel driver"`
	BusInfo    string `json:"bus_info" example:"platform:v4l2loopback-000" doc:"Bus location"`
	Loopback   bool   `json:"loopback" doc:"Whether the device is a v4l2loopback node"`
	InUse      bool   `json:"in_use" doc:"Whether this is the configured sink device"`
}

type DeviceListData struct {
	Devices []DeviceInfo `json:"devices" doc:"Video output devices"`
	Count   int          `json:"count" example:"1" doc:"Number of devices"`
}

type DeviceListResponse struct {
	Body DeviceListData
}
