package version

import (
	"runtime/debug"
	"testing"
)

func TestFillFromBuildSettings(t *testing.T) {
	tests := []struct {
		name       string
		info       Info
		settings   []debug.BuildSetting
		wantCommit string
		wantDate   string
	}{
		{
			name: "fills unset values",
			info: Info{GitCommit: "unknown", BuildDate: "unknown"},
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
			},
			wantCommit: "0123456",
			wantDate:   "2026-10-01T12:00:00Z",
		},
		{
			name: "ldflags win",
			info: Info{GitCommit: "feedbee", BuildDate: "yesterday"},
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
			},
			wantCommit: "feedbee",
			wantDate:   "yesterday",
		},
		{
			name: "dirty tree",
			info: Info{GitCommit: "unknown", BuildDate: "unknown"},
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abc"},
				{Key: "vcs.modified", Value: "true"},
			},
			wantCommit: "abc-dirty",
			wantDate:   "unknown",
		},
		{
			name:       "no vcs stamp",
			info:       Info{GitCommit: "unknown", BuildDate: "unknown"},
			wantCommit: "unknown",
			wantDate:   "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.info
			fillFromBuildSettings(&info, tt.settings)
			if info.GitCommit != tt.wantCommit {
				t.Errorf("GitCommit = %q, want %q", info.GitCommit, tt.wantCommit)
			}
			if info.BuildDate != tt.wantDate {
				t.Errorf("BuildDate = %q, want %q", info.BuildDate, tt.wantDate)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "1.2.0", GitCommit: "a1b2c3d"}, "phonecam 1.2.0 (a1b2c3d)"},
		{Info{Version: "dev", GitCommit: "unknown"}, "phonecam dev"},
		{Info{Version: "dev"}, "phonecam dev"},
	}
	for _, tt := range tests {
		if got := tt.info.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.info, got, tt.want)
		}
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion == "" || info.Platform == "" {
		t.Errorf("runtime fields not set: %+v", info)
	}
}
