package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/smazurov/phonecam/internal/sink"
	"github.com/smazurov/phonecam/internal/version"
)

func TestFilterLoopback(t *testing.T) {
	devices := []sink.OutputDevice{
		{Path: "/dev/video2", Loopback: true},
		{Path: "/dev/video9"},
		{Path: "/dev/video10", Loopback: true},
	}
	got := filterLoopback(devices)
	if len(got) != 2 || got[0].Path != "/dev/video2" || got[1].Path != "/dev/video10" {
		t.Errorf("filterLoopback = %+v", got)
	}
	if len(devices) != 3 || devices[1].Path != "/dev/video9" {
		t.Errorf("input modified: %+v", devices)
	}
}

func TestWriteDeviceTable(t *testing.T) {
	tests := []struct {
		name    string
		devices []sink.OutputDevice
		want    []string
	}{
		{
			name:    "empty",
			devices: nil,
			want:    []string{"No video output devices found", "modprobe v4l2loopback"},
		},
		{
			name: "rows",
			devices: []sink.OutputDevice{
				{Path: "/dev/video2", Name: "Mobile Camera", Driver: "v4l2 loopback", Loopback: true},
			},
			want: []string{"DEVICE", "/dev/video2", "Mobile Camera", "true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeDeviceTable(&buf, tt.devices); err != nil {
				t.Fatalf("writeDeviceTable: %v", err)
			}
			for _, s := range tt.want {
				if !strings.Contains(buf.String(), s) {
					t.Errorf("output %q missing %q", buf.String(), s)
				}
			}
		})
	}
}

func TestVersionCmd(t *testing.T) {
	c := CreateVersionCmd()
	var buf bytes.Buffer
	c.SetOut(&buf)
	c.SetArgs([]string{"--json"})
	if err := c.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var info version.Info
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if info.Version != version.Version {
		t.Errorf("Version = %q, want %q", info.Version, version.Version)
	}
}
