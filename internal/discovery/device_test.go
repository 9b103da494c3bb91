package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestParseSerialFromHostname(t *testing.T) {
	tests := []struct {
		hostname string
		want     string
	}{
		{"netcam-B8A44F001122.local", "B8A44F001122"},
		{"netcam-B8A44F001122.local.", "B8A44F001122"},
		{"netcam-b8a44f001122.local", "B8A44F001122"}, // normalized to upper
		{"printer-001122.local", ""},
		{"netcam-.local", ""},
		{"netcam-XYZ.local", ""}, // not hex
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			if got := ParseSerialFromHostname(tt.hostname); got != tt.want {
				t.Errorf("ParseSerialFromHostname(%q) = %q, want %q", tt.hostname, got, tt.want)
			}
		})
	}
}

func TestParseServiceEntry(t *testing.T) {
	s := NewScanner()

	entry := &zeroconf.ServiceEntry{
		HostName: "netcam-B8A44F001122.local.",
		Port:     8080,
		Text:     []string{"path=/", "macaddress=B8:A4:4F:00:11:22", "flag"},
	}
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.0.90")}

	device := s.parseServiceEntry(entry)
	if device == nil {
		t.Fatal("parseServiceEntry returned nil for a valid entry")
	}

	if device.Serial != "B8A44F001122" {
		t.Errorf("Serial = %s", device.Serial)
	}
	if device.IP != "192.168.0.90" {
		t.Errorf("IP = %s", device.IP)
	}
	if device.Port != 8080 {
		t.Errorf("Port = %d", device.Port)
	}
	if device.GetMetadata("path") != "/" {
		t.Errorf("path = %s", device.GetMetadata("path"))
	}
	if device.GetMetadata("flag") != "" {
		t.Errorf("valueless TXT entry = %q, want empty", device.GetMetadata("flag"))
	}
}

func TestParseServiceEntryRejectsForeignDevices(t *testing.T) {
	s := NewScanner()

	entry := &zeroconf.ServiceEntry{HostName: "printer-001122.local."}
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.0.50")}

	if device := s.parseServiceEntry(entry); device != nil {
		t.Errorf("parseServiceEntry = %+v, want nil for non-video hostname", device)
	}
}

func TestParseServiceEntryRequiresAddress(t *testing.T) {
	s := NewScanner()

	entry := &zeroconf.ServiceEntry{HostName: "netcam-B8A44F001122.local."}
	if device := s.parseServiceEntry(entry); device != nil {
		t.Errorf("parseServiceEntry = %+v, want nil without an address", device)
	}
}

func TestParseServiceEntryDefaultsPort(t *testing.T) {
	s := NewScanner()

	entry := &zeroconf.ServiceEntry{HostName: "netcam-AA11.local."}
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.0.90")}

	device := s.parseServiceEntry(entry)
	if device == nil {
		t.Fatal("parseServiceEntry returned nil")
	}
	if device.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", device.Port, DefaultPort)
	}
}

func TestDeviceBaseURL(t *testing.T) {
	d := &Device{IP: "192.168.0.90", Port: 80}
	if d.BaseURL() != "http://192.168.0.90:80" {
		t.Errorf("BaseURL = %s", d.BaseURL())
	}
}
