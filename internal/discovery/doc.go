// Package discovery locates network video devices via mDNS/DNS-SD.
//
// Devices advertise their web interface as a _http._tcp service with a
// hostname of the form "netcam-<serial>.local". Discovery is best-effort
// and purely a convenience: every command accepts an explicit --device
// address that bypasses it.
package discovery
