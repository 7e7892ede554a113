package models

import "time"

// Network is a logical scan target rooted at a single device.
type Network struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	RootIP        string     `json:"root_ip"`
	RootUsername  string     `json:"root_username"`
	RootPassword  string     `json:"-"`
	LastScannedAt *time.Time `json:"last_scanned_at,omitempty"`
	DeviceCount   int        `json:"device_count"`
	IsOnline      bool       `json:"is_online"`
}

// ScanStatus is the lifecycle state of a scan.
type ScanStatus string

const (
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
)

// Scan is one discovery run against a network. Scans are append-only
// history; a "running" row left behind by a server restart is
// force-transitioned to "failed" at the next status query.
type Scan struct {
	ID          string     `json:"id"`
	NetworkID   string     `json:"network_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      ScanStatus `json:"status"`
	DeviceCount int        `json:"device_count"`
	Error       string     `json:"error,omitempty"`
}

// LogLevel is the severity of a scan log line.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarn    LogLevel = "warn"
	LogError   LogLevel = "error"
)

// ScanLog is one ordered log line belonging to a scan.
type ScanLog struct {
	ID        int64     `json:"id"`
	ScanID    string    `json:"scan_id"`
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// DhcpLease is a (MAC, IP, hostname) triple observed on a router's DHCP
// server. Leases are network-scoped and recreated per scan.
type DhcpLease struct {
	NetworkID string `json:"network_id"`
	MAC       string `json:"mac"`
	IP        string `json:"ip"`
	Hostname  string `json:"hostname,omitempty"`
}

// Credential is a login pair tried against discovered devices.
// NetworkID scopes the credential to one network; empty means global.
type Credential struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	NetworkID string `json:"network_id,omitempty"`
}

// MatchedCredential links a credential to a device MAC so the next scan
// tries the winning credential first.
type MatchedCredential struct {
	CredentialID string `json:"credential_id"`
	MAC          string `json:"mac"`
}
