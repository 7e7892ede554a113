package scan

// Event topics published by the scan module.
const (
	// TopicScanStarted fires when a scan row is created.
	// Payload: *models.Scan.
	TopicScanStarted = "scan.started"

	// TopicScanCompleted fires on terminal status (completed or
	// failed). Payload: *models.Scan.
	TopicScanCompleted = "scan.completed"

	// TopicDeviceDiscovered fires after each device upsert.
	// Payload: *models.Device.
	TopicDeviceDiscovered = "scan.device.discovered"

	// TopicScanLog fires for every scan log line.
	// Payload: *models.ScanLog.
	TopicScanLog = "scan.log"

	// TopicTopologyChanged fires when the assembled tree for a
	// network may have changed. Payload: network ID string.
	TopicTopologyChanged = "scan.topology.changed"
)
