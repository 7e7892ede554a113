// Package testutil provides model fixtures shared across module tests.
package testutil

import (
	"github.com/HerbHall/taproot/pkg/models"
)

// NewDevice returns a Device with lab-style defaults, suitable for test
// fixtures. Override individual fields through options.
func NewDevice(opts ...func(*models.Device)) models.Device {
	d := models.Device{
		PrimaryMAC: "AA:11:22:33:44:55",
		IP:         "10.0.0.5",
		Hostname:   "test-device",
		DeviceType: models.DeviceTypeEndDevice,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithMAC sets the device's primary MAC.
func WithMAC(mac string) func(*models.Device) {
	return func(d *models.Device) { d.PrimaryMAC = mac }
}

// WithNetwork sets the owning network ID.
func WithNetwork(id string) func(*models.Device) {
	return func(d *models.Device) { d.NetworkID = id }
}

// WithIP sets the device's IP address.
func WithIP(ip string) func(*models.Device) {
	return func(d *models.Device) { d.IP = ip }
}

// WithHostname sets the device hostname.
func WithHostname(name string) func(*models.Device) {
	return func(d *models.Device) { d.Hostname = name }
}

// WithDeviceType sets the device type.
func WithDeviceType(dt models.DeviceType) func(*models.Device) {
	return func(d *models.Device) { d.DeviceType = dt }
}

// WithVendorModel sets the vendor and model pair.
func WithVendorModel(vendor, model string) func(*models.Device) {
	return func(d *models.Device) {
		d.Vendor = vendor
		d.Model = model
	}
}

// WithSerial sets the device serial number.
func WithSerial(serial string) func(*models.Device) {
	return func(d *models.Device) { d.Serial = serial }
}

// WithAssetTag sets the user-assigned asset tag.
func WithAssetTag(tag string) func(*models.Device) {
	return func(d *models.Device) { d.AssetTag = tag }
}

// WithLocation sets the user-assigned location ID.
func WithLocation(id string) func(*models.Device) {
	return func(d *models.Device) { d.LocationID = id }
}
