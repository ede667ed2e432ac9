package sdriver

// SDriver produces an H.265 elementary stream as AVBoxes and reports what it learns
// from the parameter sets it passes through.
type SDriver interface {
	GetReceivers() (<-chan AVBox, <-chan Event)

	StartStreaming()
	RequestIDR()

	Capabilities() DriverCaps
	MediaMeta() MediaMeta
	Stop()
}
