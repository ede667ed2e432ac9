package sdriver

import "hevcprobe/h265"

type EventType uint8

type Event interface {
	Type() EventType
}

const (
	EVENT_TYPE_SPS_CHANGED EventType = 0x21
	// -> Web Toast Message
	EVENT_TYPE_TEXT_MSG EventType = 0x64
)

// SPSChangedEvent is emitted whenever an SPS with new content passes through a driver.
type SPSChangedEvent struct {
	Info h265.SPSInfo
	Meta MediaMeta
}

func (e SPSChangedEvent) Type() EventType {
	return EVENT_TYPE_SPS_CHANGED
}

type TextMsgEvent struct {
	Msg string
}

func (e TextMsgEvent) Type() EventType {
	return EVENT_TYPE_TEXT_MSG
}
