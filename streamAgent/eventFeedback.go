package sagent

import (
	"encoding/json"

	"hevcprobe/h265"
	"hevcprobe/sdriver"
)

// EventMessage is the JSON pushed to the client for each driver event.
type EventMessage struct {
	Type      string             `json:"type"` // "sps" or "text"
	Msg       string             `json:"msg,omitempty"`
	MediaMeta *sdriver.MediaMeta `json:"media_meta,omitempty"`
	SPS       *h265.SPSInfo      `json:"sps,omitempty"`
}

// EventFeedback hands every driver event to handler as a JSON message.
// It returns when the driver closes its event channel or handler returns false.
func (sa *Agent) EventFeedback(handler func([]byte) bool) {
	for event := range sa.eventCh {
		msg, ok := newEventMessage(event)
		if !ok {
			sa.log.Warnf("unhandled event type %d", event.Type())
			continue
		}
		b, err := json.Marshal(msg)
		if err != nil {
			sa.log.Errorf("encode event: %v", err)
			continue
		}
		if !handler(b) {
			return
		}
	}
}

func newEventMessage(event sdriver.Event) (EventMessage, bool) {
	switch event.Type() {
	case sdriver.EVENT_TYPE_SPS_CHANGED:
		e := event.(sdriver.SPSChangedEvent)
		return EventMessage{Type: "sps", MediaMeta: &e.Meta, SPS: &e.Info}, true
	case sdriver.EVENT_TYPE_TEXT_MSG:
		e := event.(sdriver.TextMsgEvent)
		return EventMessage{Type: "text", Msg: e.Msg}, true
	default:
		return EventMessage{}, false
	}
}
