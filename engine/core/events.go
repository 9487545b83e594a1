package core

// EventContext carries up to 128 bytes of payload plus a string slot.
type EventContext struct {
	Data struct {
		I64 [2]int64
		U64 [2]uint64
		F64 [2]float64

		I32 [4]int32
		U32 [4]uint32
		F32 [4]float32

		U16 [8]uint16
		I8  [16]int8

		C [4]string
	}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// u16[0] key code
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// u16[0] key code
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	// u16[0] button
	EVENT_CODE_BUTTON_PRESSED SystemEventCode = 0x04

	// u16[0] button
	EVENT_CODE_BUTTON_RELEASED SystemEventCode = 0x05

	// f64[0] x, f64[1] y
	EVENT_CODE_MOUSE_MOVED SystemEventCode = 0x06

	// i8[0] z delta
	EVENT_CODE_MOUSE_WHEEL SystemEventCode = 0x07

	// u32[0] width, u32[1] height
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// c[0] path of the file that changed on disk
	EVENT_CODE_ASSET_CHANGED SystemEventCode = 0x09

	// c[0] scene name, u32[0] entity count
	EVENT_CODE_SCENE_LOADED SystemEventCode = 0x0A

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches events synchronously on the calling goroutine.
// All registration and firing happens on the main thread.
type EventBus struct {
	registered map[SystemEventCode][]registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[SystemEventCode][]registeredEvent),
	}
}

// Register returns false when the listener is already registered for code.
func (b *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if onEvent == nil {
		return false
	}
	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

// Unregister returns false if no registration for listener was found.
func (b *EventBus) Unregister(code SystemEventCode, listener interface{}) bool {
	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire sends the event to the listeners of code in registration order until one
// of them handles it. Returns true if handled.
func (b *EventBus) Fire(code SystemEventCode, sender interface{}, context EventContext) bool {
	for _, e := range b.registered[code] {
		if e.callback(code, sender, e.listener, context) {
			return true
		}
	}
	return false
}

// Shutdown drops every registration.
func (b *EventBus) Shutdown() {
	b.registered = make(map[SystemEventCode][]registeredEvent)
}
