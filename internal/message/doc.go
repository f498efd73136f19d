// Package message defines the dataplane wire protocol for streaming execution.
//
// Server frames are decoded into the closed set of Event types (StartedEvent,
// OutputEvent, ExitEvent, ErrorEvent). Frames of any other type are reported
// as ErrUnknownMessageType so newer servers can add frame kinds without
// breaking older clients. Client frames (ExecuteFrame, InputFrame, KillFrame,
// ReconnectFrame) marshal to the exact JSON field names the dataplane expects.
package message
