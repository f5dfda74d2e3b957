// Package relay maintains the outbound connection to a remote broker so the
// gateway is reachable from outside the local network without an inbound
// port.
//
// # Wire Protocol
//
// One JSON object per WebSocket text frame, discriminated by "type":
//
//	-> register      {"type":"register","deviceId":"...","pairCode":"..."}
//	-> ping          {"type":"ping"}
//	<- pong          {"type":"pong"}
//	<- pair_success  {"type":"pair_success"}
//	<- chat          {"type":"chat","requestId":"...","message":"...","sessionId":"..."}
//	-> chat_response {"type":"chat_response","requestId":"...","data":{...}}
//	-> chat_done     {"type":"chat_done","requestId":"...","sessionId":"..."}
//	-> chat_error    {"type":"chat_error","requestId":"...","error":"..."}
//
// register is always the first frame after a dial, including reconnects.
// Chat turns run concurrently; every response frame carries the request id of
// the turn that produced it.
//
// # Reconnection
//
// Any connection loss schedules exactly one reconnect attempt after a fixed
// delay, and attempts repeat indefinitely until the dial succeeds or the
// client is closed. Close cancels the pending timer before touching the
// socket so a racing disconnect cannot resurrect the link.
package relay
