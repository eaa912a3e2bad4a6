// Package protocol holds the single constant shared between the CLI and
// the gateway process: the config/wire format version printed by
// `version`. There's no admin RPC surface in this gateway, so no
// JSON-RPC method or WebSocket event name table lives here either.
package protocol

// ProtocolVersion identifies the shape of the config document and the
// inbound/outbound message contract.
const ProtocolVersion = 1
