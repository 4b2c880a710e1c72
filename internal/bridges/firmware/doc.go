// Package firmware connects the hub to the firmware bridge: a WebSocket
// peer that relays commands to devices on the home's local radio network
// and streams their readings back.
//
// Frames in both directions are CBOR maps. Outbound commands look like
//
//	{"address": 3, "id": 17, "name": "ota.block", "args": {...}}
//
// Inbound frames that carry an "id" are results for an earlier command and
// are matched to the waiting caller. Frames without an "id" are unsolicited
// readings and are handed to the hub as source messages.
//
// Command ids come from a ring of 1,048,576 values. Allocating an id,
// registering its waiter and queueing the command happen under one lock,
// so ids reach the wire in allocation order.
package firmware
