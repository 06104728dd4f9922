// Package wsport streams render cycles to browser clients over websockets.
//
// A [Hub] is a [render.Port]. It buffers the calls of one render cycle and,
// on Commit, broadcasts them to every connected client as a single JSON
// [Frame]. A frame is either incremental or full: new clients first receive
// a full frame built by replaying the visualizer, then every incremental
// frame after it. The replay and the client's registration run on the
// visualizer's loop, so no cycle can fall between them.
//
// # Wire format
//
// Server to client:
//
//	{"cycle":{"seq":12,"reason":"ingest"},"ops":[
//	  {"op":"addNode","id":"t9"},
//	  {"op":"style","id":"t9","style":{"color":"#9aadce","size":10}},
//	  {"op":"addEdge","from":"t8","to":"t9"},
//	  {"op":"edgeColor","from":"t8","to":"t9","color":"#d9d9d9"}]}
//
// Client to server:
//
//	{"action":"select","id":"t9"}
//	{"action":"search","pattern":"^t9"}
//
// Clients that cannot keep up are disconnected; they reconnect and receive a
// fresh full frame.
package wsport
