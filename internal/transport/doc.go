// Package transport carries Mumble traffic: the TLS control stream of
// length-framed protobuf messages, and the connected UDP socket used for
// encrypted voice.
package transport
