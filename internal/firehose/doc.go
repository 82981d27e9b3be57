// Package firehose builds Firehose XML commands and classifies device
// responses.
//
// Only the command formatting and response parsing live here: peek, nop,
// read, and configure requests, plus ACK/NAK/log/error classification of
// whatever comes back. The Sahara handshake and the USB transfer layer
// are the transport's problem, not this package's.
package firehose
