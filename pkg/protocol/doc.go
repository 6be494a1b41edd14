// Package protocol implements the Steinway P100 line protocol.
//
// The device speaks a text protocol over TCP (port 84) or a serial link.
// Every frame is a single line bounded by a carriage return, with a leading
// sentinel character identifying its class:
//
//	!VOL(-350)<CR>      outbound command, or inbound status/reply
//	#POWERONMAIN<CR>    inbound command echo (feedback level 2 only)
//
// The protocol carries no request identifiers. Replies are correlated to
// commands by shape alone: a query such as VOL? is answered by a status
// frame whose payload starts with VOL(. Enumeration queries (SRCS?,
// AUDMODEL?) are answered by a count header followed by one entry frame
// per item.
//
// This package provides:
//   - the frame codec: EncodeCommand and the streaming Decoder, which
//     tolerates arbitrary fragmentation of the byte stream
//   - the Command type with per-verb builders (PowerOn, VolumeSet, ...)
//   - response Matchers describing which inbound frames answer a command
//   - structural parsers extracting typed values from status payloads
//
// Correlation itself lives in package dispatch; this package is pure data.
package protocol
