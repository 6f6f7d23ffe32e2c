// Package frame implements the wire unit of the transport: a fixed 20 byte
// big-endian header followed by a variable payload.
//
//	magic:u32=0x970208 | length:u32 | channelId:i32 | blockNum:i32 | isFinal:u8 | verMajor:u8=1 | verMinor:u8=0 | code:u8
//
// Frame codes:
//
//   - CONNECT (0): payload is the originator's peer id
//   - CONNECT_REPLY (1): payload is a status byte and a details string
//   - HEARTBEAT (2) and HEARTBEAT_ACK (3): empty payload
//   - DATA (4): one block of a channel, addressed by channelId and blockNum
//   - DATA_CTRL (5): payload is channelId:i32 and control:i32 (NEXT_DATA=0, CLOSE_DATA=0xFFFFFFFF)
//
// Magic, version, code and length are validated on every decode. A mismatch
// yields a *ProtocolError, which the connection treats as fatal.
//
// The Framer turns a byte stream into frames. It is length-delimited: a read
// may produce any number of frames and a frame may span many reads.
package frame
