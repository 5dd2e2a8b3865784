// Package wire encodes and decodes the payloads of the two permission
// transactions, SetGroupPermissions and SetUserPermissions.
//
// The format is a compact fixed layout with no field tags:
//
//	SetGroupPermissions:
//	  u8 nameLen | name | u32 priority | u8 active | u8 default | allow | deny
//
//	SetUserPermissions:
//	  [33]publicKey | u8 groupCount {u8 nameLen | name}* | allow | deny
//
//	allow, deny:
//	  u8 count {u32 type | u32 typeGroup}*
//
// Integers are little-endian. Absent lists are a zero count and decode
// back to nil, so a payload that carried an empty slice comes back as nil.
// Any declared length that runs past the input aborts decoding of the
// whole payload with ErrUnexpectedEOF.
package wire
