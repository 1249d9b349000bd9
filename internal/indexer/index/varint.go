package index

// appendVarint appends an unsigned LEB128 varint encoding of v to buf,
// matching the variable-length integer encoding spec.md §3 requires for
// posting-list blocks (the wire-level twin of encoding/binary.AppendUvarint,
// kept local so posting.go's decode loop stays self-contained and symmetric
// with readVarint below).
func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// readVarint decodes an unsigned LEB128 varint starting at data[pos],
// returning the value and the position just past it.
func readVarint(data []byte, pos int) (uint64, int) {
	var v uint64
	var shift uint
	for {
		b := data[pos]
		pos++
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return v, pos
}
