package wire

// StampSize is the length in bytes of every entry's universal prefix:
// entry_code(u8) ‖ timestamp(nanotime, u64 big-endian).
const StampSize = 1 + 8

// Stamp is the universal prefix on every cask entry.
type Stamp struct {
	Code      uint8
	Timestamp uint64 // nanoseconds since the Unix epoch
}

// Put appends the stamp's wire encoding.
func (s Stamp) Put(buf []byte) []byte {
	buf = PutU8(buf, s.Code)
	buf = PutNanotime(buf, s.Timestamp)
	return buf
}

// GetStamp reads a Stamp from the front of buf.
func GetStamp(buf []byte) (Stamp, []byte, error) {
	code, rest, err := GetU8(buf)
	if err != nil {
		return Stamp{}, nil, err
	}
	ts, rest, err := GetNanotime(rest)
	if err != nil {
		return Stamp{}, nil, err
	}
	return Stamp{Code: code, Timestamp: ts}, rest, nil
}
