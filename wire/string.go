package wire

// PutString appends a length-prefixed UTF-8 string: adjsize3(len) ‖ bytes.
// Catalog names are the only strings in the wire format (spec.md §4.2), and
// they are always short, so the 3-byte-capacity adjsize is used.
func PutString(buf []byte, s string) ([]byte, error) {
	buf, err := PutAdjsize3(buf, uint32(len(s)))
	if err != nil {
		return nil, err
	}
	return append(buf, s...), nil
}

// GetString reads a length-prefixed UTF-8 string from the front of buf.
func GetString(buf []byte) (string, []byte, error) {
	n, rest, err := GetAdjsize(buf)
	if err != nil {
		return "", nil, err
	}
	b, rest, err := GetFixed(rest, int(n))
	if err != nil {
		return "", nil, err
	}
	return string(b), rest, nil
}
