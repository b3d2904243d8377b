package protocol

// GetInfo is the request payload polling a single game server for its
// current state. The trailing nul is the (unused) request token.
func GetInfo() []byte {
	return []byte{0xff, 0xff, 0xff, 0xff, 'g', 'i', 'e', '3', 0x00}
}

// GetList is the request payload polling a master server for its list
// of known game servers.
func GetList() []byte {
	return []byte{0xff, 0xff, 0xff, 0xff, 'r', 'e', 'q', '2'}
}
