package wire

// MessageType classifies incoming wire bytes.
type MessageType int

const (
	TypeUnknown MessageType = iota
	TypeInitial
	TypeRegular
)

func (t MessageType) String() string {
	switch t {
	case TypeInitial:
		return "initial"
	case TypeRegular:
		return "regular"
	default:
		return "unknown"
	}
}

// DetectMessageType reports whether data is a regular message, a session
// initiation message, or neither.
func DetectMessageType(data []byte) MessageType {
	if _, err := ParseMessage(data); err == nil {
		return TypeRegular
	}
	if _, err := ParseInitiationMessage(data); err == nil {
		return TypeInitial
	}
	return TypeUnknown
}
