package input

// DirectionAddress is the zero-page byte that receives the last direction
// pressed. This is a placeholder side channel for simple demo programs, not
// hardware behavior.
const DirectionAddress = 0x00FF

// Direction codes written to DirectionAddress, as ASCII w/s/a/d
const (
	DirectionUp    uint8 = 'w'
	DirectionDown  uint8 = 's'
	DirectionLeft  uint8 = 'a'
	DirectionRight uint8 = 'd'
)

// DirectionCode maps a controller byte to the code for the first pressed
// direction in up, down, left, right order. ok is false when no direction
// is pressed, in which case the previous code should be left in place.
func DirectionCode(state uint8) (code uint8, ok bool) {
	switch {
	case state&uint8(ButtonUp) != 0:
		return DirectionUp, true
	case state&uint8(ButtonDown) != 0:
		return DirectionDown, true
	case state&uint8(ButtonLeft) != 0:
		return DirectionLeft, true
	case state&uint8(ButtonRight) != 0:
		return DirectionRight, true
	}
	return 0, false
}

// ParseKey maps a terminal key to a button using the default keyboard
// layout: w/a/s/d for directions, j/k or z/x for A/B, enter for Start and
// space for Select
func ParseKey(key byte) (Button, bool) {
	switch key {
	case 'w', 'W':
		return ButtonUp, true
	case 's', 'S':
		return ButtonDown, true
	case 'a', 'A':
		return ButtonLeft, true
	case 'd', 'D':
		return ButtonRight, true
	case 'j', 'J', 'z', 'Z':
		return ButtonA, true
	case 'k', 'K', 'x', 'X':
		return ButtonB, true
	case '\r', '\n':
		return ButtonStart, true
	case ' ':
		return ButtonSelect, true
	}
	return 0, false
}

// ParseArrow maps the final byte of an ANSI cursor key sequence (ESC [ x)
// to a direction button
func ParseArrow(final byte) (Button, bool) {
	switch final {
	case 'A':
		return ButtonUp, true
	case 'B':
		return ButtonDown, true
	case 'C':
		return ButtonRight, true
	case 'D':
		return ButtonLeft, true
	}
	return 0, false
}
