package handle

import "fmt"

// Token is the opaque identifier handed to the host. The host stores and
// returns it without interpreting it.
//
// The low 32 bits hold the slot index plus one, so no valid token is zero.
// The high 32 bits hold the slot generation at the time of issue.
type Token uint64

// Invalid is the reserved "no handle" value.
const Invalid Token = 0

func makeToken(index int, gen uint32) Token {
	return Token(uint64(gen)<<32 | uint64(uint32(index)+1))
}

func (t Token) index() (int, bool) {
	lo := uint32(t)
	if lo == 0 {
		return 0, false
	}
	return int(lo - 1), true
}

func (t Token) generation() uint32 {
	return uint32(t >> 32)
}

// String renders the token as hex. It does not reveal anything the host
// could use to reach the context.
func (t Token) String() string {
	return fmt.Sprintf("%#016x", uint64(t))
}

// State is the lifecycle state of a handle.
type State int

const (
	Live State = iota + 1
	Released
)

func (s State) String() string {
	switch s {
	case Live:
		return "live"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}
