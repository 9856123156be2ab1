package daemon

import (
	"fmt"
	"os"
)

// openFlags maps a stream mode to os.OpenFile flags.
func openFlags(m Mode) (int, error) {
	switch m {
	case ModeRead:
		return os.O_RDONLY, nil
	case ModeWrite:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, nil
	case ModeAppend:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, nil
	case ModeReadWrite:
		return os.O_RDWR | os.O_CREATE, nil
	default:
		return 0, fmt.Errorf("unknown stream mode %q", m)
	}
}

// ParseMode converts a config-file string to a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if _, err := openFlags(m); err != nil {
		return "", err
	}
	return m, nil
}
