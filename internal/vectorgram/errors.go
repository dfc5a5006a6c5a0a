package vectorgram

import (
	"errors"
	"fmt"
)

var (
	ErrFormatUnrecognized = errors.New("payload is neither a bitmap nor a vectorgram")
	ErrHeaderOutOfBounds  = errors.New("channel header runs past the end of the capture")
	ErrUnresolvedCode     = errors.New("code outside its lookup table")
	ErrInvalidChannel     = errors.New("bytes at cursor do not form a channel record")
)

// FormatError reports an unrecognised payload together with its leading bytes.
type FormatError struct {
	Leading []byte
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unrecognised capture format, leading bytes % x (%q)", e.Leading, e.Leading)
}

func (e *FormatError) Unwrap() error { return ErrFormatUnrecognized }

// CodeError is the diagnostic attached to a header whose enumerated code could not be
// resolved. The header itself carries the -1 sentinel.
type CodeError struct {
	Channel string
	Field   string
	Code    int32
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("channel %s: %s code 0x%02x unresolved", e.Channel, e.Field, e.Code)
}

func (e *CodeError) Unwrap() error { return ErrUnresolvedCode }

// BoundsError locates a walk that stopped early.
type BoundsError struct {
	Offset int
	Need   int
	Len    int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("need %d bytes at offset %d, capture holds %d", e.Need, e.Offset, e.Len)
}

func (e *BoundsError) Unwrap() error { return ErrHeaderOutOfBounds }

// InvalidChannelError stops a header walk at bytes that are not a channel record.
type InvalidChannelError struct {
	Offset      int
	Name        string
	BlockLength int32
}

func (e *InvalidChannelError) Error() string {
	if e.BlockLength != 0 {
		return fmt.Sprintf("channel %q at offset %d: block length %d does not advance", e.Name, e.Offset, e.BlockLength)
	}
	return fmt.Sprintf("no channel name at offset %d (%q)", e.Offset, e.Name)
}

func (e *InvalidChannelError) Unwrap() error { return ErrInvalidChannel }
