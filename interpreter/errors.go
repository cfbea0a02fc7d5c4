package interpreter

import "fmt"

// UndeclaredBlockError is returned when C6 jumps to a tag not present in
// the block map (§7 UndeclaredBlock, §8 scenario coverage).
type UndeclaredBlockError struct {
	Key string
}

func (e *UndeclaredBlockError) Error() string {
	return fmt.Sprintf("Undeclared destination block %s", e.Key)
}

// stackInvalidError marks a pop-on-empty during re-execution (§7
// StackInvalid). It never escapes this package: the caller recovers it
// locally by truncating the block to a single INVALID instruction (spec.md
// §4.3 "Truncation on invalid stack state").
type stackInvalidError struct {
	cause error
}

func (e *stackInvalidError) Error() string { return e.cause.Error() }
func (e *stackInvalidError) Unwrap() error { return e.cause }
