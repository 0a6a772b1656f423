package validation

import (
	"errors"
	"regexp"
)

// MaxInterfaceNameLength is IFNAMSIZ minus the terminating NUL.
const MaxInterfaceNameLength = 15

var (
	// ErrNameEmpty indicates that a name is empty
	ErrNameEmpty = errors.New("name cannot be empty")

	// ErrNameTooLong indicates that a name exceeds the interface name limit
	ErrNameTooLong = errors.New("name exceeds maximum length of 15 characters")

	// ErrInvalidInterfaceName indicates that a name contains characters wg-quick rejects
	ErrInvalidInterfaceName = errors.New("name may only contain letters, numbers and _=+.-")

	// ErrReservedName indicates a name that cannot be used as a file stem
	ErrReservedName = errors.New("name cannot be . or ..")
)

// interfaceNameRegex is the pattern wg-quick applies to the configuration file stem.
var interfaceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_=+.-]+$`)

// ValidateInterfaceName checks that name works both as a file stem and as the
// interface name wg-quick derives from <name>.conf.
func ValidateInterfaceName(name string) error {
	if name == "" {
		return ErrNameEmpty
	}

	if len(name) > MaxInterfaceNameLength {
		return ErrNameTooLong
	}

	if name == "." || name == ".." {
		return ErrReservedName
	}

	if !interfaceNameRegex.MatchString(name) {
		return ErrInvalidInterfaceName
	}

	return nil
}
