// Package shared defines error values used across package boundaries for
// consistent error handling and reporting.
package shared

import "errors"

// Registry errors.
//
// Register returns ErrRegistrationLost. The registry's lookups report a
// miss with ok=false rather than ErrAliasNotFound or ErrIPNotFound, and
// Unregister returns no error.

// ErrAliasNotFound indicates the requested alias is not currently registered.
var ErrAliasNotFound = errors.New("alias not found")

// ErrIPNotFound indicates no robot is currently registered at the given IP.
var ErrIPNotFound = errors.New("ip address not found")

// ErrRegistrationLost indicates a registration attempt lost the tie-break
// race against a concurrent registration for the same (ip, port) pair and
// must close its connection rather than proceed.
var ErrRegistrationLost = errors.New("registration lost race to a concurrent connection")

// Subscription errors.

// ErrUnknownSubscriber indicates a send was attempted against a client id
// that is no longer present in the subscription map.
var ErrUnknownSubscriber = errors.New("subscriber not found")

// Firmware / OTA errors.

// ErrUploadInProgress indicates a second firmware upload was started for an
// IP that already has one staged and incomplete.
var ErrUploadInProgress = errors.New("firmware upload already in progress for this ip")

// ErrNoUploadStaged indicates a chunk or finalize request arrived for an IP
// with no staged upload.
var ErrNoUploadStaged = errors.New("no firmware upload staged for this ip")

// ErrFirmwareSizeMismatch indicates the staged byte count did not match the
// declared size at finalize time.
var ErrFirmwareSizeMismatch = errors.New("staged firmware size does not match declared size")

// ErrOTAAlreadyArmed indicates a second arm request arrived while the OTA
// server already holds an armed delivery for another target.
var ErrOTAAlreadyArmed = errors.New("ota server already armed for another target")

// ErrOTANotArmed indicates an OTA connection arrived with no arm in place.
var ErrOTANotArmed = errors.New("ota server is not armed")

// Protocol errors.

// ErrUnknownCommand indicates an unrecognized UI command name.
var ErrUnknownCommand = errors.New("unknown command")

// ErrInvalidInput indicates invalid or missing parameters on an otherwise
// recognized request.
var ErrInvalidInput = errors.New("invalid input provided")
