package domain

import (
	"errors"
	"fmt"
)

// Code is a stable error identity from spec.md §7. Zero is reserved for
// success; every mutation-API and commit-executor path returns one of these
// (never a bare os.PathError or similar) so callers can switch on identity
// rather than message text.
type Code int

const (
	OK Code = iota

	// Engine-wide
	CHANGE_READONLY
	MEMORY_EXHAUSTED
	LOCK_CONTENDED

	// Lookup
	DISK_NOT_FOUND
	VOLUME_NOT_FOUND
	LVM_VG_NOT_FOUND
	LVM_LV_NOT_FOUND
	MD_NOT_FOUND
	LOOP_NOT_FOUND
	DMRAID_CO_NOT_FOUND
	DMMULTIPATH_CO_NOT_FOUND
	CONTAINER_NOT_FOUND
	BACKUP_STATE_NOT_FOUND

	// Validation
	VG_INVALID_NAME
	MD_INVALID_NAME
	LVM_INVALID_DEVICE
	INVALID_FSTAB_VALUE
	NO_FSTAB_PTR

	// Consistency
	DISK_USED_BY
	REMOVE_USED_VOLUME
	REMOVE_PARTITION_INVALID_CONTAINER
	CHANGE_AREA_INVALID_CONTAINER
	CHANGE_PARTITION_ID_INVALID_CONTAINER
	RESIZE_INVALID_CONTAINER
	DISK_INIT_NOT_POSSIBLE
	REMOVE_USING_UNKNOWN_TYPE
	LVM_VG_EXISTS

	// Execution
	DEVICE_NODE_NOT_FOUND
	ZERO_DEVICE_FAILED
	CREATED_LOOP_NOT_FOUND
)

var codeNames = map[Code]string{
	OK:                                     "OK",
	CHANGE_READONLY:                        "CHANGE_READONLY",
	MEMORY_EXHAUSTED:                       "MEMORY_EXHAUSTED",
	LOCK_CONTENDED:                         "LOCK_CONTENDED",
	DISK_NOT_FOUND:                         "DISK_NOT_FOUND",
	VOLUME_NOT_FOUND:                       "VOLUME_NOT_FOUND",
	LVM_VG_NOT_FOUND:                       "LVM_VG_NOT_FOUND",
	LVM_LV_NOT_FOUND:                       "LVM_LV_NOT_FOUND",
	MD_NOT_FOUND:                           "MD_NOT_FOUND",
	LOOP_NOT_FOUND:                         "LOOP_NOT_FOUND",
	DMRAID_CO_NOT_FOUND:                    "DMRAID_CO_NOT_FOUND",
	DMMULTIPATH_CO_NOT_FOUND:               "DMMULTIPATH_CO_NOT_FOUND",
	CONTAINER_NOT_FOUND:                    "CONTAINER_NOT_FOUND",
	BACKUP_STATE_NOT_FOUND:                 "BACKUP_STATE_NOT_FOUND",
	VG_INVALID_NAME:                        "VG_INVALID_NAME",
	MD_INVALID_NAME:                        "MD_INVALID_NAME",
	LVM_INVALID_DEVICE:                     "LVM_INVALID_DEVICE",
	INVALID_FSTAB_VALUE:                    "INVALID_FSTAB_VALUE",
	NO_FSTAB_PTR:                           "NO_FSTAB_PTR",
	DISK_USED_BY:                           "DISK_USED_BY",
	REMOVE_USED_VOLUME:                     "REMOVE_USED_VOLUME",
	REMOVE_PARTITION_INVALID_CONTAINER:     "REMOVE_PARTITION_INVALID_CONTAINER",
	CHANGE_AREA_INVALID_CONTAINER:          "CHANGE_AREA_INVALID_CONTAINER",
	CHANGE_PARTITION_ID_INVALID_CONTAINER:  "CHANGE_PARTITION_ID_INVALID_CONTAINER",
	RESIZE_INVALID_CONTAINER:               "RESIZE_INVALID_CONTAINER",
	DISK_INIT_NOT_POSSIBLE:                 "DISK_INIT_NOT_POSSIBLE",
	REMOVE_USING_UNKNOWN_TYPE:              "REMOVE_USING_UNKNOWN_TYPE",
	LVM_VG_EXISTS:                          "LVM_VG_EXISTS",
	DEVICE_NODE_NOT_FOUND:                  "DEVICE_NODE_NOT_FOUND",
	ZERO_DEVICE_FAILED:                     "ZERO_DEVICE_FAILED",
	CREATED_LOOP_NOT_FOUND:                 "CREATED_LOOP_NOT_FOUND",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// StorageError carries a stable Code plus a free-form diagnostic, matching
// spec.md §7's "extended error text" slot. Negative Code values are never
// used in Go (the taxonomy is carried as an enum, not as the original's
// negative-int return codes) but every non-OK Code is still a distinct,
// switchable identity.
type StorageError struct {
	Code Code
	Text string
	err  error
}

func NewError(code Code, format string, args ...interface{}) *StorageError {
	return &StorageError{Code: code, Text: fmt.Sprintf(format, args...)}
}

func WrapError(code Code, err error) *StorageError {
	return &StorageError{Code: code, Text: err.Error(), err: err}
}

func (e *StorageError) Error() string {
	if e.Text == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Text)
}

func (e *StorageError) Unwrap() error { return e.err }

// Is lets errors.Is(err, domain.NewError(CODE, "")) match on Code alone.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the Code from err if it is (or wraps) a *StorageError.
func CodeOf(err error) (Code, bool) {
	var se *StorageError
	if !errors.As(err, &se) {
		return OK, false
	}
	return se.Code, true
}
