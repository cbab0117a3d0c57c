// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cas

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// formatError reports malformed bytes: a bad magic number, an unknown region
// code or an unknown enumeration value.
func formatError(format string, args ...interface{}) error {
	return errors.E(errors.Invalid, "cas: "+fmt.Sprintf(format, args...))
}

// structuralError reports a well-formed file that disagrees with itself or
// with its companion sequence files.
func structuralError(format string, args ...interface{}) error {
	return errors.E(errors.Integrity, "cas: "+fmt.Sprintf(format, args...))
}

// StructuralError returns a StructuralMismatch error. It is used by packages
// that bind cas indexes to sequence data.
func StructuralError(format string, args ...interface{}) error {
	return structuralError(format, args...)
}

func ioError(err error, what string) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*errors.Error); ok {
		return err
	}
	return errors.E(err, "cas: "+what)
}

// IsFormatError reports whether err is caused by malformed cas bytes.
func IsFormatError(err error) bool {
	return errors.Is(errors.Invalid, err)
}

// IsStructuralMismatch reports whether err is caused by an inconsistency
// between the file's declared structure and its contents or companion data.
func IsStructuralMismatch(err error) bool {
	return errors.Is(errors.Integrity, err)
}
