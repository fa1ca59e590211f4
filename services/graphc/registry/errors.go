// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import "errors"

var (
	// ErrUnknownKind indicates a library entry with an unrecognized kind.
	ErrUnknownKind = errors.New("unknown node kind")

	// ErrInvalidEntry indicates a library entry that fails validation.
	ErrInvalidEntry = errors.New("invalid registry entry")

	// ErrDuplicateEntry indicates two entries share a name.
	ErrDuplicateEntry = errors.New("duplicate registry entry")

	// ErrInvalidLibrary indicates a library file that cannot be decoded.
	ErrInvalidLibrary = errors.New("invalid node library")
)
