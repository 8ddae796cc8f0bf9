/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConflict matches uniqueness violations raised by Create and Update.
	ErrConflict = errors.New("entity already exists")

	ErrUnknownModel = errors.New("model is not a struct")
	ErrNoIDColumn   = errors.New("model has no id column")
	ErrNilEntity    = errors.New("entity is nil")
)

// ConflictError reports a uniqueness violation and keeps the driver error.
type ConflictError struct {
	Model string
	Err   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Model, ErrConflict, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// IsConflict reports whether err is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
