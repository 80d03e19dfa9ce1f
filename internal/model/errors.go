package model

import "errors"

var (
	// ErrMatchCompilation is reported when the configured patterns do not compile.
	ErrMatchCompilation = errors.New("match pattern compilation failed")
	// ErrSerialization marks a value that could not be dumped to text.
	ErrSerialization = errors.New("value could not be serialized")
	// ErrPersistence wraps any write the backing store rejected.
	ErrPersistence = errors.New("record persistence failed")
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("record not found")
)
