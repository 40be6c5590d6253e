package store

import "fmt"

// NotFoundError reports that no entity with the given id exists in the collection.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Collection, e.ID)
}

// DuplicateIDError reports a Create with a caller-supplied id that already exists.
type DuplicateIDError struct {
	Collection string
	ID         string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Collection, e.ID)
}

// IsNotFound reports whether err is a store NotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsDuplicateID reports whether err is a store DuplicateIDError.
func IsDuplicateID(err error) bool {
	_, ok := err.(*DuplicateIDError)
	return ok
}
