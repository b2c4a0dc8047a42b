package services

// Custom errors
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

// IntegrityError signals a broken audit chain: a security incident,
// never a normal-path failure, and never silently swallowed.
type IntegrityError struct {
	BrokenAt int64
	Reason   string
}

func (e *IntegrityError) Error() string { return e.Reason }
