package geyser

// NotInitializedError is returned from [*Session] methods
// called before the matching Init method.
type NotInitializedError struct {
	Op string
}

func (e NotInitializedError) Error() string {
	return "session not initialized for " + e.Op
}
