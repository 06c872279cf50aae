package util

type ErrorString struct {
	S string
}

func (e *ErrorString) Error() string {
	return e.S
}

func Map[T, U any](items []T, f func(item T) U) []U {
	result := make([]U, 0, len(items))
	for _, item := range items {
		result = append(result, f(item))
	}
	return result
}
