package utils

// Filter returns the elements of slice for which keep returns true
func Filter[T any](slice []T, keep func(T) bool) []T {
	var result []T
	for _, item := range slice {
		if keep(item) {
			result = append(result, item)
		}
	}
	return result
}

// Map applies fn to every element of slice
func Map[T, U any](slice []T, fn func(T) U) []U {
	result := make([]U, 0, len(slice))
	for _, item := range slice {
		result = append(result, fn(item))
	}
	return result
}

// IndexBy builds a lookup map keyed by key(item). Later duplicates win.
func IndexBy[K comparable, T any](slice []T, key func(T) K) map[K]T {
	result := make(map[K]T, len(slice))
	for _, item := range slice {
		result[key(item)] = item
	}
	return result
}
