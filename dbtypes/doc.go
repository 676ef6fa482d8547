package dbtypes

import (
	"fmt"
	"time"
)

// Decode helpers for the map[string]interface{} shape the Firestore client
// hands back. Numbers arrive as int64 or float64, timestamps as time.Time,
// and lists as []interface{}; a few documents written by older app versions
// store string slices directly, so both list shapes are accepted.

func docString(data map[string]interface{}, key string) (string, error) {
	v, ok := data[key]
	if !ok {
		return "", fmt.Errorf("missing required field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q: want string, got %T", key, v)
	}
	return s, nil
}

func docOptionalString(data map[string]interface{}, key string) (string, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q: want string or null, got %T", key, v)
	}
	return s, nil
}

func docTime(data map[string]interface{}, key string) (time.Time, error) {
	v, ok := data[key]
	if !ok {
		return time.Time{}, fmt.Errorf("missing required field %q", key)
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("field %q: want timestamp, got %T", key, v)
	}
	return t, nil
}

func docStringList(data map[string]interface{}, key string) ([]string, error) {
	v, ok := data[key]
	if !ok {
		return nil, fmt.Errorf("missing required field %q", key)
	}
	switch list := v.(type) {
	case []string:
		return append([]string{}, list...), nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for i, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("field %q[%d]: want string, got %T", key, i, e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("field %q: want list, got %T", key, v)
}

func docCount(data map[string]interface{}, key string) int64 {
	switch n := data[key].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
