package usage

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

var (
	errInvalidJSON = errors.New("payload is not valid JSON")
	errNotObject   = errors.New("payload is not a JSON object")
)

// parseObject validates payload and returns it as a JSON object. Field
// lookups on the result match key names exactly.
func parseObject(payload []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(payload) {
		return gjson.Result{}, errInvalidJSON
	}

	obj := gjson.ParseBytes(payload)
	if !obj.IsObject() {
		return gjson.Result{}, errNotObject
	}
	return obj, nil
}

// boolField reads an optional boolean. Missing and null read as false.
func boolField(obj gjson.Result, name string) (bool, error) {
	v := obj.Get(name)
	switch v.Type {
	case gjson.True:
		return true, nil
	case gjson.False, gjson.Null:
		return false, nil
	default:
		return false, fmt.Errorf("%s is not a boolean", name)
	}
}

// countField reads an optional token count. Missing and null read as absent;
// anything other than a non-negative integer is an error.
func countField(obj gjson.Result, name string) (*uint64, error) {
	v := obj.Get(name)
	switch v.Type {
	case gjson.Null:
		return nil, nil
	case gjson.Number:
		n, err := strconv.ParseUint(v.Raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s is not a token count: %w", name, err)
		}
		return &n, nil
	default:
		return nil, fmt.Errorf("%s is not a token count", name)
	}
}
