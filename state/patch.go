package state

import (
	"time"

	"github.com/mitchellh/mapstructure"
)

// Patch is a partial update keyed by the entity's json field names.
// Fields not present in the patch keep their value.
type Patch map[string]interface{}

// merge shallow-merges patch onto a copy of cur. Slice, map and pointer
// fields named in the patch are replaced, never written through, so the
// original record stays untouched.
func merge[T any](cur T, patch Patch) (T, error) {
	next := cur

	config := &mapstructure.DecoderConfig{
		Result:           &next,
		TagName:          "json",
		ZeroFields:       true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return cur, err
	}

	if err := decoder.Decode(map[string]interface{}(patch)); err != nil {
		return cur, err
	}

	return next, nil
}
