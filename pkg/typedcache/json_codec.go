package typedcache

import "encore.app/pkg/utils"

// JSONCodec is the default Codec[T], encoding values as JSON through
// pkg/utils' wrapped marshal/unmarshal helpers. This is the generalized
// form of the teacher's per-call json.Marshal/Unmarshal pairs in
// cache-manager/service.go.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	return utils.MarshalJSON(v)
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	err := utils.UnmarshalJSON(data, &v)
	return v, err
}
