package utils

import (
	"io"

	"github.com/bytedance/sonic"
)

func Ptr[T any](v T) *T {
	return &v
}

// DecodeJSON reads r fully and decodes it into v. An empty body leaves v untouched.
func DecodeJSON(r io.Reader, v any) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return sonic.Unmarshal(body, v)
}
