package vkapi

import "fmt"

// Error is the error envelope returned by the VK API inside an otherwise
// successful HTTP response.
type Error struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}
