package errors

import (
	"fmt"
	"sync"
)

// registry 按数字码索引所有已声明的 Errno，响应层据此补全消息。
var registry sync.Map

// Register 登记 Errno 并原样返回，便于在 var 块中声明。
// 同一数字码重复登记说明码表冲突，直接 panic。
func Register(e *Errno) *Errno {
	if prev, loaded := registry.LoadOrStore(e.Code, e); loaded {
		panic(fmt.Sprintf("errno %d declared twice (%q, %q)", e.Code, prev.(*Errno).MessageEN, e.MessageEN))
	}
	return e
}

// Lookup 按数字码查找 Errno。
func Lookup(code int) (*Errno, bool) {
	v, ok := registry.Load(code)
	if !ok {
		return nil, false
	}
	return v.(*Errno), true
}
