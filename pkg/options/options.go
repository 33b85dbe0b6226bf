// Package options 各组件命令行选项的公共约定。
//
// 每个组件的 Options 通过 AddFlags 注册带前缀的 flag（如 milvus.address），
// 并在启动前由 Validate 返回全部校验错误。
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// IOptions 组件选项需实现的接口。
type IOptions interface {
	Validate() []error
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// Join 拼接 flag 前缀，非空时以 "." 结尾，例如 Join("cache") == "cache."。
func Join(prefixes ...string) string {
	var b strings.Builder
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		b.WriteString(p)
		b.WriteByte('.')
	}
	return b.String()
}
