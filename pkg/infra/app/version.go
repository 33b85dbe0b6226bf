package app

import "github.com/kart-io/version"

// GetVersion 返回构建时注入的 git 版本，未注入时为版本库默认值。
func GetVersion() string {
	return version.Get().GitVersion
}
