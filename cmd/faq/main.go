// Package main is the entry point for the SmartTask FAQ service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/sentinel-faq/internal/faq"
)

func main() {
	faq.NewApp().Run()
}
