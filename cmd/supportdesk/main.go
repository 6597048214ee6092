// Package main is the entry point for the customer support chat service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/supportdesk/cmd/supportdesk/app"
)

func main() {
	app.NewApp().Run()
}
