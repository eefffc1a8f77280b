package main

import (
	"go.uber.org/fx"

	"github.com/furfield/procurement/internal/app"
)

// main runs the HTTP and gRPC servers without the CLI wrapper.
func main() {
	fx.New(app.Module).Run()
}
