package main

import (
	"os"

	"github.com/drwebengine/drwe/internal/app"
)

func main() {
	os.Exit(app.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
