package main

import (
	"log"
	"os"

	"github.com/tdewolff/argp"
)

var (
	Error   *log.Logger
	Warning *log.Logger
)

func main() {
	Error = log.New(os.Stderr, "ERROR: ", 0)
	Warning = log.New(os.Stderr, "WARNING: ", 0)

	cmd := argp.New("Command line toolkit for variable TTF and OTF files")
	cmd.AddCmd(&Info{}, "info", "Get axes, named instances, and variation tables")
	cmd.AddCmd(&Instance{}, "instance", "Resolve variations into a static font")
	cmd.Parse()
}
