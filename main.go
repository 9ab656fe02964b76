// Package main is the entry point for the image moderation-and-publish
// pipeline.
package main

import (
	"log"
	"os"
)

var (
	// version can be set at build time via -ldflags
	version = "dev"
)

func main() {
	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "run":
		runOnce()
	case "watch":
		runWatch()
	case "purge-posts":
		runPurgePosts()
	case "set-visibility":
		runSetVisibility()
	case "version":
		log.Printf("sd-image-processing-and-upload v%s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		log.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	log.Println(`Usage: sd-image-processing-and-upload [command]

Commands:
  run             Process all pending input images once and exit (default)
  watch           Poll the input directory at the configured interval
  purge-posts     Delete every post on the blog (destructive; testing aid)
  set-visibility  Set the visibility of all existing posts (arg: visibility)
  version         Print the version
  help            Show this message

Configuration is read from the file named by CONFIG_PATH (default
config.yml, optional), then .env files, then environment variables.`)
}
