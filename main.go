// nagowidget is a chat client for an AI Assistant HTTP backend.
package main

import "github.com/linanwx/nagowidget/cmd"

func main() {
	cmd.Execute()
}
