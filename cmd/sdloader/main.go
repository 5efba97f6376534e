// Command sdloader loads a Stable Diffusion model through the boundary
// layer, generates images to PNG and keeps a local generation history.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
