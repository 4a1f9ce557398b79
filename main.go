// Public domain.

package main

import "github.com/asterhaus/skyvi/internal/viprog"

func main() {
	viprog.Main()
}
