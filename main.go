// Public domain.

package main

import "github.com/viscoinv/occam/internal/occprog"

func main() {
	occprog.Main()
}
