// Command ipldstore is a small CLI over the key/value mapper: it reads and
// writes keys under a frozen root on a running IPFS daemon and moves whole
// sessions in and out of CAR archives.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
