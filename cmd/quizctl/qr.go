package main

import (
	"fmt"
	"io"

	"github.com/skip2/go-qrcode"
)

// printJoinCode renders url as a terminal QR code for guests to scan.
func printJoinCode(w io.Writer, url string) error {
	code, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("encode join url: %w", err)
	}
	fmt.Fprintf(w, "join at %s\n%s", url, code.ToSmallString(false))
	return nil
}
