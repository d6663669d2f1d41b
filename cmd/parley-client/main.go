// Command parley-client is a minimal line-oriented terminal client: it
// relays server lines to stdout and stdin lines to the server. All chat
// behavior lives on the server side.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
)

func main() {
	addr := "localhost:5000"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	// Relay server lines to the terminal until the connection closes.
	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			fmt.Println(scanner.Text())
		}
		fmt.Println("disconnected")
		os.Exit(0)
	}()

	stdin := bufio.NewScanner(os.Stdin)
	for stdin.Scan() {
		if _, err := fmt.Fprintln(conn, stdin.Text()); err != nil {
			fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
			os.Exit(1)
		}
	}
}
