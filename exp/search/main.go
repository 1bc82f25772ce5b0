package main

import (
	"flag"
	"fmt"
	"net"
	"time"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmg"
)

// Broadcasts the id command and prints every reply until the deadline,
// unlike gmg discover which stops at the first grill.
func main() {
	bcast := flag.String("broadcast", gmg.DefaultBroadcastAddress, "broadcast address")
	port := flag.Int("port", gmg.DefaultPort, "grill port")
	wait := flag.Duration("wait", 10*time.Second, "how long to listen")
	flag.Parse()

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		fmt.Println("Error listening on UDP:", err)
		return
	}
	defer conn.Close()

	search := gmg.CommandGetID.Bytes()
	_, err = conn.WriteToUDP(search, &net.UDPAddr{IP: net.ParseIP(*bcast), Port: *port})
	if err != nil {
		fmt.Println("Error sending search command:", err)
		return
	}

	fmt.Println("Sent UL command, waiting for responses...")
	conn.SetReadDeadline(time.Now().Add(*wait))

	buffer := make([]byte, 1024)
	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				fmt.Println("No more responses.")
				return
			}
			fmt.Println("Error reading from UDP:", err)
			continue
		}

		if string(buffer[:n]) == string(search) {
			continue
		}

		fmt.Printf("Found grill at %s: %q\n", addr, buffer[:n])
	}
}
