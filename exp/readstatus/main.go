package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmg"
)

// Dumps the raw status payload next to its decoded fields, for mapping
// offsets on new controller firmware.
func main() {
	host := flag.String("host", "10.0.0.40", "grill address")
	port := flag.Int("port", gmg.DefaultPort, "grill port")
	flag.Parse()

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{
		IP:   net.ParseIP(*host),
		Port: *port,
	})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	defer conn.Close()

	_, err = conn.Write(gmg.CommandGetStatus.Bytes())
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	buffer := make([]byte, 1024)
	n, _, err := conn.ReadFromUDP(buffer)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	h := hex.EncodeToString(buffer[:n])
	fmt.Printf("Received %d bytes\n", n)
	for i := 0; i < len(h); i += 8 {
		end := min(i+8, len(h))
		fmt.Printf("%3d  %s\n", i, h[i:end])
	}

	status, err := gmg.DecodeStatus(buffer[:n])
	if err != nil {
		slog.Error("Error decoding status", "error", err)
		return
	}
	fmt.Printf("%+v\n", *status)
}
