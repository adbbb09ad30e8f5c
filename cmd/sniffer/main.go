// Command sniffer prints the frames and decoded messages exchanged with a
// railyard server, either live from a network device or from a capture file.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

var (
	device   = flag.String("d", "lo", "Device on which to listen for packets")
	file     = flag.String("r", "", "Read packets from a pcap file instead of a device")
	port     = flag.Int("port", 7777, "TCP port of the server")
	truncate = flag.Int("truncate", 0, "Only print the first N bytes of undecodable bodies (0 prints everything)")
)

func main() {
	flag.Parse()

	var (
		handle *pcap.Handle
		err    error
	)
	if *file != "" {
		handle, err = pcap.OpenOffline(*file)
	} else {
		handle, err = pcap.OpenLive(*device, math.MaxInt32, false, pcap.BlockForever)
	}
	if err != nil {
		exit("error opening handle: %v", err)
	}
	defer handle.Close()

	if err := handle.SetBPFFilter(fmt.Sprintf("tcp port %d", *port)); err != nil {
		exit("error setting filter: %v", err)
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	s := newSniffer(w, uint16(*port))
	s.truncate = *truncate
	s.startReading(gopacket.NewPacketSource(handle, handle.LinkType()).Packets())
}

func exit(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}
