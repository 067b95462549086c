// mux-inspect dumps the state of the overlay layer's shared-memory
// objects: the negotiation segment, a per-overlay RPC arena, or a
// shared texture, named on the command line.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/IemptyB/OpenXR-OverlayLayer/internal/ipc"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/texture"
	"github.com/IemptyB/OpenXR-OverlayLayer/internal/transport"
)

var (
	rpcPID  = flag.Uint("rpc", 0, "inspect the RPC segment of the given overlay pid")
	texName = flag.String("texture", "", "inspect a shared texture segment by name")
)

func main() {
	flag.Parse()

	switch {
	case *rpcPID != 0:
		inspectSegment(transport.RPCSegmentName(uint32(*rpcPID)))
	case *texName != "":
		inspectTexture(*texName)
	default:
		inspectSegment(transport.NegotiationSegmentName)
	}
}

func inspectSegment(name string) {
	if !ipc.SegmentExists(name) {
		fmt.Printf("segment %s: not present\n", name)
		os.Exit(1)
	}
	seg, err := ipc.OpenSegment(name)
	if err != nil {
		log.Fatalf("open segment %s: %v", name, err)
	}
	defer seg.Close()

	h := seg.H
	fmt.Printf("=== Segment %s ===\n", name)
	fmt.Printf("Version:       %d\n", h.Version())
	fmt.Printf("Total size:    %d bytes\n", h.TotalSize())
	fmt.Printf("Main pid:      %d (ready=%v)\n", h.MainPID(), h.MainReady())
	fmt.Printf("Overlay pid:   %d (ready=%v)\n", h.OverlayPID(), h.OverlayReady())
	fmt.Printf("Closed:        %v\n", h.Closed())
}

func inspectTexture(name string) {
	t, err := texture.Open(name)
	if err != nil {
		log.Fatalf("open texture %s: %v", name, err)
	}
	defer t.Close()

	fmt.Printf("=== Shared texture %s ===\n", name)
	fmt.Printf("Dimensions: %dx%d\n", t.Width(), t.Height())
	fmt.Printf("Format:     %d\n", t.Format())
	fmt.Printf("Held:       %v\n", t.Held())
	fmt.Printf("Pixels:     %d bytes\n", len(t.Pixels()))
}
