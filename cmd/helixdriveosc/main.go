// Command helixdriveosc sends a single OSC address/args message, the Go
// analogue of original_source/sendosc.py's one-shot sendosc() helper.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/hypebeast/go-osc/osc"
)

func main() {
	var (
		host    = flag.String("host", "127.0.0.1", "destination host")
		port    = flag.Int("port", 50000, "destination port")
		address = flag.String("address", "", "OSC address, e.g. /goTo")
		argsCSV = flag.String("args", "", "comma-separated argument list, e.g. 255,50000")
	)
	flag.Parse()

	if strings.TrimSpace(*address) == "" {
		log.Fatal("helixdriveosc: -address is required")
	}

	client := osc.NewClient(*host, *port)
	msg := osc.NewMessage(*address)
	for _, arg := range parseArgs(*argsCSV) {
		msg.Append(arg)
	}

	if err := client.Send(msg); err != nil {
		log.Fatalf("helixdriveosc: send %s: %v", *address, err)
	}
	fmt.Printf("sent %s %v to %s:%d\n", *address, msg.Arguments, *host, *port)
}

// parseArgs splits a comma-separated arg list, coercing each token to an
// int32 or float32 where possible and falling back to a string, matching
// sendosc.py's untyped Python list literals.
func parseArgs(csv string) []any {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	tokens := strings.Split(csv, ",")
	out := make([]any, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if i, err := strconv.ParseInt(tok, 10, 32); err == nil {
			out = append(out, int32(i))
			continue
		}
		if f, err := strconv.ParseFloat(tok, 32); err == nil {
			out = append(out, float32(f))
			continue
		}
		out = append(out, tok)
	}
	return out
}
