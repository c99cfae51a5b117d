package wellknown

import (
	"bytes"
	"encoding/csv"
	"io"
	"log"
	"strconv"
	"strings"

	_ "embed"
)

//go:embed well_known_ports.csv
var wellKnownPortsData string

const (
	TCP = "TCP"
	UDP = "UDP"
)

type ServiceEntry struct {
	Protocol string
	Port     int
}

var serviceRegistry map[string][]ServiceEntry

func init() {
	serviceRegistry = make(map[string][]ServiceEntry)
	reader := csv.NewReader(bytes.NewBufferString(wellKnownPortsData))
	reader.TrimLeadingSpace = true
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Fatalf("Failed to read header from embedded well_known_ports.csv: %v", err)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to parse embedded well_known_ports.csv: %v", err)
		}
		if len(record) < 3 {
			continue
		}

		port, err := strconv.Atoi(record[0])
		if err != nil {
			continue
		}

		register(record[1], ServiceEntry{Protocol: TCP, Port: port})
		register(record[2], ServiceEntry{Protocol: UDP, Port: port})
	}
}

func register(name string, entry ServiceEntry) {
	name = strings.TrimSpace(name)
	if name == "" || name == "N/A" {
		return
	}
	key := strings.ToUpper(name)
	serviceRegistry[key] = append(serviceRegistry[key], entry)
	if name == "domain" {
		serviceRegistry["DNS"] = append(serviceRegistry["DNS"], entry)
	}
}

// GetService returns the port and protocol entries for a well-known service name.
func GetService(name string) ([]ServiceEntry, bool) {
	entry, ok := serviceRegistry[strings.ToUpper(strings.TrimSpace(name))]
	return entry, ok
}

// ResolvePort accepts either a numeric port or a service name and returns the
// port number. Names registered under several transports share one port.
func ResolvePort(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if port, err := strconv.Atoi(value); err == nil {
		return port, true
	}
	entries, ok := GetService(value)
	if !ok || len(entries) == 0 {
		return 0, false
	}
	return entries[0].Port, true
}
