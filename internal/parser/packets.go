package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"flow-rule-analyzer/internal/model"
	"flow-rule-analyzer/pkg/wellknown"
)

var packetColumns = []string{
	model.FieldSrcIP,
	model.FieldDstIP,
	model.FieldSrcMAC,
	model.FieldDstMAC,
	model.FieldSrcPort,
	model.FieldDstPort,
	model.FieldProtocol,
	model.FieldVlanID,
	model.FieldInPort,
}

// ParsePackets reads packets from a CSV file whose header names packet fields
// (srcIp, dstPort, ...). Port columns accept well-known service names. Rows
// with unparsable numbers are skipped.
func ParsePackets(r io.Reader) ([]model.Packet, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("could not read header: %w", err)
	}

	colMap := make(map[string]int)
	for i, colName := range header {
		for _, field := range packetColumns {
			if strings.EqualFold(strings.TrimSpace(colName), field) {
				colMap[field] = i
			}
		}
	}
	if len(colMap) == 0 {
		return nil, fmt.Errorf("could not find any packet field column in header %v", header)
	}

	var packets []model.Packet
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		packet, ok := parsePacketRecord(record, colMap)
		if !ok {
			continue
		}
		packets = append(packets, packet)
	}
	return packets, nil
}

func parsePacketRecord(record []string, colMap map[string]int) (model.Packet, bool) {
	var packet model.Packet
	ok := true
	value := func(field string) string {
		i, found := colMap[field]
		if !found || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	number := func(field string, resolve func(string) (int, bool)) *int {
		v := value(field)
		if v == "" {
			return nil
		}
		n, valid := resolve(v)
		if !valid {
			ok = false
			return nil
		}
		return &n
	}
	atoi := func(s string) (int, bool) {
		n, err := strconv.Atoi(s)
		return n, err == nil
	}

	packet.SrcIP = value(model.FieldSrcIP)
	packet.DstIP = value(model.FieldDstIP)
	packet.SrcMAC = value(model.FieldSrcMAC)
	packet.DstMAC = value(model.FieldDstMAC)
	packet.Protocol = value(model.FieldProtocol)
	packet.SrcPort = number(model.FieldSrcPort, wellknown.ResolvePort)
	packet.DstPort = number(model.FieldDstPort, wellknown.ResolvePort)
	packet.VlanID = number(model.FieldVlanID, atoi)
	packet.InPort = number(model.FieldInPort, atoi)
	return packet, ok
}
