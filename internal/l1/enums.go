package l1

import "fmt"

// Enumeration name tables for L1 signaling fields, per ATSC A/322. Values
// outside a table render as "Reserved" (or "Reserved (<n>)" where the raw
// value aids diagnosis) instead of indexing out of range.

var timeInfoNames = []string{
	"Not included",
	"ms precision",
	"us precision",
	"ns precision",
}

var paprNames = []string{
	"None",
	"Tone reservation only",
	"ACE only",
	"Both TR and ACE",
}

var fftSizeNames = []string{"8K", "16K", "32K"}

// Guard interval values 1..12; 0 and 13..15 are reserved.
var guardIntervalNames = map[uint64]string{
	1:  "GI_1_192",
	2:  "GI_2_384",
	3:  "GI_3_512",
	4:  "GI_4_768",
	5:  "GI_5_1024",
	6:  "GI_6_1536",
	7:  "GI_7_2048",
	8:  "GI_8_2432",
	9:  "GI_9_3072",
	10: "GI_10_3648",
	11: "GI_11_4096",
	12: "GI_12_4864",
}

var fecTypeNames = []string{
	"BCH + 16K LDPC",
	"BCH + 64K LDPC",
	"CRC + 16K LDPC",
	"CRC + 64K LDPC",
	"16K LDPC only",
	"64K LDPC only",
}

var modNames = []string{"QPSK", "16QAM", "64QAM", "256QAM", "1024QAM", "4096QAM"}

var codNames = []string{
	"2/15", "3/15", "4/15", "5/15", "6/15", "7/15",
	"8/15", "9/15", "10/15", "11/15", "12/15", "13/15",
}

var tiModeNames = []string{"No TI", "CTI", "HTI"}

// name resolves v against a dense table, falling back to "Reserved".
func name(table []string, v uint64) string {
	if v < uint64(len(table)) {
		return table[v]
	}
	return "Reserved"
}

func guardIntervalName(v uint64) string {
	if s, ok := guardIntervalNames[v]; ok {
		return s
	}
	return fmt.Sprintf("Reserved (%d)", v)
}

func layerName(v uint64) string {
	switch v {
	case 0:
		return "Core"
	case 1:
		return "Enhanced"
	}
	return "Reserved"
}

func scramblerName(v uint64) string {
	if v == 0 {
		return "PRBS"
	}
	return "Reserved"
}

func mimoName(v uint64) string {
	if v == 0 {
		return "No MIMO"
	}
	return "MIMO"
}
