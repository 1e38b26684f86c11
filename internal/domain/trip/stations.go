package trip

import "sort"

// Stations served by SRT, spelled as the booking site lists them.
var stations = map[string]struct{}{
	"수서":      {},
	"동탄":      {},
	"평택지제":    {},
	"천안아산":    {},
	"오송":      {},
	"대전":      {},
	"김천(구미)":  {},
	"동대구":     {},
	"신경주":     {},
	"울산(통도사)": {},
	"부산":      {},
	"공주":      {},
	"익산":      {},
	"정읍":      {},
	"광주송정":    {},
	"나주":      {},
	"목포":      {},
}

// Short names offered on quick-pick keyboards.
var aliases = map[string]string{
	"김천구미": "김천(구미)",
	"울산":   "울산(통도사)",
}

// CanonicalStation resolves a station name or alias to the name the booking site expects.
func CanonicalStation(name string) (string, bool) {
	if c, ok := aliases[name]; ok {
		name = c
	}
	_, ok := stations[name]
	return name, ok
}

// Stations returns the known station names in sorted order.
func Stations() []string {
	out := make([]string, 0, len(stations))
	for s := range stations {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// QuickPick is the short list of frequently used stations, in route order.
var QuickPick = [][]string{
	{"수서", "동탄", "평택지제"},
	{"천안아산", "오송", "대전"},
	{"김천구미", "동대구", "신경주"},
	{"울산", "부산"},
}

// Aliases returns a copy of the short-name to station mapping.
func Aliases() map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}
