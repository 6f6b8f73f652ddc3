package controller

import (
	"fmt"
	"strings"
)

// Custom parameter keys, also used as notice keys.
const (
	ParamIPAddresses = "IP_Addresses"
	ParamDeviceNames = "Device_Names"
)

// minIPAddressesLen is the shortest IP_Addresses value accepted.
const minIPAddressesLen = 7

// listSeparator separates entries in list parameters.
const listSeparator = ";"

// Devices is a validated device list; IPs[i] belongs to Names[i].
type Devices struct {
	IPs   []string
	Names []string
}

// Len returns the number of configured devices.
func (d Devices) Len() int { return len(d.IPs) }

// Invalid describes why parameters were rejected.
type Invalid struct {
	// Notices maps a parameter key to the notice text shown on the host.
	Notices map[string]string

	// Problems are the short error strings, joined for the GPV text.
	Problems []string
}

// Message returns the text pushed to the controller's GPV driver.
func (i *Invalid) Message() string {
	return strings.Join(i.Problems, "; ")
}

func (i *Invalid) add(key, problem string) {
	if _, ok := i.Notices[key]; !ok {
		i.Notices[key] = fmt.Sprintf("Please populate the %s parameter.", key)
	}
	i.Problems = append(i.Problems, problem)
}

// ParseParameters validates the custom parameters.
//
// IP_Addresses must be present and longer than six characters, and
// Device_Names must be present and non-empty. Both are ';' separated lists
// whose trimmed, non-empty entries must line up one to one.
func ParseParameters(params map[string]string) (Devices, *Invalid) {
	inv := &Invalid{Notices: make(map[string]string)}

	rawIPs, ok := params[ParamIPAddresses]
	switch {
	case !ok:
		inv.add(ParamIPAddresses, "MISSING IP_Addresses Parameter")
	case len(rawIPs) < minIPAddressesLen:
		inv.add(ParamIPAddresses, "INVALID IP_Addresses Parameter")
	}

	rawNames, ok := params[ParamDeviceNames]
	switch {
	case !ok:
		inv.add(ParamDeviceNames, "MISSING Device_Names Parameter")
	case len(rawNames) == 0:
		inv.add(ParamDeviceNames, "INVALID Device_Names Parameter")
	}

	if len(inv.Problems) > 0 {
		return Devices{}, inv
	}

	d := Devices{IPs: splitList(rawIPs), Names: splitList(rawNames)}
	if len(d.IPs) == 0 {
		inv.add(ParamIPAddresses, "INVALID IP_Addresses Parameter")
	}
	if len(d.Names) == 0 {
		inv.add(ParamDeviceNames, "INVALID Device_Names Parameter")
	}
	if len(inv.Problems) == 0 && len(d.IPs) != len(d.Names) {
		inv.Notices[ParamDeviceNames] = fmt.Sprintf(
			"%s lists %d devices but %s lists %d; they must match.",
			ParamIPAddresses, len(d.IPs), ParamDeviceNames, len(d.Names))
		inv.Problems = append(inv.Problems, "MISMATCHED IP_Addresses / Device_Names Parameters")
	}

	if len(inv.Problems) > 0 {
		return Devices{}, inv
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, listSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ChildAddress returns the address of the i-th configured device.
func ChildAddress(i int) string {
	return fmt.Sprintf("gvld_%d", i)
}
