package controller

import (
	"reflect"
	"testing"
)

func TestParseParameters(t *testing.T) {
	tests := []struct {
		name        string
		params      map[string]string
		wantIPs     []string
		wantNames   []string
		wantMessage string
		wantNotices []string
	}{
		{
			name:      "valid",
			params:    map[string]string{"IP_Addresses": "10.0.0.5;10.0.0.6", "Device_Names": "Lamp;Desk"},
			wantIPs:   []string{"10.0.0.5", "10.0.0.6"},
			wantNames: []string{"Lamp", "Desk"},
		},
		{
			name:      "entries trimmed and blanks dropped",
			params:    map[string]string{"IP_Addresses": " 10.0.0.5 ; ;10.0.0.6;", "Device_Names": "Lamp ; Desk"},
			wantIPs:   []string{"10.0.0.5", "10.0.0.6"},
			wantNames: []string{"Lamp", "Desk"},
		},
		{
			name:        "both missing",
			params:      map[string]string{},
			wantMessage: "MISSING IP_Addresses Parameter; MISSING Device_Names Parameter",
			wantNotices: []string{"IP_Addresses", "Device_Names"},
		},
		{
			name:        "short ip list",
			params:      map[string]string{"IP_Addresses": "1.2.3", "Device_Names": "Lamp"},
			wantMessage: "INVALID IP_Addresses Parameter",
			wantNotices: []string{"IP_Addresses"},
		},
		{
			name:        "empty names",
			params:      map[string]string{"IP_Addresses": "10.0.0.5", "Device_Names": ""},
			wantMessage: "INVALID Device_Names Parameter",
			wantNotices: []string{"Device_Names"},
		},
		{
			name:        "only separators",
			params:      map[string]string{"IP_Addresses": ";;;;;;;", "Device_Names": "Lamp"},
			wantMessage: "INVALID IP_Addresses Parameter",
			wantNotices: []string{"IP_Addresses"},
		},
		{
			name:        "count mismatch",
			params:      map[string]string{"IP_Addresses": "10.0.0.5;10.0.0.6", "Device_Names": "Lamp"},
			wantMessage: "MISMATCHED IP_Addresses / Device_Names Parameters",
			wantNotices: []string{"Device_Names"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices, invalid := ParseParameters(tt.params)

			if tt.wantMessage == "" {
				if invalid != nil {
					t.Fatalf("ParseParameters() invalid = %q, want nil", invalid.Message())
				}
				if !reflect.DeepEqual(devices.IPs, tt.wantIPs) || !reflect.DeepEqual(devices.Names, tt.wantNames) {
					t.Errorf("devices = %v / %v, want %v / %v", devices.IPs, devices.Names, tt.wantIPs, tt.wantNames)
				}
				return
			}

			if invalid == nil {
				t.Fatal("ParseParameters() invalid = nil, want problems")
			}
			if got := invalid.Message(); got != tt.wantMessage {
				t.Errorf("Message() = %q, want %q", got, tt.wantMessage)
			}
			if len(invalid.Notices) != len(tt.wantNotices) {
				t.Errorf("notices = %v, want keys %v", invalid.Notices, tt.wantNotices)
			}
			for _, key := range tt.wantNotices {
				if invalid.Notices[key] == "" {
					t.Errorf("notice %q missing", key)
				}
			}
		})
	}
}

func TestParseParameters_NoticeText(t *testing.T) {
	_, invalid := ParseParameters(map[string]string{})
	if got := invalid.Notices[ParamIPAddresses]; got != "Please populate the IP_Addresses parameter." {
		t.Errorf("notice = %q", got)
	}
}

func TestChildAddress(t *testing.T) {
	if got := ChildAddress(3); got != "gvld_3" {
		t.Errorf("ChildAddress(3) = %q, want gvld_3", got)
	}
}
