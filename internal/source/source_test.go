package source

import "testing"

func TestNameAndData(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		wantName string
		wantData bool
	}{
		{"full", Message{"name": "dht", "data": map[string]any{"t": 1.0}}, "dht", true},
		{"no data", Message{"name": "p1"}, "p1", false},
		{"wrong types", Message{"name": 3, "data": "x"}, "", false},
		{"empty", Message{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Name(tt.msg); got != tt.wantName {
				t.Errorf("Name() = %q, want %q", got, tt.wantName)
			}
			if _, ok := Data(tt.msg); ok != tt.wantData {
				t.Errorf("Data() ok = %v, want %v", ok, tt.wantData)
			}
		})
	}
}
