package monitor

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   []float64
		isPlot bool
	}{
		{"comma pair", "12,34", []float64{12, 34}, true},
		{"free text", "hello", nil, false},
		{"single value", "42", nil, false},
		{"space separated", "1.5 2.5 3.5", []float64{1.5, 2.5, 3.5}, true},
		{"tab separated", "10\t20", []float64{10, 20}, true},
		{"labelled values", "temp: 23.5, hum: 56.1", []float64{23.5, 56.1}, true},
		{"negative and exponent", "-3 1e3", []float64{-3, 1000}, true},
		{"nan excluded", "NaN NaN", nil, false},
		{"inf leaves one finite", "Inf 3", nil, false},
		{"empty tokens skipped", "12,,34", []float64{12, 34}, true},
		{"empty line", "", nil, false},
		{"trailing comma", "7,8,", []float64{7, 8}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.line)
			if ok != tt.isPlot {
				t.Fatalf("Classify(%q) ok = %v, want %v", tt.line, ok, tt.isPlot)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Classify(%q) = %v, want %v", tt.line, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Classify(%q)[%d] = %v, want %v", tt.line, i, got[i], tt.want[i])
				}
			}
		})
	}
}
