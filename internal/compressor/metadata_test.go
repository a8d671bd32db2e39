package compressor

import (
	"testing"

	"github.com/m-mizutani/gt"
)

func TestHasSoftwareMarker(t *testing.T) {
	tests := []struct {
		name     string
		software string
		marker   string
		want     bool
	}{
		{name: "stamped", software: "imgcompress", marker: "imgcompress", want: true},
		{name: "stamped with version", software: "imgcompress 1.2", marker: "imgcompress", want: true},
		{name: "camera firmware", software: "Canon EOS 5D Firmware 1.1", marker: "imgcompress", want: false},
		{name: "empty marker", software: "Canon EOS 5D Firmware 1.1", marker: "", want: false},
		{name: "no software tag", software: "", marker: "imgcompress", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Equal(t, hasSoftwareMarker(tt.software, tt.marker), tt.want)
		})
	}
}
