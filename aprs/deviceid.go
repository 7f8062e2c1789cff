package aprs

import (
	_ "embed"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed deviceid.yaml
var deviceIDData []byte

type micEDevice struct {
	Prefix string `yaml:"prefix"`
	Suffix string `yaml:"suffix"`
	Vendor string `yaml:"vendor"`
	Model  string `yaml:"model"`
}

func (d micEDevice) String() string {
	return strings.TrimSpace(d.Vendor + " " + d.Model)
}

type deviceTable struct {
	MicE       []micEDevice `yaml:"mice"`
	MicELegacy []micEDevice `yaml:"micelegacy"`
}

var loadDevices = sync.OnceValues(func() (deviceTable, error) {
	var t deviceTable
	err := yaml.Unmarshal(deviceIDData, &t)
	return t, err
})

// identifyMicE finds the manufacturer marker in a MIC-E comment and
// returns the device name and the comment with the marker removed.
// Legacy prefix entries are tried first; the more specific entry (with a
// suffix) wins over a bare prefix.
func identifyMicE(text string) (string, string) {
	table, err := loadDevices()
	if err != nil {
		return "", strings.TrimSpace(text)
	}

	if text != "" {
		for _, d := range table.MicELegacy {
			if !strings.HasPrefix(text, d.Prefix) {
				continue
			}
			rest := text[len(d.Prefix):]
			if d.Suffix == "" {
				return d.String(), strings.TrimSpace(rest)
			}
			if strings.HasSuffix(rest, d.Suffix) {
				return d.String(), strings.TrimSpace(strings.TrimSuffix(rest, d.Suffix))
			}
		}
	}

	for _, d := range table.MicE {
		if strings.HasSuffix(text, d.Suffix) {
			return d.String(), strings.TrimSpace(strings.TrimSuffix(text, d.Suffix))
		}
	}

	return "", strings.TrimSpace(text)
}
