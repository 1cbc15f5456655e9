package audio

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/golang/glog"
	"github.com/gordonklaus/portaudio"
)

var deviceTmpl = template.Must(template.New("").Parse(
	`{{. | len}} host APIs: {{range .}}
	Name:                   {{.Name}}
	{{if .DefaultInputDevice}}Default input device:   {{.DefaultInputDevice.Name}}{{end}}
	Devices: {{range .Devices}}{{if .MaxInputChannels}}
		Name:                      {{.Name}}
		MaxInputChannels:          {{.MaxInputChannels}}
		DefaultLowInputLatency:    {{.DefaultLowInputLatency}}
		DefaultHighInputLatency:   {{.DefaultHighInputLatency}}
		DefaultSampleRate:         {{.DefaultSampleRate}}
	{{end}}{{end}}
{{end}}`,
))

// DeviceList renders the host's capture devices using deviceTmpl.
func DeviceList() (string, error) {
	if err := portaudio.Initialize(); err != nil {
		return "", fmt.Errorf("initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	hs, err := portaudio.HostApis()
	if err != nil {
		return "", fmt.Errorf("listing host APIs: %w", err)
	}
	buf := bytes.NewBuffer([]byte{})
	if err := deviceTmpl.Execute(buf, hs); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PrintDevices logs the capture devices available to portaudio.
func PrintDevices() error {
	s, err := DeviceList()
	if err != nil {
		return err
	}
	glog.Info(s)
	return nil
}
