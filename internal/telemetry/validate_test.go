package telemetry

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	valid := Reading{Temperature: 28.5, Humidity: 55, Light: 42}

	tests := []struct {
		name    string
		mutate  func(*Reading)
		wantErr bool
	}{
		{name: "valid reading", mutate: func(*Reading) {}, wantErr: false},
		{name: "temperature at lower bound", mutate: func(r *Reading) { r.Temperature = -50 }, wantErr: false},
		{name: "temperature at upper bound", mutate: func(r *Reading) { r.Temperature = 100 }, wantErr: false},
		{name: "temperature below range", mutate: func(r *Reading) { r.Temperature = -50.1 }, wantErr: true},
		{name: "temperature above range", mutate: func(r *Reading) { r.Temperature = 100.1 }, wantErr: true},
		{name: "humidity at bounds", mutate: func(r *Reading) { r.Humidity = 0 }, wantErr: false},
		{name: "humidity negative", mutate: func(r *Reading) { r.Humidity = -0.1 }, wantErr: true},
		{name: "humidity above 100", mutate: func(r *Reading) { r.Humidity = 100.5 }, wantErr: true},
		{name: "light at upper bound", mutate: func(r *Reading) { r.Light = 100 }, wantErr: false},
		{name: "light above range", mutate: func(r *Reading) { r.Light = 101 }, wantErr: true},
		{name: "light negative", mutate: func(r *Reading) { r.Light = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := Validate(&r)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidReading) {
				t.Errorf("error %v does not wrap ErrInvalidReading", err)
			}
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, ErrInvalidReading) {
		t.Errorf("Validate(nil) error = %v, want ErrInvalidReading", err)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantErr    bool
		wantDevice string
	}{
		{
			name:       "complete payload",
			payload:    `{"temperature":28.5,"humidity":55,"light":42,"device_id":"esp32_002"}`,
			wantDevice: "esp32_002",
		},
		{
			name:       "missing device_id uses default",
			payload:    `{"temperature":28.5,"humidity":55,"light":42}`,
			wantDevice: DefaultDeviceID,
		},
		{name: "missing temperature", payload: `{"humidity":55,"light":42}`, wantErr: true},
		{name: "missing humidity", payload: `{"temperature":28.5,"light":42}`, wantErr: true},
		{name: "missing light", payload: `{"temperature":28.5,"humidity":55}`, wantErr: true},
		{name: "malformed JSON", payload: `{"temperature":`, wantErr: true},
		{name: "empty payload", payload: ``, wantErr: true},
		{
			name:       "zero values are present not missing",
			payload:    `{"temperature":0,"humidity":0,"light":0}`,
			wantDevice: DefaultDeviceID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Decode([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidReading) {
					t.Errorf("Decode() error = %v, want ErrInvalidReading", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if r.DeviceID != tt.wantDevice {
				t.Errorf("DeviceID = %q, want %q", r.DeviceID, tt.wantDevice)
			}
		})
	}
}
