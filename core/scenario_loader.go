package core

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/signalsfoundry/pass-scheduler/model"
)

// Scenario is what LoadScenario produces: the ordered passes plus the raw,
// unsummarized profile catalogs of both families.
type Scenario struct {
	Passes              []*model.Pass
	AESProfiles         []*model.AESProfile
	CompressionProfiles []*model.CompressionProfile
}

// Wire shapes of the scenario file.
type scenarioJSON struct {
	Passes              []passJSON        `json:"passes"`
	AESProfiles         []aesJSON         `json:"aes_profiles"`
	CompressionProfiles []compressionJSON `json:"compression_profiles"`
}

type passJSON struct {
	Name   string      `json:"name"`
	Start  time.Time   `json:"start"`
	End    time.Time   `json:"end"`
	Phases []phaseJSON `json:"phases"`
}

type phaseJSON struct {
	Kind    string    `json:"kind"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	EnergyJ float64   `json:"energy_j"`
	Bytes   float64   `json:"bytes"` // encryption phase only
}

type profileJSON struct {
	ID              string  `json:"id"`
	Platform        string  `json:"platform"`
	Provider        string  `json:"provider"`
	Author          string  `json:"author"`
	Description     string  `json:"description"`
	AdditionalInfo  string  `json:"additional_info"`
	Cores           int     `json:"cores"`
	ClockMHz        float64 `json:"clock_mhz"`
	TestedBytes     float64 `json:"tested_bytes"`
	TestedEnergyJ   float64 `json:"tested_energy_j"`
	TestedSeconds   float64 `json:"tested_seconds"`
	AverageVoltageV float64 `json:"average_voltage_v"`
	AverageCurrentA float64 `json:"average_current_a"`
}

type aesJSON struct {
	profileJSON
	CipherMode  string `json:"cipher_mode"`
	KeyBits     int    `json:"key_bits"`
	Accelerator string `json:"accelerator"`
}

type compressionJSON struct {
	profileJSON
	Algorithm string `json:"algorithm"`
	Level     int    `json:"level"`
}

// LoadScenario decodes a JSON scenario from r. Every pass is validated; a pass
// without explicit start/end takes them from its earliest and latest phase.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var payload scenarioJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	out := &Scenario{
		Passes:              make([]*model.Pass, 0, len(payload.Passes)),
		AESProfiles:         make([]*model.AESProfile, 0, len(payload.AESProfiles)),
		CompressionProfiles: make([]*model.CompressionProfile, 0, len(payload.CompressionProfiles)),
	}

	names := make(map[string]struct{}, len(payload.Passes))
	for _, jp := range payload.Passes {
		p, err := passFromJSON(jp)
		if err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
		if _, dup := names[p.Name]; dup {
			return nil, fmt.Errorf("LoadScenario: duplicate pass name %q", p.Name)
		}
		names[p.Name] = struct{}{}
		out.Passes = append(out.Passes, p)
	}

	for _, ja := range payload.AESProfiles {
		if ja.ID == "" {
			return nil, fmt.Errorf("LoadScenario: aes profile with empty id")
		}
		out.AESProfiles = append(out.AESProfiles, &model.AESProfile{
			ProfileID:          ja.ID,
			ProfileInfo:        ja.info(),
			ProfileMeasurement: ja.measurement(),
			CipherMode:         ja.CipherMode,
			KeyBits:            ja.KeyBits,
			Accelerator:        ja.Accelerator,
		})
	}

	for _, jc := range payload.CompressionProfiles {
		if jc.ID == "" {
			return nil, fmt.Errorf("LoadScenario: compression profile with empty id")
		}
		out.CompressionProfiles = append(out.CompressionProfiles, &model.CompressionProfile{
			ProfileID:          jc.ID,
			ProfileInfo:        jc.info(),
			ProfileMeasurement: jc.measurement(),
			Algorithm:          jc.Algorithm,
			Level:              jc.Level,
		})
	}

	return out, nil
}

func passFromJSON(jp passJSON) (*model.Pass, error) {
	p := &model.Pass{
		Name:   jp.Name,
		Start:  jp.Start,
		End:    jp.End,
		Phases: make([]model.Phase, 0, len(jp.Phases)),
	}
	for _, jph := range jp.Phases {
		kind, err := model.ParsePhaseKind(jph.Kind)
		if err != nil {
			return nil, fmt.Errorf("pass %q: %w", jp.Name, err)
		}
		p.Phases = append(p.Phases, model.Phase{
			Kind:    kind,
			Start:   jph.Start,
			End:     jph.End,
			EnergyJ: jph.EnergyJ,
			Bytes:   jph.Bytes,
		})
		if jp.Start.IsZero() && (p.Start.IsZero() || jph.Start.Before(p.Start)) {
			p.Start = jph.Start
		}
		if jp.End.IsZero() && jph.End.After(p.End) {
			p.End = jph.End
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (j profileJSON) info() model.ProfileInfo {
	return model.ProfileInfo{
		Platform:       j.Platform,
		Provider:       j.Provider,
		Author:         j.Author,
		Description:    j.Description,
		AdditionalInfo: j.AdditionalInfo,
		Cores:          j.Cores,
		ClockMHz:       j.ClockMHz,
	}
}

func (j profileJSON) measurement() model.ProfileMeasurement {
	return model.ProfileMeasurement{
		TestedBytes:     j.TestedBytes,
		TestedEnergyJ:   j.TestedEnergyJ,
		TestedDuration:  time.Duration(j.TestedSeconds * float64(time.Second)),
		AverageVoltageV: j.AverageVoltageV,
		AverageCurrentA: j.AverageCurrentA,
	}
}
