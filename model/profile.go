package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ByteStreamProcessor is the capability set shared by every measured device
// profile family (AES encryption, compression). The summarizer, the
// optimization map and the schedulers only ever see profiles through it.
type ByteStreamProcessor interface {
	ID() string
	// JoulesPerByte is NaN when the profile has no tested bytes.
	JoulesPerByte() float64
	// BytesPerSecond is NaN when the profile has no tested duration.
	BytesPerSecond() float64
	// ComparisonKey identifies repeated trials of the same configuration.
	ComparisonKey() string
	Describe() string
	Info() ProfileInfo
	Measurement() ProfileMeasurement
}

// ProfileInfo is the descriptive, non-quantitative part of a profile.
type ProfileInfo struct {
	Platform       string
	Provider       string
	Author         string
	Description    string
	AdditionalInfo string
	// Mode is the family discriminator, e.g. "AES-256-CBC" or "lz4".
	Mode     string
	Cores    int
	ClockMHz float64
}

// ProfileMeasurement holds the quantities measured during a test run.
type ProfileMeasurement struct {
	TestedBytes     float64
	TestedEnergyJ   float64
	TestedDuration  time.Duration
	AverageVoltageV float64
	AverageCurrentA float64
}

// JoulesPerByte returns energy/bytes, NaN when no bytes were tested.
func (m ProfileMeasurement) JoulesPerByte() float64 {
	if m.TestedBytes == 0 {
		return math.NaN()
	}
	return m.TestedEnergyJ / m.TestedBytes
}

// BytesPerSecond returns bytes/seconds, NaN when the test had no duration.
func (m ProfileMeasurement) BytesPerSecond() float64 {
	secs := m.TestedDuration.Seconds()
	if secs == 0 {
		return math.NaN()
	}
	return m.TestedBytes / secs
}

// Usable reports whether both derived metrics are finite and the throughput
// is positive, i.e. whether the profile can take part in scheduling.
func Usable(p ByteStreamProcessor) bool {
	jpb := p.JoulesPerByte()
	bps := p.BytesPerSecond()
	if math.IsNaN(jpb) || math.IsInf(jpb, 0) || jpb < 0 {
		return false
	}
	if math.IsNaN(bps) || math.IsInf(bps, 0) || bps <= 0 {
		return false
	}
	return true
}

// AESProfile is a measured AES encryption configuration.
type AESProfile struct {
	ProfileID string
	ProfileInfo
	ProfileMeasurement

	// CipherMode is the block mode, e.g. "CBC" or "GCM".
	CipherMode string
	KeyBits    int
	// Accelerator names the hardware engine, empty for software implementations.
	Accelerator string
}

func (p *AESProfile) ID() string                      { return p.ProfileID }
func (p *AESProfile) Info() ProfileInfo               { return p.withMode() }
func (p *AESProfile) Measurement() ProfileMeasurement { return p.ProfileMeasurement }

func (p *AESProfile) withMode() ProfileInfo {
	info := p.ProfileInfo
	info.Mode = p.ModeString()
	return info
}

// ModeString renders the AES discriminator, e.g. "AES-256-GCM".
func (p *AESProfile) ModeString() string {
	mode := fmt.Sprintf("AES-%d-%s", p.KeyBits, strings.ToUpper(p.CipherMode))
	if p.Accelerator != "" {
		mode += " (" + p.Accelerator + ")"
	}
	return mode
}

func (p *AESProfile) ComparisonKey() string {
	return comparisonKey(p.Platform, p.ModeString(), p.ClockMHz, p.Cores, p.AdditionalInfo)
}

func (p *AESProfile) Describe() string {
	return describe(p.withMode())
}

// WithAverages returns a copy of p carrying m and a new identity. Descriptive
// fields other than author and description are kept.
func (p *AESProfile) WithAverages(id, author, description string, m ProfileMeasurement) *AESProfile {
	out := *p
	out.ProfileID = id
	out.Author = author
	out.Description = description
	out.ProfileMeasurement = m
	return &out
}

// CompressionProfile is a measured compression configuration.
type CompressionProfile struct {
	ProfileID string
	ProfileInfo
	ProfileMeasurement

	// Algorithm is the compression mode, e.g. "zstd" or "lz4".
	Algorithm string
	Level     int
}

func (p *CompressionProfile) ID() string                      { return p.ProfileID }
func (p *CompressionProfile) Info() ProfileInfo               { return p.withMode() }
func (p *CompressionProfile) Measurement() ProfileMeasurement { return p.ProfileMeasurement }

func (p *CompressionProfile) withMode() ProfileInfo {
	info := p.ProfileInfo
	info.Mode = p.ModeString()
	return info
}

// ModeString renders the compression discriminator, e.g. "zstd-3".
func (p *CompressionProfile) ModeString() string {
	return fmt.Sprintf("%s-%d", strings.ToLower(p.Algorithm), p.Level)
}

func (p *CompressionProfile) ComparisonKey() string {
	return comparisonKey(p.Platform, p.ModeString(), p.ClockMHz, p.Cores, p.AdditionalInfo)
}

func (p *CompressionProfile) Describe() string {
	return describe(p.withMode())
}

// WithAverages returns a copy of p carrying m and a new identity.
func (p *CompressionProfile) WithAverages(id, author, description string, m ProfileMeasurement) *CompressionProfile {
	out := *p
	out.ProfileID = id
	out.Author = author
	out.Description = description
	out.ProfileMeasurement = m
	return &out
}

func comparisonKey(platform, mode string, clockMHz float64, cores int, extra string) string {
	return fmt.Sprintf("%s|%s|%g|%d|%s", platform, mode, clockMHz, cores, extra)
}

func describe(info ProfileInfo) string {
	s := fmt.Sprintf("%s %s, %d core(s) @ %g MHz", info.Platform, info.Mode, info.Cores, info.ClockMHz)
	if info.Provider != "" {
		s += ", " + info.Provider
	}
	if info.AdditionalInfo != "" {
		s += " [" + info.AdditionalInfo + "]"
	}
	return s
}
