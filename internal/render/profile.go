package render

import (
	"fmt"
	"strings"

	"clipforge/internal/services"
)

// ResolutionProfile names a target output resolution. Every profile,
// including source, forces pixel-format normalization so downstream
// concatenation sees uniform streams.
type ResolutionProfile string

const (
	Res360p   ResolutionProfile = "360p"
	Res480p   ResolutionProfile = "480p"
	Res720p   ResolutionProfile = "720p"
	Res1080p  ResolutionProfile = "1080p"
	ResSource ResolutionProfile = "source"
)

// pixelFormat is forced on every render so heterogeneous sources can be
// losslessly concatenated later.
const pixelFormat = "yuv420p"

// ParseResolutionProfile validates a user-supplied profile name.
func ParseResolutionProfile(value string) (ResolutionProfile, error) {
	profile := ResolutionProfile(strings.ToLower(strings.TrimSpace(value)))
	if _, err := profile.filters(); err != nil {
		return "", err
	}
	return profile, nil
}

// Height returns the target height in pixels, or 0 when no scaling applies.
func (p ResolutionProfile) Height() int {
	switch p {
	case Res360p:
		return 360
	case Res480p:
		return 480
	case Res720p:
		return 720
	case Res1080p:
		return 1080
	default:
		return 0
	}
}

// NormalizeFilter returns the -vf chain that scales to the profile height
// (width auto, kept even) and normalizes the pixel format.
func (p ResolutionProfile) NormalizeFilter() (string, error) {
	filters, err := p.filters()
	if err != nil {
		return "", err
	}
	return strings.Join(filters, ","), nil
}

func (p ResolutionProfile) filters() ([]string, error) {
	switch p {
	case Res360p, Res480p, Res720p, Res1080p:
		return []string{fmt.Sprintf("scale=-2:%d", p.Height()), "format=" + pixelFormat}, nil
	case ResSource:
		return []string{"format=" + pixelFormat}, nil
	default:
		return nil, services.Wrap(services.ErrInvalidRequest, "profile", "resolve resolution", fmt.Sprintf("unknown resolution profile %q", string(p)), nil)
	}
}

// QualityPreset names an encode speed/quality tradeoff.
type QualityPreset string

const (
	QualityFast   QualityPreset = "fast"
	QualityMedium QualityPreset = "medium"
	QualitySlow   QualityPreset = "slow"
)

// ParseQualityPreset validates a user-supplied preset name.
func ParseQualityPreset(value string) (QualityPreset, error) {
	preset := QualityPreset(strings.ToLower(strings.TrimSpace(value)))
	if _, err := preset.RateControl(); err != nil {
		return "", err
	}
	return preset, nil
}

// RateControl holds the encoder-facing parameters a quality preset
// resolves to. Software encoders consume SoftwarePreset+CRF; hardware
// encoders consume HardwarePreset+CQ under variable-bitrate rate control.
type RateControl struct {
	SoftwarePreset string
	CRF            int
	HardwarePreset string
	CQ             int
}

// RateControl resolves the preset to concrete rate-control parameters.
func (q QualityPreset) RateControl() (RateControl, error) {
	switch q {
	case QualityFast:
		return RateControl{SoftwarePreset: "veryfast", CRF: 28, HardwarePreset: "p2", CQ: 28}, nil
	case QualityMedium:
		return RateControl{SoftwarePreset: "medium", CRF: 23, HardwarePreset: "p4", CQ: 23}, nil
	case QualitySlow:
		return RateControl{SoftwarePreset: "slow", CRF: 18, HardwarePreset: "p6", CQ: 19}, nil
	default:
		return RateControl{}, services.Wrap(services.ErrInvalidRequest, "profile", "resolve quality", fmt.Sprintf("unknown quality preset %q", string(q)), nil)
	}
}
