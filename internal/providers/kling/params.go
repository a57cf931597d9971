package kling

import (
	"strings"

	"studio/internal/domain"
)

const maxPromptChars = 2500

var allowedDurations = map[string]struct{}{"5": {}, "10": {}}
var allowedAspectRatios = map[string]struct{}{"16:9": {}, "9:16": {}, "1:1": {}}
var allowedModes = map[string]struct{}{"std": {}, "pro": {}}

// CameraControl describes a predefined or simple camera movement.
type CameraControl struct {
	Type   string             `json:"type,omitempty"`
	Config map[string]float64 `json:"config,omitempty"`
}

// VideoParams are the user-supplied inputs for a video generation. Image is
// the start frame (required for image-to-video), ImageTail the optional end
// frame; an end frame is incompatible with camera control and motion masks.
type VideoParams struct {
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt,omitempty"`
	ModelName      string         `json:"model_name,omitempty"`
	Mode           string         `json:"mode,omitempty"`
	Duration       string         `json:"duration,omitempty"`
	AspectRatio    string         `json:"aspect_ratio,omitempty"`
	CFGScale       *float64       `json:"cfg_scale,omitempty"`
	Image          string         `json:"image,omitempty"`
	ImageTail      string         `json:"image_tail,omitempty"`
	StaticMask     string         `json:"static_mask,omitempty"`
	DynamicMasks   []string       `json:"dynamic_masks,omitempty"`
	CameraControl  *CameraControl `json:"camera_control,omitempty"`
}

// Validate rejects out-of-contract parameters before any network call.
func (p *VideoParams) Validate(requireImage bool) error {
	prompt := strings.TrimSpace(p.Prompt)
	if prompt == "" && p.Image == "" {
		return domain.NewValidationError("prompt", "must not be empty")
	}
	if len([]rune(p.Prompt)) > maxPromptChars {
		return domain.NewValidationError("prompt", "must not exceed 2500 characters")
	}
	if len([]rune(p.NegativePrompt)) > maxPromptChars {
		return domain.NewValidationError("negative_prompt", "must not exceed 2500 characters")
	}
	if p.Duration != "" {
		if _, ok := allowedDurations[p.Duration]; !ok {
			return domain.NewValidationError("duration", `must be "5" or "10"`)
		}
	}
	if p.AspectRatio != "" {
		if _, ok := allowedAspectRatios[p.AspectRatio]; !ok {
			return domain.NewValidationError("aspect_ratio", `must be "16:9", "9:16" or "1:1"`)
		}
	}
	if p.Mode != "" {
		if _, ok := allowedModes[p.Mode]; !ok {
			return domain.NewValidationError("mode", `must be "std" or "pro"`)
		}
	}
	if p.CFGScale != nil && (*p.CFGScale < 0 || *p.CFGScale > 1) {
		return domain.NewValidationError("cfg_scale", "must be between 0 and 1")
	}
	if requireImage && strings.TrimSpace(p.Image) == "" {
		return domain.NewValidationError("image", "a start-frame image is required")
	}
	if !requireImage && strings.TrimSpace(p.Image) != "" {
		return domain.NewValidationError("image", "not supported for text-to-video")
	}
	if p.ImageTail != "" {
		if p.CameraControl != nil {
			return domain.NewValidationError("image_tail", "an end frame is incompatible with camera control")
		}
		if p.StaticMask != "" || len(p.DynamicMasks) > 0 {
			return domain.NewValidationError("image_tail", "an end frame is incompatible with motion masks")
		}
	}
	return nil
}
