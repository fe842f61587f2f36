package models

import "fmt"

// Pads is the face padding applied around the detected face box.
type Pads struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// String renders pads in the "top bottom left right" form the backend expects.
func (p Pads) String() string {
	return fmt.Sprintf("%d %d %d %d", p.Top, p.Bottom, p.Left, p.Right)
}

// SadTalkerOptions are the SadTalker-only tunables.
type SadTalkerOptions struct {
	PoseStyle       int     `json:"pose_style"`
	ExpressionScale float64 `json:"expression_scale"`
	Still           bool    `json:"still"`
	Face3DVis       bool    `json:"face3d_vis"`
	RefEyeblink     string  `json:"ref_eyeblink,omitempty"`
	RefPose         string  `json:"ref_pose,omitempty"`
	InputYaw        []int   `json:"input_yaw,omitempty"`
	InputPitch      []int   `json:"input_pitch,omitempty"`
	InputRoll       []int   `json:"input_roll,omitempty"`
}

// Wav2LipOptions are the Wav2Lip-only tunables.
type Wav2LipOptions struct {
	NoSmooth              bool    `json:"nosmooth"`
	UseBackgroundEnhancer bool    `json:"use_background_enhancer"`
	MaskDilate            int     `json:"mask_dilate"`
	MaskBlur              int     `json:"mask_blur"`
	EnableFaceSwap        bool    `json:"enable_face_swap"`
	FaceSwapImage         string  `json:"face_swap_image,omitempty"`
	ZeroMouth             bool    `json:"zero_mouth"`
	ShowFrameNumber       bool    `json:"show_frame_number"`
	VolumeAmplification   float64 `json:"volume_amplification"`
	DelayStartTime        float64 `json:"delay_start_time"`
	EnableKeyframeManager bool    `json:"enable_keyframe_manager"`
	AutoMask              bool    `json:"auto_mask"`
	DrivingVideo          bool    `json:"driving_video"`
	DrivingAvatar         string  `json:"driving_avatar,omitempty"`
	EnableComfyUI         bool    `json:"enable_comfy_ui"`
}

// GeneFaceOptions are the GeneFace-only tunables.
type GeneFaceOptions struct {
	FrameRate               int    `json:"frame_rate"`
	UseHighQualityMode      bool   `json:"use_high_quality_mode"`
	NeuralModelType         string `json:"neural_model_type"`
	ExpressionIntensity     float64 `json:"expression_intensity"`
	EnablePostProcessing    bool   `json:"enable_post_processing"`
	PreserveBackground      bool   `json:"preserve_background"`
	EnableSuperResolution   bool   `json:"enable_super_resolution"`
	UpscaleFactor           int    `json:"upscale_factor"`
	GPUAcceleration         string `json:"gpu_acceleration,omitempty"`
	Precision               string `json:"precision,omitempty"`
	EnableAudioPreprocessing bool  `json:"enable_audio_preprocessing"`
	EnableAudioNormalization bool  `json:"enable_audio_normalization"`
	AudioSampleRate         int    `json:"audio_sample_rate"`
	AudioPath               string `json:"audio_path,omitempty"`
}

// Settings is the superset of tunable lip-sync parameters. Common fields
// apply to every engine; exactly one of the per-engine option blocks is sent
// to the backend, selected by Algorithm.
type Settings struct {
	Algorithm              Engine  `json:"algorithm"`
	Quality                int     `json:"quality"`
	UseBeatAnalysis        bool    `json:"use_beat_analysis"`
	FaceDetectionThreshold float64 `json:"face_detection_threshold"`
	UseLyricAlignment      bool    `json:"use_lyric_alignment"`
	Pads                   Pads    `json:"pads"`
	ResizeFactor           int     `json:"resize_factor"`

	// Shared by SadTalker and Wav2Lip.
	BatchSize      int    `json:"batch_size"`
	UseEnhancer    bool   `json:"use_enhancer"`
	PreprocessMode string `json:"preprocess_mode"`

	SadTalker SadTalkerOptions `json:"sadtalker"`
	Wav2Lip   Wav2LipOptions   `json:"wav2lip"`
	GeneFace  GeneFaceOptions  `json:"geneface"`
}

// DefaultSettings returns the settings used before the user tunes anything.
func DefaultSettings() Settings {
	return Settings{
		Algorithm:              EngineSadTalker,
		Quality:                70,
		UseBeatAnalysis:        false,
		FaceDetectionThreshold: 0.5,
		UseLyricAlignment:      false,
		Pads:                   Pads{Top: 0, Bottom: 10, Left: 0, Right: 0},
		ResizeFactor:           1,
		BatchSize:              2,
		PreprocessMode:         "crop",
		SadTalker: SadTalkerOptions{
			PoseStyle:       0,
			ExpressionScale: 1.0,
		},
		GeneFace: GeneFaceOptions{
			FrameRate:       25,
			NeuralModelType: "radnerf",
			UpscaleFactor:   2,
			AudioSampleRate: 16000,
		},
	}
}

// ForBackend derives the snake_case payload sent to POST /lip_sync/settings
// and as job options. The common block is always present; exactly the option
// subset matching Algorithm is appended. Pure derivation, no side effects.
func (s Settings) ForBackend() map[string]any {
	payload := map[string]any{
		"algorithm":                string(s.Algorithm),
		"quality":                  s.Quality,
		"use_beat_analysis":        s.UseBeatAnalysis,
		"face_detection_threshold": s.FaceDetectionThreshold,
		"use_lyric_alignment":      s.UseLyricAlignment,
		"pads":                     s.Pads.String(),
		"resize_factor":            s.ResizeFactor,
	}

	switch s.Algorithm {
	case EngineSadTalker:
		payload["batch_size"] = s.BatchSize
		payload["use_enhancer"] = s.UseEnhancer
		payload["preprocess_mode"] = s.PreprocessMode
		payload["pose_style"] = s.SadTalker.PoseStyle
		payload["expression_scale"] = s.SadTalker.ExpressionScale
		payload["still"] = s.SadTalker.Still
		payload["face3d_vis"] = s.SadTalker.Face3DVis
		payload["ref_eyeblink"] = s.SadTalker.RefEyeblink
		payload["ref_pose"] = s.SadTalker.RefPose
		payload["input_yaw"] = s.SadTalker.InputYaw
		payload["input_pitch"] = s.SadTalker.InputPitch
		payload["input_roll"] = s.SadTalker.InputRoll

	case EngineWav2Lip:
		payload["batch_size"] = s.BatchSize
		payload["use_enhancer"] = s.UseEnhancer
		payload["preprocess_mode"] = s.PreprocessMode
		payload["nosmooth"] = s.Wav2Lip.NoSmooth
		payload["use_background_enhancer"] = s.Wav2Lip.UseBackgroundEnhancer
		payload["mask_dilate"] = s.Wav2Lip.MaskDilate
		payload["mask_blur"] = s.Wav2Lip.MaskBlur
		payload["enable_face_swap"] = s.Wav2Lip.EnableFaceSwap
		payload["face_swap_image"] = s.Wav2Lip.FaceSwapImage
		payload["zero_mouth"] = s.Wav2Lip.ZeroMouth
		payload["show_frame_number"] = s.Wav2Lip.ShowFrameNumber
		payload["volume_amplification"] = s.Wav2Lip.VolumeAmplification
		payload["delay_start_time"] = s.Wav2Lip.DelayStartTime
		payload["enable_keyframe_manager"] = s.Wav2Lip.EnableKeyframeManager
		payload["auto_mask"] = s.Wav2Lip.AutoMask
		payload["driving_video"] = s.Wav2Lip.DrivingVideo
		payload["driving_avatar"] = s.Wav2Lip.DrivingAvatar
		payload["enable_comfy_ui"] = s.Wav2Lip.EnableComfyUI

	case EngineGeneFace:
		payload["frame_rate"] = s.GeneFace.FrameRate
		payload["use_high_quality_mode"] = s.GeneFace.UseHighQualityMode
		payload["neural_model_type"] = s.GeneFace.NeuralModelType
		payload["expression_intensity"] = s.GeneFace.ExpressionIntensity
		payload["enable_post_processing"] = s.GeneFace.EnablePostProcessing
		payload["preserve_background"] = s.GeneFace.PreserveBackground
		payload["enable_super_resolution"] = s.GeneFace.EnableSuperResolution
		payload["upscale_factor"] = s.GeneFace.UpscaleFactor
		payload["gpu_acceleration"] = s.GeneFace.GPUAcceleration
		payload["precision"] = s.GeneFace.Precision
		payload["enable_audio_preprocessing"] = s.GeneFace.EnableAudioPreprocessing
		payload["enable_audio_normalization"] = s.GeneFace.EnableAudioNormalization
		payload["audio_sample_rate"] = s.GeneFace.AudioSampleRate
		payload["audio_path"] = s.GeneFace.AudioPath
	}

	return payload
}
