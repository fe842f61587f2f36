package models

// PadsPartial is a partial update for Pads; nil fields are left unchanged.
type PadsPartial struct {
	Top    *int `json:"top,omitempty"`
	Bottom *int `json:"bottom,omitempty"`
	Left   *int `json:"left,omitempty"`
	Right  *int `json:"right,omitempty"`
}

// SadTalkerPartial is a partial update for SadTalkerOptions.
type SadTalkerPartial struct {
	PoseStyle       *int     `json:"pose_style,omitempty"`
	ExpressionScale *float64 `json:"expression_scale,omitempty"`
	Still           *bool    `json:"still,omitempty"`
	Face3DVis       *bool    `json:"face3d_vis,omitempty"`
	RefEyeblink     *string  `json:"ref_eyeblink,omitempty"`
	RefPose         *string  `json:"ref_pose,omitempty"`
	InputYaw        []int    `json:"input_yaw,omitempty"`
	InputPitch      []int    `json:"input_pitch,omitempty"`
	InputRoll       []int    `json:"input_roll,omitempty"`
}

// Wav2LipPartial is a partial update for Wav2LipOptions.
type Wav2LipPartial struct {
	NoSmooth              *bool    `json:"nosmooth,omitempty"`
	UseBackgroundEnhancer *bool    `json:"use_background_enhancer,omitempty"`
	MaskDilate            *int     `json:"mask_dilate,omitempty"`
	MaskBlur              *int     `json:"mask_blur,omitempty"`
	EnableFaceSwap        *bool    `json:"enable_face_swap,omitempty"`
	FaceSwapImage         *string  `json:"face_swap_image,omitempty"`
	ZeroMouth             *bool    `json:"zero_mouth,omitempty"`
	ShowFrameNumber       *bool    `json:"show_frame_number,omitempty"`
	VolumeAmplification   *float64 `json:"volume_amplification,omitempty"`
	DelayStartTime        *float64 `json:"delay_start_time,omitempty"`
	EnableKeyframeManager *bool    `json:"enable_keyframe_manager,omitempty"`
	AutoMask              *bool    `json:"auto_mask,omitempty"`
	DrivingVideo          *bool    `json:"driving_video,omitempty"`
	DrivingAvatar         *string  `json:"driving_avatar,omitempty"`
	EnableComfyUI         *bool    `json:"enable_comfy_ui,omitempty"`
}

// GeneFacePartial is a partial update for GeneFaceOptions.
type GeneFacePartial struct {
	FrameRate                *int     `json:"frame_rate,omitempty"`
	UseHighQualityMode       *bool    `json:"use_high_quality_mode,omitempty"`
	NeuralModelType          *string  `json:"neural_model_type,omitempty"`
	ExpressionIntensity      *float64 `json:"expression_intensity,omitempty"`
	EnablePostProcessing     *bool    `json:"enable_post_processing,omitempty"`
	PreserveBackground       *bool    `json:"preserve_background,omitempty"`
	EnableSuperResolution    *bool    `json:"enable_super_resolution,omitempty"`
	UpscaleFactor            *int     `json:"upscale_factor,omitempty"`
	GPUAcceleration          *string  `json:"gpu_acceleration,omitempty"`
	Precision                *string  `json:"precision,omitempty"`
	EnableAudioPreprocessing *bool    `json:"enable_audio_preprocessing,omitempty"`
	EnableAudioNormalization *bool    `json:"enable_audio_normalization,omitempty"`
	AudioSampleRate          *int     `json:"audio_sample_rate,omitempty"`
	AudioPath                *string  `json:"audio_path,omitempty"`
}

// SettingsPartial is a one-level structural merge into Settings. Nil fields
// are left unchanged; Pads and the per-engine blocks merge field-wise.
type SettingsPartial struct {
	Algorithm              *Engine      `json:"algorithm,omitempty"`
	Quality                *int         `json:"quality,omitempty"`
	UseBeatAnalysis        *bool        `json:"use_beat_analysis,omitempty"`
	FaceDetectionThreshold *float64     `json:"face_detection_threshold,omitempty"`
	UseLyricAlignment      *bool        `json:"use_lyric_alignment,omitempty"`
	Pads                   *PadsPartial `json:"pads,omitempty"`
	ResizeFactor           *int         `json:"resize_factor,omitempty"`
	BatchSize              *int         `json:"batch_size,omitempty"`
	UseEnhancer            *bool        `json:"use_enhancer,omitempty"`
	PreprocessMode         *string      `json:"preprocess_mode,omitempty"`

	SadTalker *SadTalkerPartial `json:"sadtalker,omitempty"`
	Wav2Lip   *Wav2LipPartial   `json:"wav2lip,omitempty"`
	GeneFace  *GeneFacePartial  `json:"geneface,omitempty"`
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// Apply merges p into s and returns the merged copy. Every field absent from
// p keeps its previous value.
func (s Settings) Apply(p SettingsPartial) Settings {
	if p.Algorithm != nil {
		s.Algorithm = *p.Algorithm
	}
	setInt(&s.Quality, p.Quality)
	setBool(&s.UseBeatAnalysis, p.UseBeatAnalysis)
	setFloat(&s.FaceDetectionThreshold, p.FaceDetectionThreshold)
	setBool(&s.UseLyricAlignment, p.UseLyricAlignment)
	setInt(&s.ResizeFactor, p.ResizeFactor)
	setInt(&s.BatchSize, p.BatchSize)
	setBool(&s.UseEnhancer, p.UseEnhancer)
	setString(&s.PreprocessMode, p.PreprocessMode)

	if p.Pads != nil {
		setInt(&s.Pads.Top, p.Pads.Top)
		setInt(&s.Pads.Bottom, p.Pads.Bottom)
		setInt(&s.Pads.Left, p.Pads.Left)
		setInt(&s.Pads.Right, p.Pads.Right)
	}

	if p.SadTalker != nil {
		st := p.SadTalker
		setInt(&s.SadTalker.PoseStyle, st.PoseStyle)
		setFloat(&s.SadTalker.ExpressionScale, st.ExpressionScale)
		setBool(&s.SadTalker.Still, st.Still)
		setBool(&s.SadTalker.Face3DVis, st.Face3DVis)
		setString(&s.SadTalker.RefEyeblink, st.RefEyeblink)
		setString(&s.SadTalker.RefPose, st.RefPose)
		if st.InputYaw != nil {
			s.SadTalker.InputYaw = st.InputYaw
		}
		if st.InputPitch != nil {
			s.SadTalker.InputPitch = st.InputPitch
		}
		if st.InputRoll != nil {
			s.SadTalker.InputRoll = st.InputRoll
		}
	}

	if p.Wav2Lip != nil {
		w := p.Wav2Lip
		setBool(&s.Wav2Lip.NoSmooth, w.NoSmooth)
		setBool(&s.Wav2Lip.UseBackgroundEnhancer, w.UseBackgroundEnhancer)
		setInt(&s.Wav2Lip.MaskDilate, w.MaskDilate)
		setInt(&s.Wav2Lip.MaskBlur, w.MaskBlur)
		setBool(&s.Wav2Lip.EnableFaceSwap, w.EnableFaceSwap)
		setString(&s.Wav2Lip.FaceSwapImage, w.FaceSwapImage)
		setBool(&s.Wav2Lip.ZeroMouth, w.ZeroMouth)
		setBool(&s.Wav2Lip.ShowFrameNumber, w.ShowFrameNumber)
		setFloat(&s.Wav2Lip.VolumeAmplification, w.VolumeAmplification)
		setFloat(&s.Wav2Lip.DelayStartTime, w.DelayStartTime)
		setBool(&s.Wav2Lip.EnableKeyframeManager, w.EnableKeyframeManager)
		setBool(&s.Wav2Lip.AutoMask, w.AutoMask)
		setBool(&s.Wav2Lip.DrivingVideo, w.DrivingVideo)
		setString(&s.Wav2Lip.DrivingAvatar, w.DrivingAvatar)
		setBool(&s.Wav2Lip.EnableComfyUI, w.EnableComfyUI)
	}

	if p.GeneFace != nil {
		g := p.GeneFace
		setInt(&s.GeneFace.FrameRate, g.FrameRate)
		setBool(&s.GeneFace.UseHighQualityMode, g.UseHighQualityMode)
		setString(&s.GeneFace.NeuralModelType, g.NeuralModelType)
		setFloat(&s.GeneFace.ExpressionIntensity, g.ExpressionIntensity)
		setBool(&s.GeneFace.EnablePostProcessing, g.EnablePostProcessing)
		setBool(&s.GeneFace.PreserveBackground, g.PreserveBackground)
		setBool(&s.GeneFace.EnableSuperResolution, g.EnableSuperResolution)
		setInt(&s.GeneFace.UpscaleFactor, g.UpscaleFactor)
		setString(&s.GeneFace.GPUAcceleration, g.GPUAcceleration)
		setString(&s.GeneFace.Precision, g.Precision)
		setBool(&s.GeneFace.EnableAudioPreprocessing, g.EnableAudioPreprocessing)
		setBool(&s.GeneFace.EnableAudioNormalization, g.EnableAudioNormalization)
		setInt(&s.GeneFace.AudioSampleRate, g.AudioSampleRate)
		setString(&s.GeneFace.AudioPath, g.AudioPath)
	}

	return s
}
