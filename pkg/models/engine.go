package models

// Engine identifies a selectable lip-sync backend algorithm.
type Engine string

const (
	EngineWav2Lip   Engine = "wav2lip"
	EngineSadTalker Engine = "sadtalker"
	EngineGeneFace  Engine = "geneface"
)

// DefaultEngine is preloaded at startup when no engine is configured.
const DefaultEngine = EngineWav2Lip

// AllEngines lists every engine the backend can run, in display order.
func AllEngines() []Engine {
	return []Engine{EngineWav2Lip, EngineSadTalker, EngineGeneFace}
}

// IsValid reports whether e names a known engine.
func (e Engine) IsValid() bool {
	switch e {
	case EngineWav2Lip, EngineSadTalker, EngineGeneFace:
		return true
	}
	return false
}

// EngineState represents the readiness of one engine as seen by the client.
type EngineState string

const (
	EngineIdle    EngineState = "idle"
	EngineLoading EngineState = "loading"
	EngineReady   EngineState = "ready"
	EngineError   EngineState = "error"
)

// EngineInfo describes an engine for display purposes.
type EngineInfo struct {
	ID          Engine   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
}

// engineCatalog is the static engine directory shown by the CLI.
var engineCatalog = map[Engine]EngineInfo{
	EngineWav2Lip: {
		ID:          EngineWav2Lip,
		Name:        "Wav2Lip",
		Description: "Fast lipsync with good accuracy",
		Features: []string{
			"Fast processing time",
			"Good lip synchronization",
			"Works with most face angles",
		},
	},
	EngineSadTalker: {
		ID:          EngineSadTalker,
		Name:        "SadTalker",
		Description: "3D-aware talking head animation",
		Features: []string{
			"Head pose control",
			"Natural facial expressions",
			"Still mode for fewer head movements",
			"Reference video for eyeblinks and poses",
			"Free-view control (yaw/pitch/roll)",
		},
	},
	EngineGeneFace: {
		ID:          EngineGeneFace,
		Name:        "GeneFace",
		Description: "Neural radiance field talking head synthesis",
		Features: []string{
			"High quality neural rendering",
			"Super-resolution output",
			"Configurable frame rate",
		},
	},
}

// Info returns the catalog entry for e. Unknown engines get a minimal entry
// so display code never has to special-case them.
func (e Engine) Info() EngineInfo {
	if info, ok := engineCatalog[e]; ok {
		return info
	}
	return EngineInfo{ID: e, Name: string(e)}
}

// EngineStatusInfo is the tracked readiness record for one engine.
type EngineStatusInfo struct {
	Engine         Engine      `json:"engine"`
	State          EngineState `json:"state"`
	Progress       int         `json:"progress"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	FallbackReason string      `json:"fallback_reason,omitempty"`
}
