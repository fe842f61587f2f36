package models

// InputRefs references previously uploaded artifacts by backend blob name.
// Jobs are always submitted against uploaded artifacts, never raw files.
type InputRefs struct {
	AudioBlobName string `json:"audio_blob_name"`
	FaceBlobName  string `json:"face_blob_name"`
}

// ProcessingJob is one lip-sync run tracked by the client.
type ProcessingJob struct {
	ID        string     `json:"id"`
	Engine    Engine     `json:"engine"`
	InputRefs InputRefs  `json:"input_refs"`
	Status    TaskStatus `json:"status"`
	Progress  int        `json:"progress"`
	OutputURL string     `json:"output_url,omitempty"`
}

// LipSyncRequest is the wire shape of POST /lip_sync/start. Options must be
// derived from the settings matching Engine; SettingsStore.ForBackend
// guarantees that shape.
type LipSyncRequest struct {
	Engine        Engine         `json:"engine"`
	AudioBlobName string         `json:"audio_blob_name"`
	FaceBlobName  string         `json:"face_blob_name"`
	Options       map[string]any `json:"options,omitempty"`
}

// LipSyncResponse is the wire shape of the job submission reply.
type LipSyncResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message,omitempty"`
}

// PreloadResponse is the wire shape of GET /lip_sync/engine/preload.
// Fallback means the backend could not load the requested engine but will
// serve requests with a substitute; the client treats that as ready.
type PreloadResponse struct {
	Success  bool   `json:"success"`
	Status   string `json:"status"`
	Fallback bool   `json:"fallback,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// EngineStatusResponse is the wire shape of GET /lip_sync/engine/status.
type EngineStatusResponse struct {
	Engine    string `json:"engine"`
	Loaded    bool   `json:"loaded"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	IsCurrent bool   `json:"is_current"`
}
