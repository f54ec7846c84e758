package domain

// RecordingState models the recorder modal lifecycle.
type RecordingState string

const (
	RecordingStateNotStarted           RecordingState = "not_started"
	RecordingStateWaitingForPermission RecordingState = "waiting_for_permission"
	RecordingStateRecording            RecordingState = "recording"
	RecordingStatePermissionDenied     RecordingState = "permission_denied"
	RecordingStateProcessing           RecordingState = "processing"
	RecordingStateCompleted            RecordingState = "completed"
	RecordingStateUseTextAlternative   RecordingState = "use_text_alternative"
	RecordingStateError                RecordingState = "error"
	RecordingStateClosed               RecordingState = "closed"
)

// CanRecord reports whether a new recording attempt may start from s.
func (s RecordingState) CanRecord() bool {
	switch s {
	case RecordingStateNotStarted,
		RecordingStatePermissionDenied,
		RecordingStateCompleted,
		RecordingStateError:
		return true
	default:
		return false
	}
}

// HasDraft reports whether s exposes an editable text buffer.
func (s RecordingState) HasDraft() bool {
	return s == RecordingStateCompleted || s == RecordingStateUseTextAlternative
}

// Message returns the text shown to the candidate for s.
func (s RecordingState) Message() string {
	switch s {
	case RecordingStateNotStarted:
		return "Press record when you are ready to answer"
	case RecordingStateWaitingForPermission:
		return "Waiting for microphone access..."
	case RecordingStateRecording:
		return "Recording. Press stop when you are done"
	case RecordingStatePermissionDenied:
		return "Microphone access was denied. Allow access and press record to try again"
	case RecordingStateProcessing:
		return "Processing your answer..."
	case RecordingStateCompleted:
		return "Review and edit your answer before sending"
	case RecordingStateUseTextAlternative:
		return "Type your answer instead"
	case RecordingStateError:
		return "Microphone is unavailable"
	case RecordingStateClosed:
		return ""
	default:
		return ""
	}
}

// ErrorCode identifies backend errors surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeChatTransport ErrorCode = "chat_transport"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeAudioStream   ErrorCode = "audio_stream"
	ErrorCodeAudioStop     ErrorCode = "audio_stop"
	ErrorCodeDevice        ErrorCode = "device"
)

// TranscriptEvent is one recognition result pushed by the transcription backend.
// Clarity and SpeedWPM are nil when the backend did not report them.
type TranscriptEvent struct {
	Text     string   `json:"text"`
	IsFinal  bool     `json:"isFinal"`
	Clarity  *float64 `json:"clarity,omitempty"`
	SpeedWPM *float64 `json:"speedWpm,omitempty"`
}

// Float returns a pointer to v, for optional TranscriptEvent fields.
func Float(v float64) *float64 {
	return &v
}

// RecorderView is a point-in-time snapshot of a recorder for the UI.
type RecorderView struct {
	SessionID      string         `json:"sessionId,omitempty"`
	State          RecordingState `json:"state"`
	Message        string         `json:"message"`
	Detail         string         `json:"detail,omitempty"`
	Transcript     string         `json:"transcript"`
	Pending        string         `json:"pending,omitempty"`
	Segments       int            `json:"segments"`
	ClarityPercent int            `json:"clarityPercent"`
	SpeedWPM       int            `json:"speedWpm"`
	Draft          string         `json:"draft"`
}
