package uploader

// Phase is the state of an upload Session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFileSelected
	PhaseRequestingCredential
	PhaseTransferringBytes
	PhaseRecordingMetadata
	PhaseCompleted
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFileSelected:
		return "file-selected"
	case PhaseRequestingCredential:
		return "requesting-credential"
	case PhaseTransferringBytes:
		return "transferring-bytes"
	case PhaseRecordingMetadata:
		return "recording-metadata"
	case PhaseCompleted:
		return "completed"
	case PhaseErrored:
		return "errored"
	}

	return "unknown"
}

// InFlight is true while one of the three network calls is outstanding.
func (p Phase) InFlight() bool {
	return p == PhaseRequestingCredential || p == PhaseTransferringBytes || p == PhaseRecordingMetadata
}
