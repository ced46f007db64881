package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/adampresley/photogallery/pkg/models"
)

const (
	DefaultCallTimeout = 30 * time.Second
)

var (
	ErrSessionBusy       = errors.New("an upload is already in progress")
	ErrNoFileSelected    = errors.New("please pick a file before submitting")
	ErrInvalidTransition = errors.New("invalid transition for the current upload phase")
	ErrTargetConsumed    = errors.New("upload target was already used")
)

/*
APIClient performs the three network calls of an upload. Implementations
must not retry a transfer against an upload URL that may have been used.
*/
type APIClient interface {
	RequestUploadTarget(ctx context.Context, filename string) (models.UploadTarget, error)
	TransferBytes(ctx context.Context, target models.UploadTarget, file SelectedFile) error
	RecordPhoto(ctx context.Context, payload models.PhotoPayload) (string, error)
}

// Transition is reported to the observer every time the phase changes.
type Transition struct {
	From    Phase
	To      Phase
	Message string
	Err     error
}

type SessionConfig struct {
	Client       APIClient
	CallTimeout  time.Duration
	OnTransition func(Transition)
	Logger       *slog.Logger
}

/*
Session drives one upload through
Idle -> FileSelected -> RequestingCredential -> TransferringBytes ->
RecordingMetadata -> Completed, with Errored reachable from every
non-terminal phase.

The phase is owned by the goroutine running Submit. Select, Submit, Retry,
and Reset called while a submission is in flight fail with ErrSessionBusy.
*/
type Session struct {
	mu           sync.Mutex
	client       APIClient
	callTimeout  time.Duration
	onTransition func(Transition)
	logger       *slog.Logger

	phase   Phase
	file    *SelectedFile
	form    FormValues
	target  *models.UploadTarget
	photoID string
	status  string
	lastErr error
}

func NewSession(config SessionConfig) *Session {
	result := &Session{
		client:       config.Client,
		callTimeout:  config.CallTimeout,
		onTransition: config.OnTransition,
		logger:       config.Logger,
		phase:        PhaseIdle,
	}

	if result.callTimeout <= 0 {
		result.callTimeout = DefaultCallTimeout
	}

	if result.logger == nil {
		result.logger = slog.Default()
	}

	return result
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Status is the latest operator-facing message.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) PhotoID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photoID
}

func (s *Session) File() (SelectedFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return SelectedFile{}, false
	}

	return *s.file, true
}

// Target is the upload target of the latest attempt. It may exist without stored bytes.
func (s *Session) Target() (models.UploadTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.target == nil {
		return models.UploadTarget{}, false
	}

	return *s.target, true
}

/*
Select picks a file. A file failing the guard leaves the phase unchanged
and only updates the status message.
*/
func (s *Session) Select(file SelectedFile) error {
	s.mu.Lock()

	if s.phase.InFlight() {
		s.mu.Unlock()
		return ErrSessionBusy
	}

	if s.phase == PhaseCompleted {
		s.mu.Unlock()
		return ErrInvalidTransition
	}

	if err := ValidateFile(file); err != nil {
		s.status = guardMessage(err)
		s.mu.Unlock()
		return err
	}

	s.file = &file
	s.target = nil
	s.lastErr = nil
	t := s.transitionLocked(PhaseFileSelected, fmt.Sprintf("Ready to upload: %s", file.Name), nil)
	s.mu.Unlock()

	s.report(t)
	return nil
}

/*
Submit runs the three calls in order and returns the new photo ID. Each call
is bounded by the session's call timeout. On failure the session is left in
PhaseErrored with the file and form values retained.
*/
func (s *Session) Submit(ctx context.Context, form FormValues) (string, error) {
	s.mu.Lock()

	if s.phase.InFlight() {
		s.mu.Unlock()
		return "", ErrSessionBusy
	}

	if s.phase != PhaseFileSelected || s.file == nil {
		if s.phase == PhaseIdle {
			s.status = "Please pick a file before submitting."
			s.mu.Unlock()
			return "", ErrNoFileSelected
		}

		s.mu.Unlock()
		return "", ErrInvalidTransition
	}

	if err := ValidateForm(form); err != nil {
		s.status = guardMessage(err)
		s.mu.Unlock()
		return "", err
	}

	s.form = form
	file := *s.file
	t := s.transitionLocked(PhaseRequestingCredential, "Requesting upload target...", nil)
	s.mu.Unlock()
	s.report(t)

	var target models.UploadTarget

	err := s.call(ctx, func(callCtx context.Context) error {
		var err error
		target, err = s.client.RequestUploadTarget(callCtx, file.Name)
		return err
	})

	if err != nil {
		return "", s.fail(err, err.Error())
	}

	s.mu.Lock()
	s.target = &target
	t = s.transitionLocked(PhaseTransferringBytes, "Uploading image...", nil)
	s.mu.Unlock()
	s.report(t)

	err = s.call(ctx, func(callCtx context.Context) error {
		return s.client.TransferBytes(callCtx, target, file)
	})

	if err != nil {
		s.logger.Warn("upload target issued but no bytes stored", "imageID", target.ImageID, "file", file.Name)
		return "", s.fail(err, fmt.Sprintf("Image upload failed: %s", err.Error()))
	}

	s.advance(PhaseRecordingMetadata, "Saving photo metadata...")

	payload := buildPayload(form, target, file)
	var photoID string

	err = s.call(ctx, func(callCtx context.Context) error {
		var err error
		photoID, err = s.client.RecordPhoto(callCtx, payload)
		return err
	})

	if err != nil {
		s.logger.Warn("image stored at provider but not recorded in catalog", "imageID", target.ImageID, "file", file.Name)
		return "", s.fail(err, err.Error())
	}

	s.mu.Lock()
	s.photoID = photoID
	t = s.transitionLocked(PhaseCompleted, "Upload completed successfully.", nil)
	s.mu.Unlock()
	s.report(t)

	return photoID, nil
}

/*
Retry moves an errored session back to FileSelected. The next Submit asks
for a fresh upload target; the old one is abandoned.
*/
func (s *Session) Retry() error {
	s.mu.Lock()

	if s.phase.InFlight() {
		s.mu.Unlock()
		return ErrSessionBusy
	}

	if s.phase != PhaseErrored || s.file == nil {
		s.mu.Unlock()
		return ErrInvalidTransition
	}

	s.target = nil
	t := s.transitionLocked(PhaseFileSelected, fmt.Sprintf("Ready to upload: %s", s.file.Name), nil)
	s.mu.Unlock()

	s.report(t)
	return nil
}

// Reset discards the file, form values, and results.
func (s *Session) Reset() error {
	s.mu.Lock()

	if s.phase.InFlight() {
		s.mu.Unlock()
		return ErrSessionBusy
	}

	s.file = nil
	s.form = FormValues{}
	s.target = nil
	s.photoID = ""
	s.lastErr = nil
	t := s.transitionLocked(PhaseIdle, "", nil)
	s.mu.Unlock()

	s.report(t)
	return nil
}

func (s *Session) call(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	err := fn(callCtx)

	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("request timed out after %s: %w", s.callTimeout, err)
	}

	return err
}

func (s *Session) advance(to Phase, message string) {
	s.mu.Lock()
	t := s.transitionLocked(to, message, nil)
	s.mu.Unlock()
	s.report(t)
}

func (s *Session) fail(err error, message string) error {
	s.mu.Lock()
	s.lastErr = err
	t := s.transitionLocked(PhaseErrored, message, err)
	s.mu.Unlock()

	s.report(t)
	return err
}

func (s *Session) transitionLocked(to Phase, message string, err error) Transition {
	t := Transition{From: s.phase, To: to, Message: message, Err: err}
	s.phase = to
	s.status = message
	return t
}

func (s *Session) report(t Transition) {
	if t.Err != nil {
		s.logger.Error("upload phase changed", "from", t.From.String(), "to", t.To.String(), "message", t.Message, "error", t.Err)
	} else {
		s.logger.Debug("upload phase changed", "from", t.From.String(), "to", t.To.String(), "message", t.Message)
	}

	if s.onTransition != nil {
		s.onTransition(t)
	}
}

func buildPayload(form FormValues, target models.UploadTarget, file SelectedFile) models.PhotoPayload {
	filename := file.Name
	published := form.PublishNow

	result := models.PhotoPayload{
		AlbumSlug:        form.AlbumSlug,
		CFImageID:        target.ImageID,
		Tags:             []string{},
		FilenameOriginal: &filename,
		Published:        &published,
	}

	if form.Alt != "" {
		alt := form.Alt
		result.Alt = &alt
	}

	return result
}

func guardMessage(err error) string {
	var validationErr *models.ValidationError

	if errors.As(err, &validationErr) {
		messages := []string{}

		for _, field := range []string{"file", "album_slug", "alt"} {
			messages = append(messages, validationErr.Fields[field]...)
		}

		return strings.Join(messages, " ")
	}

	return err.Error()
}
