// Package capture runs the snapshot-recognize-reconcile workflow that
// turns a classroom camera frame into a proposed attendance list. One
// pass, no retries; the proposal is only written to the ledger by the
// separate confirmation step.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/ShubhamSingh-04/attendance-system-server/camera"
	"github.com/ShubhamSingh-04/attendance-system-server/models"
	"github.com/ShubhamSingh-04/attendance-system-server/recognizer"
	"github.com/ShubhamSingh-04/attendance-system-server/storage"
)

// Workflow states, in order. A run either reaches reconciled or stops at
// the first failing transition.
const (
	stateCameraResolved   = "camera-resolved"
	stateSnapshotCaptured = "snapshot-captured"
	stateRosterLoaded     = "roster-loaded"
	stateRecognitionDone  = "recognition-complete"
	stateReconciled       = "reconciled"
)

var (
	// ErrNoCamera means the room has no camera row at all.
	ErrNoCamera = errors.New("no camera configured for room")
	// ErrNoCameraURL means the camera row exists but its access link is empty.
	ErrNoCameraURL = errors.New("camera has no access link")
	// ErrNoEmbeddings means not one student of the class has a stored
	// embedding, so recognition cannot be attempted.
	ErrNoEmbeddings = errors.New("no student in this class has a registered face")
)

// CameraError wraps a snapshot fetch failure. The camera was configured
// but did not answer with an image.
type CameraError struct{ Err error }

func (e *CameraError) Error() string { return fmt.Sprintf("camera: %v", e.Err) }
func (e *CameraError) Unwrap() error { return e.Err }

// RecognizerError wraps a recognition call failure.
type RecognizerError struct{ Err error }

func (e *RecognizerError) Error() string { return fmt.Sprintf("recognizer: %v", e.Err) }
func (e *RecognizerError) Unwrap() error { return e.Err }

// Request identifies the room to photograph and the class/subject the
// proposal is for. All three are already-resolved rows.
type Request struct {
	Room    models.Room
	Class   models.Class
	Subject models.Subject
}

// Proposal is the reconciled attendance list returned to the caller.
// Nothing in it has been persisted.
type Proposal struct {
	Snapshot          string `json:"snapshot"`
	FacesDetected     int    `json:"faces_detected"`
	UnrecognizedFaces int    `json:"unrecognized_faces"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	Marks             []Mark `json:"marks"`
}

// Orchestrator wires the collaborators of one capture run.
type Orchestrator struct {
	db    *gorm.DB
	cams  *camera.Client
	rec   *recognizer.Client
	store *storage.Store
	now   func() time.Time
}

// New returns an orchestrator over the given collaborators.
func New(db *gorm.DB, cams *camera.Client, rec *recognizer.Client, store *storage.Store) *Orchestrator {
	return &Orchestrator{db: db, cams: cams, rec: rec, store: store, now: time.Now}
}

// Run executes one capture pass and returns the proposal.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Proposal, error) {
	timer := prometheus.NewTimer(duration)
	defer timer.ObserveDuration()

	p, err := o.run(ctx, req)
	runs.WithLabelValues(outcome(err)).Inc()
	return p, err
}

func (o *Orchestrator) run(ctx context.Context, req Request) (*Proposal, error) {
	// camera-resolved
	var cam models.Camera
	if err := o.db.Where("room_id = ?", req.Room.ID).Order("id").First(&cam).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCamera
		}
		return nil, fmt.Errorf("resolve camera: %w", err)
	}
	if cam.CameraURL == "" {
		return nil, ErrNoCameraURL
	}
	log.Printf("[capture] %s: room=%d camera=%s", stateCameraResolved, req.Room.ID, cam.CameraID)

	// snapshot-captured
	frame, err := o.cams.Snapshot(ctx, cam.CameraURL)
	if err != nil {
		return nil, &CameraError{Err: err}
	}
	name := fmt.Sprintf("%s_%s_%d.jpg", req.Class.Code, req.Subject.Code, o.now().Unix())
	if err := o.store.SaveSnapshot(name, frame); err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}
	log.Printf("[capture] %s: %s (%d bytes)", stateSnapshotCaptured, name, len(frame))

	// roster-loaded
	var roster []models.Student
	if err := o.db.Where("class_id = ?", req.Class.ID).Order("usn").Find(&roster).Error; err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	known := make([]recognizer.KnownFace, 0, len(roster))
	for _, s := range roster {
		if emb := s.Embedding(); len(emb) > 0 {
			known = append(known, recognizer.KnownFace{USN: s.USN, Embedding: emb})
		}
	}
	if len(known) == 0 {
		return nil, ErrNoEmbeddings
	}
	log.Printf("[capture] %s: %d students, %d with embeddings", stateRosterLoaded, len(roster), len(known))

	// recognition-complete; on failure the snapshot file stays on disk
	result, err := o.rec.RecognizeStudents(ctx, name, known)
	if err != nil {
		return nil, &RecognizerError{Err: err}
	}
	log.Printf("[capture] %s: detected=%d unrecognized=%d", stateRecognitionDone, result.FacesDetected, result.UnrecognizedFaces)

	// reconciled
	at := o.now()
	p := &Proposal{
		Snapshot:          name,
		FacesDetected:     result.FacesDetected,
		UnrecognizedFaces: result.UnrecognizedFaces,
		Date:              at.Format("2006-01-02"),
		Time:              at.Format("15:04"),
		Marks:             Reconcile(roster, result.RecognizedUSNs),
	}
	log.Printf("[capture] %s: %d marks for class=%s subject=%s", stateReconciled, len(p.Marks), req.Class.Code, req.Subject.Code)
	return p, nil
}

func outcome(err error) string {
	var camErr *CameraError
	var recErr *RecognizerError
	switch {
	case err == nil:
		return "reconciled"
	case errors.Is(err, ErrNoCamera), errors.Is(err, ErrNoCameraURL):
		return "no_camera"
	case errors.Is(err, ErrNoEmbeddings):
		return "no_embeddings"
	case errors.As(err, &camErr):
		return "camera_unreachable"
	case errors.As(err, &recErr):
		return "recognizer_failed"
	default:
		return "internal_error"
	}
}
