// Package notify delivers camera lifecycle notifications to the
// messaging fabric. Delivery is fire-and-forget from the caller's point
// of view; failures are retried here and then logged, never surfaced.
package notify

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/technosupport/ts-camstream/internal/data"
)

const defaultRetries = 3

// Subjects configures where each event class is published.
type Subjects struct {
	StateChanged string `yaml:"state_changed"`
	NewFrame     string `yaml:"new_frame"`
}

func DefaultSubjects() Subjects {
	return Subjects{
		StateChanged: "cameras.state",
		NewFrame:     "cameras.frames",
	}
}

type stateChangedEvent struct {
	CameraID   string    `json:"camera_id"`
	CameraName string    `json:"camera"`
	Active     bool      `json:"active"`
	At         time.Time `json:"at"`
}

type newFrameEvent struct {
	CameraID   string    `json:"camera_id"`
	CameraName string    `json:"camera"`
	FrameURL   string    `json:"frame_url"`
	At         time.Time `json:"at"`
}

type NATSNotifier struct {
	conn       *nats.Conn
	subjects   Subjects
	maxRetries int
}

func NewNATSNotifier(conn *nats.Conn, subjects Subjects) *NATSNotifier {
	return &NATSNotifier{conn: conn, subjects: subjects, maxRetries: defaultRetries}
}

func (n *NATSNotifier) StateChanged(cam *data.Camera) {
	n.publish(n.subjects.StateChanged, stateChangedEvent{
		CameraID:   cam.ID.String(),
		CameraName: cam.Name,
		Active:     cam.IsActive,
		At:         time.Now().UTC(),
	})
}

func (n *NATSNotifier) NewFrame(cam *data.Camera, publicURL string) {
	n.publish(n.subjects.NewFrame, newFrameEvent{
		CameraID:   cam.ID.String(),
		CameraName: cam.Name,
		FrameURL:   publicURL,
		At:         time.Now().UTC(),
	})
}

func (n *NATSNotifier) publish(subject string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("notify: marshal %s: %v", subject, err)
		return
	}

	var lastErr error
	for i := 0; i <= n.maxRetries; i++ {
		if lastErr = n.conn.Publish(subject, payload); lastErr == nil {
			return
		}
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}
	log.Printf("notify: publish %s failed after %d retries: %v", subject, n.maxRetries, lastErr)
}

// Noop satisfies the notifier interfaces for deployments without a
// messaging fabric (and for tests).
type Noop struct{}

func (Noop) StateChanged(cam *data.Camera)               {}
func (Noop) NewFrame(cam *data.Camera, publicURL string) {}
