package broadcast

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/tapedeck-player/tapedeck/internal/session"
)

// NowPlaying is the retained state document published on every session
// change, so late subscribers immediately see the current track.
type NowPlaying struct {
	Title     string  `json:"title"`
	Artist    string  `json:"artist,omitempty"`
	Artwork   string  `json:"artwork,omitempty"`
	Index     int     `json:"index"`
	Total     int     `json:"total"`
	Playing   bool    `json:"playing"`
	Position  float64 `json:"position"`
	Duration  float64 `json:"duration"`
	Timestamp int64   `json:"ts"`
}

// publisher is the slice of Client the Publisher needs; tests swap in a
// recording fake.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Publisher turns session snapshots into retained MQTT messages. Publishing
// is best-effort: failures are logged and never reach the playback path.
type Publisher struct {
	log    *zap.Logger
	client publisher
	topic  string

	// Artist and Artwork are fixed per catalog and attached to every
	// published state.
	Artist  string
	Artwork string
}

// NewPublisher creates a publisher over client on the given topic.
func NewPublisher(log *zap.Logger, client publisher, topic string) *Publisher {
	if topic == "" {
		topic = "tapedeck/now_playing"
	}
	return &Publisher{log: log, client: client, topic: topic}
}

// Publish broadcasts the snapshot.
func (p *Publisher) Publish(snap session.Snapshot) {
	state := NowPlaying{
		Artist:    p.Artist,
		Artwork:   p.Artwork,
		Index:     snap.Index,
		Total:     len(snap.Items),
		Playing:   snap.Playing,
		Position:  snap.CurrentTime,
		Duration:  snap.Duration,
		Timestamp: time.Now().Unix(),
	}
	if item, ok := snap.Current(); ok {
		state.Title = item.Title
	}
	payload, err := json.Marshal(state)
	if err != nil {
		p.log.Warn("marshal now-playing", zap.Error(err))
		return
	}
	if err := p.client.Publish(p.topic, 0, true, payload); err != nil {
		p.log.Warn("publish now-playing", zap.Error(err))
	}
}
