package session

import (
	"context"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-glance/internal/log"
	"github.com/teslashibe/go-glance/pkg/activity"
	"github.com/teslashibe/go-glance/pkg/device"
	"github.com/teslashibe/go-glance/pkg/idle"
	"github.com/teslashibe/go-glance/pkg/tts"
)

// Speaker is the single path for playing audio to a user. Every playback
// records an audio start before it begins and clears the user's idle guard
// when it ends, whether or not it succeeded.
type Speaker struct {
	registry *Registry
	tracker  *activity.Tracker
	guards   *idle.Guards
	logger   *slog.Logger

	// server-side synthesis; nil means the device speaks the text itself
	synth     tts.Provider
	clips     *tts.ClipCache
	clipsBase string
}

// SpeakerOption configures a Speaker.
type SpeakerOption func(*Speaker)

// WithServerSpeech synthesizes speech on the server and has the device play
// the clip from clipsBase + "/" + clipID.
func WithServerSpeech(p tts.Provider, clips *tts.ClipCache, clipsBase string) SpeakerOption {
	return func(s *Speaker) {
		s.synth = p
		s.clips = clips
		s.clipsBase = strings.TrimSuffix(clipsBase, "/")
	}
}

// WithSpeakerLogger sets the logger.
func WithSpeakerLogger(l *slog.Logger) SpeakerOption {
	return func(s *Speaker) { s.logger = l }
}

// NewSpeaker creates a speaker.
func NewSpeaker(registry *Registry, tracker *activity.Tracker, guards *idle.Guards, opts ...SpeakerOption) *Speaker {
	s := &Speaker{
		registry: registry,
		tracker:  tracker,
		guards:   guards,
		logger:   log.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session.Speaker")
	return s
}

// Speak speaks text on the user's registered session.
func (s *Speaker) Speak(ctx context.Context, userID, text string) error {
	sess, ok := s.registry.Get(userID)
	if !ok {
		return device.ErrNotConnected
	}
	return s.SpeakOn(ctx, sess, text)
}

// SpeakOn speaks text on sess.
func (s *Speaker) SpeakOn(ctx context.Context, sess device.Session, text string) error {
	userID := sess.UserID()
	s.tracker.MarkAudioStarted(userID)
	defer s.guards.Clear(userID)

	if s.synth != nil {
		if url, ok := s.synthesize(ctx, userID, text); ok {
			return sess.PlayAudio(ctx, url)
		}
	}
	return sess.Speak(ctx, text)
}

// PlayAudio plays audioURL on the user's registered session.
func (s *Speaker) PlayAudio(ctx context.Context, userID, audioURL string) error {
	sess, ok := s.registry.Get(userID)
	if !ok {
		return device.ErrNotConnected
	}
	s.tracker.MarkAudioStarted(userID)
	defer s.guards.Clear(userID)
	return sess.PlayAudio(ctx, audioURL)
}

func (s *Speaker) synthesize(ctx context.Context, userID, text string) (string, bool) {
	res, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		s.logger.Warn("speech synthesis failed, falling back to device speech", "user_id", userID, "error", err)
		return "", false
	}
	id := s.clips.Put(res)
	return s.clipsBase + "/" + id, true
}

var _ idle.Speaker = (*Speaker)(nil)
