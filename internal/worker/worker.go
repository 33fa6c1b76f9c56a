// Package worker runs synthesis jobs delivered over NATS.
//
// A job is a TextProcessedEvent whose text lives in the text bucket. The
// worker synthesizes it with the neural engine, stores the WAV in the audio
// bucket and replies with an AudioChunkCreatedEvent. Failed jobs are answered
// with an empty body and error headers so requesters do not wait for a
// timeout.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/tts-capability/internal/core"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	// QueueGroup lets several service instances share one subject.
	QueueGroup = "tts-capability"

	// HeaderErrorCode carries core.Code of a failed job.
	HeaderErrorCode = "Tts-Error-Code"
	// HeaderError carries the error text of a failed job.
	HeaderError = "Tts-Error"

	handleMessageTimeout = 2 * time.Minute
	audioKeySuffix       = ".wav"
)

var (
	// ErrSubjectEmpty indicates that no subject was configured.
	ErrSubjectEmpty = errors.New("subject cannot be empty")
	// ErrTextKeyEmpty indicates an event without a text key.
	ErrTextKeyEmpty = errors.New("text key cannot be empty")
)

// NatsWorker listens for synthesis jobs on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	texts          core.ObjectStore
	audio          core.ObjectStore
	synthesizer    core.Synthesizer
	log            *logger.Logger
}

// NewNatsWorker creates a worker that reads text from texts and writes audio
// to audio.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	texts core.ObjectStore,
	audio core.ObjectStore,
	synthesizer core.Synthesizer,
	log *logger.Logger,
) (*NatsWorker, error) {
	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		texts:          texts,
		audio:          audio,
		synthesizer:    synthesizer,
		log:            log,
	}, nil
}

// Run subscribes and processes messages until ctx is cancelled, then drains.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.QueueSubscribe(w.subject, QueueGroup, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.System("Listening for synthesis jobs on subject: %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse event: %v", err)
		w.replyError(msg, err)

		return
	}

	audioKey, err := w.processJob(ctx, event)
	if err != nil {
		w.log.Error("Failed to process synthesis job for workflow %s: %v", event.Header.WorkflowID, err)
		w.replyError(msg, err)

		return
	}

	replyEvent := &events.AudioChunkCreatedEvent{
		Header:     event.Header,
		AudioKey:   audioKey,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)

		return
	}

	w.log.Info("Workflow %s page %d/%d synthesized to %s",
		event.Header.WorkflowID, event.PageNumber, event.TotalPages, audioKey)
}

// processJob downloads the text, synthesizes it and uploads the audio.
func (w *NatsWorker) processJob(ctx context.Context, event *events.TextProcessedEvent) (string, error) {
	textData, err := w.texts.Download(ctx, event.TextKey)
	if err != nil {
		return "", fmt.Errorf("failed to download text data for key '%s': %w", event.TextKey, err)
	}

	wav, err := w.synthesizer.Synthesize(ctx, core.SynthesisRequest{
		Text:  string(textData),
		Voice: event.Voice,
	})
	if err != nil {
		return "", fmt.Errorf("failed to synthesize text for key '%s': %w", event.TextKey, err)
	}

	audioKey := uuid.NewString() + audioKeySuffix

	err = w.audio.Upload(ctx, audioKey, wav)
	if err != nil {
		return "", fmt.Errorf("failed to upload audio data for key '%s': %w", audioKey, err)
	}

	return audioKey, nil
}

// publishReplyEvent marshals and responds with the AudioChunkCreatedEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *events.AudioChunkCreatedEvent) error {
	if msg.Reply == "" {
		return nil
	}

	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func (w *NatsWorker) replyError(msg *nats.Msg, cause error) {
	if msg.Reply == "" {
		return
	}

	reply := nats.NewMsg(msg.Reply)
	reply.Header.Set(HeaderErrorCode, core.Code(cause))
	reply.Header.Set(HeaderError, cause.Error())

	err := msg.RespondMsg(reply)
	if err != nil {
		w.log.Error("Failed to publish error reply: %v", err)
	}
}

func parseEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal event: %w", core.ErrValidation, err)
	}

	if event.TextKey == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, ErrTextKeyEmpty)
	}

	return &event, nil
}
