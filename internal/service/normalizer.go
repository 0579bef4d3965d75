package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"clinsight/internal/config"
	"clinsight/internal/domain"
	"clinsight/internal/port"
)

const imagingHeading = "Findings from imaging:"

// Warnings attached to records when a soft-fail stage contributes nothing.
const (
	WarningResearchUnavailable = "Literature research was unavailable; the analysis was produced without references."
	WarningVisionUnavailable   = "Attached images could not be described and were not used in the analysis."
	WarningVisionNotConfigured = "Image description is not configured; attached images were not used in the analysis."
	WarningAudioIgnored        = "Recorded audio was attached alongside typed case text and was not transcribed."
)

// Normalizer turns a raw submission into a single textual case description.
type Normalizer struct {
	transcriber          port.Transcriber
	vision               port.VisionDescriber
	cfg                  config.PipelineConfig
	transcriptionTimeout time.Duration
	visionTimeout        time.Duration
}

// NewNormalizer creates a Normalizer. Either adapter may be nil, in which case
// the corresponding input cannot be used.
func NewNormalizer(transcriber port.Transcriber, vision port.VisionDescriber, cfg config.PipelineConfig) *Normalizer {
	return &Normalizer{
		transcriber:          transcriber,
		vision:               vision,
		cfg:                  cfg,
		transcriptionTimeout: orDefault(cfg.TranscriptionTimeout, 2*time.Minute),
		visionTimeout:        orDefault(cfg.VisionTimeout, 90*time.Second),
	}
}

// Validate checks payload shape and limits without calling any adapter.
func (n *Normalizer) Validate(req *domain.AnalysisRequest) error {
	if req.Audio != nil && len(req.Audio.Data) > 0 {
		if _, ok := domain.AllowedAudioTypes[baseMediaType(req.Audio.ContentType)]; !ok {
			return fmt.Errorf("%w: unsupported audio type %q", domain.ErrInvalidInput, req.Audio.ContentType)
		}
		if n.cfg.MaxAudioBytes > 0 && int64(len(req.Audio.Data)) > n.cfg.MaxAudioBytes {
			return fmt.Errorf("%w: audio exceeds %d bytes", domain.ErrInvalidInput, n.cfg.MaxAudioBytes)
		}
	}
	if n.cfg.MaxImages > 0 && len(req.Images) > n.cfg.MaxImages {
		return fmt.Errorf("%w: at most %d images may be attached", domain.ErrInvalidInput, n.cfg.MaxImages)
	}
	for i := range req.Images {
		img := &req.Images[i]
		if len(img.Data) == 0 {
			return fmt.Errorf("%w: image %d is empty", domain.ErrInvalidInput, i)
		}
		if _, ok := domain.AllowedImageTypes[baseMediaType(img.ContentType)]; !ok {
			return fmt.Errorf("%w: unsupported image type %q", domain.ErrInvalidInput, img.ContentType)
		}
		if n.cfg.MaxImageBytes > 0 && int64(len(img.Data)) > n.cfg.MaxImageBytes {
			return fmt.Errorf("%w: image %d exceeds %d bytes", domain.ErrInvalidInput, i, n.cfg.MaxImageBytes)
		}
	}
	return nil
}

// Normalize resolves the submission to case text. Transcription runs only
// when audio is the sole text source and its failure is fatal. Vision
// failure only adds a warning.
func (n *Normalizer) Normalize(ctx context.Context, req *domain.AnalysisRequest) (*domain.NormalizedCase, error) {
	if err := n.Validate(req); err != nil {
		return nil, err
	}

	nc := &domain.NormalizedCase{
		UserText:  strings.TrimSpace(req.CaseText),
		HadAudio:  req.Audio != nil && len(req.Audio.Data) > 0,
		HadImages: len(req.Images) > 0,
	}
	text := nc.UserText

	if nc.HadAudio {
		if text == "" {
			transcript, err := n.transcribe(ctx, req.Audio)
			if err != nil {
				return nil, &domain.NormalizationError{Reason: domain.ReasonNoUsableInput, Err: err}
			}
			nc.Transcript = transcript
			text = transcript
		} else {
			nc.Warnings = append(nc.Warnings, WarningAudioIgnored)
		}
	}

	if text == "" {
		return nil, &domain.NormalizationError{Reason: domain.ReasonEmptyCase}
	}

	if nc.HadImages {
		findings, warning := n.describe(ctx, text, req.Images)
		if warning != "" {
			nc.Warnings = append(nc.Warnings, warning)
		}
		if findings != "" {
			nc.Findings = findings
			text = text + "\n\n" + imagingHeading + "\n" + findings
		}
	}

	nc.Text = text
	return nc, nil
}

func (n *Normalizer) transcribe(ctx context.Context, audio *domain.AudioPayload) (string, error) {
	if n.transcriber == nil {
		return "", domain.NewAdapterError(domain.StageTranscription, errors.New("no transcription provider configured"))
	}
	tctx, cancel := context.WithTimeout(ctx, n.transcriptionTimeout)
	defer cancel()

	fileName := audio.FileName
	if fileName == "" {
		fileName = "recording." + domain.AllowedAudioTypes[baseMediaType(audio.ContentType)]
	}
	transcript, err := n.transcriber.Transcribe(tctx, port.TranscriptionInput{
		Audio:    audio.Data,
		FileName: fileName,
	})
	if err != nil {
		return "", domain.NewAdapterError(domain.StageTranscription, err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", domain.NewAdapterError(domain.StageTranscription, errors.New("empty transcript"))
	}
	return transcript, nil
}

func (n *Normalizer) describe(ctx context.Context, caseText string, images []domain.ImagePayload) (findings, warning string) {
	if n.vision == nil {
		return "", WarningVisionNotConfigured
	}
	vctx, cancel := context.WithTimeout(ctx, n.visionTimeout)
	defer cancel()

	out, err := n.vision.Describe(vctx, port.VisionInput{CaseText: caseText, Images: images})
	if err != nil {
		log.Warn().Err(err).Int("images", len(images)).Msg("normalizer.Normalize: vision failed, continuing without image findings")
		return "", WarningVisionUnavailable
	}
	out = strings.TrimSpace(out)
	if out == "" {
		log.Warn().Int("images", len(images)).Msg("normalizer.Normalize: vision returned no findings")
		return "", WarningVisionUnavailable
	}
	return out, ""
}

// baseMediaType strips parameters such as "; codecs=opus".
func baseMediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
