package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"videotranscriber/internal/wav"
)

// Recognizer converts one audio segment into text
type Recognizer interface {
	// Transcribe returns the recognized text for the audio segment at
	// chunkPath, or an empty string on any failure - unrecognized speech,
	// a remote service error, or an I/O error. It never returns an error:
	// segments frequently fail recognition (silence, noise, request-size
	// limits) and the pipeline must tolerate that without aborting.
	Transcribe(ctx context.Context, chunkPath, language string) string
}

// GoogleRecognizer calls the Google web speech API with raw PCM samples
type GoogleRecognizer struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *zap.Logger
}

// NewGoogleRecognizer creates a GoogleRecognizer for the given endpoint and key
func NewGoogleRecognizer(endpoint, apiKey string, logger *zap.Logger) *GoogleRecognizer {
	return &GoogleRecognizer{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   newRecognitionHTTPClient(),
		logger:   logger,
	}
}

// newRecognitionHTTPClient builds an HTTP client with explicit connection
// timeouts but no overall request timeout; each recognition call either
// returns or runs into the transport's own limits.
func newRecognitionHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
	}

	return &http.Client{Transport: transport}
}

// recognitionResponse models one line of the service's line-delimited JSON
type recognitionResponse struct {
	Result []struct {
		Alternative []struct {
			Transcript string  `json:"transcript"`
			Confidence float32 `json:"confidence"`
		} `json:"alternative"`
		Final bool `json:"final"`
	} `json:"result"`
	ResultIndex int `json:"result_index"`
}

// Transcribe implements Recognizer
func (g *GoogleRecognizer) Transcribe(ctx context.Context, chunkPath, language string) string {
	audio, err := wav.ReadFile(chunkPath)
	if err != nil {
		g.logger.Warn("failed to read audio segment",
			zap.String("chunk", chunkPath),
			zap.Error(err))
		return ""
	}

	requestURL := fmt.Sprintf("%s?client=chromium&lang=%s&key=%s",
		g.endpoint, url.QueryEscape(language), url.QueryEscape(g.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(audio.Data))
	if err != nil {
		g.logger.Warn("failed to build recognition request", zap.Error(err))
		return ""
	}
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d", audio.SampleRate))

	g.logger.Debug("sending segment to recognition service",
		zap.String("chunk", chunkPath),
		zap.String("language", language),
		zap.Int("bytes", len(audio.Data)))

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("recognition request failed",
			zap.String("chunk", chunkPath),
			zap.Error(err))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Warn("recognition service returned error status",
			zap.String("chunk", chunkPath),
			zap.Int("status_code", resp.StatusCode))
		return ""
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		g.logger.Warn("failed to read recognition response", zap.Error(err))
		return ""
	}

	text := parseRecognitionResponse(body)
	if text == "" {
		g.logger.Debug("no speech recognized in segment", zap.String("chunk", chunkPath))
	}
	return text
}

// parseRecognitionResponse extracts the first transcript from the service's
// line-delimited JSON body. Lines without results (the service emits an
// empty result line before the real one) are skipped; a body with no
// usable transcript maps to an empty string.
func parseRecognitionResponse(body []byte) string {
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var parsed recognitionResponse
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			continue
		}

		for _, result := range parsed.Result {
			for _, alt := range result.Alternative {
				if transcript := strings.TrimSpace(alt.Transcript); transcript != "" {
					return transcript
				}
			}
		}
	}
	return ""
}
