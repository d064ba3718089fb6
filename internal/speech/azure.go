package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mirepoix/souschef/internal/logger"
)

// AzureOption configures the narration synthesizer.
type AzureOption func(*AzureClient)

// WithVoice selects the neural voice that reads the steps.
func WithVoice(voice string) AzureOption {
	return func(c *AzureClient) {
		c.voice = voice
	}
}

// AzureClient turns step narration into WAV clips via the Azure
// Cognitive Services TTS endpoint. The output format is fixed to the
// PCM layout the player decodes; only the voice is configurable.
type AzureClient struct {
	subscriptionKey string
	region          string
	voice           string
	httpClient      *http.Client
	log             *logger.Logger
}

// Voice returns the active voice name. The audio cache keys clips by
// voice so a voice change never replays stale audio.
func (c *AzureClient) Voice() string { return c.voice }

// NewAzureClient creates a synthesizer bound to one Azure region.
func NewAzureClient(key, region string, log *logger.Logger, opts ...AzureOption) *AzureClient {
	c := &AzureClient{
		subscriptionKey: key,
		region:          region,
		voice:           DefaultVoice,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize renders one utterance to WAV bytes.
func (c *AzureClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	url := fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", c.region)

	ssml := narrationSSML(c.voice, text)
	c.log.Debug("azure tts: synthesizing %d chars with voice %s", len(text), c.voice)

	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", DefaultAudioFormat)
	req.Header.Set("User-Agent", "SousChef/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("azure tts error %d: %s", resp.StatusCode, string(body))
	}

	clip, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio data: %w", err)
	}

	c.log.Debug("azure tts: got %d bytes of audio", len(clip))
	return clip, nil
}

// ssmlEscaper guards the SSML body against markup characters in
// recipe text ("salt & pepper", "heat to <200F").
var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// narrationSSML wraps one utterance in the SSML envelope Azure expects.
func narrationSSML(voice, text string) string {
	return fmt.Sprintf(
		`<speak version='1.0' xml:lang='en-US'><voice xml:lang='en-US' name='%s'>%s</voice></speak>`,
		voice, ssmlEscaper.Replace(text),
	)
}
