package infrastructure

import (
	"fmt"
	"strings"

	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// CDNAudioSource builds audio URLs from a fixed per-reciter layout:
// {base}/{reciter}/{global}.{ext}. It never touches the network, so it keeps
// working when the primary service is down.
type CDNAudioSource struct {
	baseURL   string
	extension string
}

// NewCDNAudioSource creates a new CDNAudioSource.
func NewCDNAudioSource(baseURL, extension string) *CDNAudioSource {
	if extension == "" {
		extension = "mp3"
	}
	return &CDNAudioSource{
		baseURL:   strings.TrimRight(baseURL, "/"),
		extension: strings.TrimPrefix(extension, "."),
	}
}

// AudioURL returns the CDN URL of a verse for the given reciter.
func (s *CDNAudioSource) AudioURL(globalNumber int, reciterID string) (string, error) {
	if s.baseURL == "" {
		return "", fmt.Errorf("no audio CDN configured")
	}
	if globalNumber < 1 || globalNumber > domain.TotalVerses {
		return "", fmt.Errorf("verse number %d is outside [1, %d]", globalNumber, domain.TotalVerses)
	}
	if reciterID == "" || strings.ContainsAny(reciterID, "/?#") {
		return "", fmt.Errorf("reciter %q cannot be served from the CDN", reciterID)
	}
	return fmt.Sprintf("%s/%s/%d.%s", s.baseURL, reciterID, globalNumber, s.extension), nil
}

// Ensure CDNAudioSource implements ports.FallbackAudioSource.
var _ ports.FallbackAudioSource = (*CDNAudioSource)(nil)
