package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/disgoorg/json"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
	"golang.org/x/time/rate"
)

// DefaultRequestsPerMinute is the request budget for the Quran API.
const DefaultRequestsPerMinute = 120

// chapterCacheSize covers every chapter, so each is fetched at most once.
const chapterCacheSize = domain.ChapterCount

// QuranAPIConfig contains the Quran API client configuration.
type QuranAPIConfig struct {
	BaseURL           string
	RequestsPerMinute int
	Timeout           time.Duration
}

// QuranAPIClient talks to an alquran.cloud compatible API. It is the primary
// audio service and the source of chapter text.
type QuranAPIClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	chapters   *lru.Cache[int, *ports.VerseList]
}

// NewQuranAPIClient creates a new QuranAPIClient.
func NewQuranAPIClient(config QuranAPIConfig) *QuranAPIClient {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	chapters, _ := lru.New[int, *ports.VerseList](chapterCacheSize)

	return &QuranAPIClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(
			rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)),
			1,
		),
		chapters: chapters,
	}
}

type apiResponse[T any] struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   T      `json:"data"`
}

type apiAyahAudio struct {
	Number int    `json:"number"`
	Audio  string `json:"audio"`
}

type apiSurah struct {
	Number      int    `json:"number"`
	Name        string `json:"name"`
	EnglishName string `json:"englishName"`
	Ayahs       []struct {
		Number        int    `json:"number"`
		Text          string `json:"text"`
		NumberInSurah int    `json:"numberInSurah"`
	} `json:"ayahs"`
}

// AudioURL returns the audio URL of a verse, by global number, in the voice
// of the given reciter edition.
func (c *QuranAPIClient) AudioURL(ctx context.Context, globalNumber int, reciterID string) (string, error) {
	var resp apiResponse[apiAyahAudio]
	if err := c.get(ctx, fmt.Sprintf("/ayah/%d/%s", globalNumber, reciterID), &resp); err != nil {
		return "", err
	}
	return resp.Data.Audio, nil
}

// Chapter returns the text of a chapter. Chapters are cached after the first fetch.
func (c *QuranAPIClient) Chapter(ctx context.Context, chapter int) (*ports.VerseList, error) {
	if list, ok := c.chapters.Get(chapter); ok {
		return list, nil
	}

	var resp apiResponse[apiSurah]
	if err := c.get(ctx, fmt.Sprintf("/surah/%d", chapter), &resp); err != nil {
		return nil, err
	}
	if resp.Data.Number != chapter {
		return nil, fmt.Errorf("requested chapter %d, got %d", chapter, resp.Data.Number)
	}

	list := &ports.VerseList{
		Chapter:     chapter,
		Name:        resp.Data.Name,
		EnglishName: resp.Data.EnglishName,
		Verses:      make([]ports.VerseText, 0, len(resp.Data.Ayahs)),
	}
	for _, ayah := range resp.Data.Ayahs {
		ref, err := domain.NewVerseRef(chapter, ayah.NumberInSurah)
		if err != nil {
			return nil, fmt.Errorf("invalid verse in chapter %d: %w", chapter, err)
		}
		list.Verses = append(list.Verses, ports.VerseText{Ref: ref, Text: ayah.Text})
	}

	c.chapters.Add(chapter, list)
	slog.Debug("fetched chapter text", "chapter", chapter, "verses", len(list.Verses))
	return list, nil
}

func (c *QuranAPIClient) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status from %s: %s", path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// Ensure QuranAPIClient implements the port interfaces.
var (
	_ ports.PrimaryAudioService = (*QuranAPIClient)(nil)
	_ ports.ChapterSource       = (*QuranAPIClient)(nil)
)
