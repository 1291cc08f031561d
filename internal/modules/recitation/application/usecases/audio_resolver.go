package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// DefaultAudioCacheSize is the number of resolved remote sources kept in memory.
const DefaultAudioCacheSize = 512

// errEmptyAudioURL is the primary-tier failure for a response without audio.
var errEmptyAudioURL = errors.New("primary service returned no audio url")

type audioCacheKey struct {
	globalNumber int
	reciterID    string
}

// AudioResolver maps a verse and reciter to a playable source.
type AudioResolver interface {
	Resolve(ctx context.Context, verse domain.VerseRef, reciterID string) (ports.AudioSource, error)
}

// AudioSourceResolver resolves audio in tiers:
//   - the user-recordings reciter uses the recording store only
//   - any other reciter tries the primary service (with retries),
//     then the fallback CDN
//
// Primary-tier results are cached. Recordings are not, since the recording
// directory can change at any time.
type AudioSourceResolver struct {
	primary    ports.PrimaryAudioService
	fallback   ports.FallbackAudioSource
	recordings ports.RecordingStore
	retry      RetryPolicy
	cache      *lru.Cache[audioCacheKey, ports.AudioSource]
}

// Compile-time check that AudioSourceResolver implements AudioResolver.
var _ AudioResolver = (*AudioSourceResolver)(nil)

// NewAudioSourceResolver creates a new AudioSourceResolver.
// recordings may be nil, in which case the user reciter never resolves.
func NewAudioSourceResolver(
	primary ports.PrimaryAudioService,
	fallback ports.FallbackAudioSource,
	recordings ports.RecordingStore,
	retry RetryPolicy,
	cacheSize int,
) *AudioSourceResolver {
	if cacheSize <= 0 {
		cacheSize = DefaultAudioCacheSize
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[audioCacheKey, ports.AudioSource](cacheSize)

	return &AudioSourceResolver{
		primary:    primary,
		fallback:   fallback,
		recordings: recordings,
		retry:      retry,
		cache:      cache,
	}
}

// Resolve returns the audio source for verse in the given reciter's voice.
// Errors are *domain.NoUserRecordingError or *domain.AudioResolutionError.
func (r *AudioSourceResolver) Resolve(
	ctx context.Context,
	verse domain.VerseRef,
	reciterID string,
) (ports.AudioSource, error) {
	if domain.IsUserRecordingsID(reciterID) {
		return r.resolveRecording(ctx, verse)
	}

	key := audioCacheKey{globalNumber: verse.GlobalNumber, reciterID: reciterID}
	if source, ok := r.cache.Get(key); ok {
		return source, nil
	}

	source, err := r.resolveRemote(ctx, verse, reciterID)
	if err != nil {
		return ports.AudioSource{}, err
	}

	if source.Origin == ports.OriginPrimary {
		r.cache.Add(key, source)
	}
	return source, nil
}

func (r *AudioSourceResolver) resolveRecording(
	ctx context.Context,
	verse domain.VerseRef,
) (ports.AudioSource, error) {
	notFound := &domain.NoUserRecordingError{Chapter: verse.Chapter, Verse: verse.Verse}
	if r.recordings == nil {
		return ports.AudioSource{}, notFound
	}

	locator, found, err := r.recordings.Lookup(ctx, verse.Chapter, verse.Verse)
	if err != nil {
		slog.Warn("recording lookup failed",
			"verse", verse.String(),
			"error", err,
		)
		return ports.AudioSource{}, notFound
	}
	if !found {
		return ports.AudioSource{}, notFound
	}

	return ports.AudioSource{URI: locator, Origin: ports.OriginUserRecording}, nil
}

func (r *AudioSourceResolver) resolveRemote(
	ctx context.Context,
	verse domain.VerseRef,
	reciterID string,
) (ports.AudioSource, error) {
	var url string
	primaryErr := r.retry.Do(ctx, "primary audio lookup", func(ctx context.Context) error {
		var err error
		url, err = r.primary.AudioURL(ctx, verse.GlobalNumber, reciterID)
		if err != nil {
			return err
		}
		if url == "" {
			return errEmptyAudioURL
		}
		return nil
	})
	if primaryErr == nil {
		return ports.AudioSource{URI: url, Origin: ports.OriginPrimary}, nil
	}
	if ctx.Err() != nil {
		return ports.AudioSource{}, ctx.Err()
	}

	slog.Debug("primary audio lookup failed, using fallback",
		"verse", verse.String(),
		"reciter", reciterID,
		"error", primaryErr,
	)

	fallbackURL, fallbackErr := r.fallback.AudioURL(verse.GlobalNumber, reciterID)
	if fallbackErr == nil && fallbackURL == "" {
		fallbackErr = fmt.Errorf("fallback produced no url for verse %d", verse.GlobalNumber)
	}
	if fallbackErr != nil {
		return ports.AudioSource{}, &domain.AudioResolutionError{
			Verse:    verse,
			Reciter:  reciterID,
			Primary:  primaryErr,
			Fallback: fallbackErr,
		}
	}

	return ports.AudioSource{URI: fallbackURL, Origin: ports.OriginFallback}, nil
}
