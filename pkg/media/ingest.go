package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	apperrors "companion/pkg/errors"
	"companion/pkg/persona"
)

// UploadOutcome is what the storage backend did with a write.
type UploadOutcome int

const (
	UploadCreated UploadOutcome = iota + 1
	// UploadDuplicate means the path already held an object. Paths are
	// content addressed, so this is success.
	UploadDuplicate
)

func (o UploadOutcome) String() string {
	switch o {
	case UploadCreated:
		return "created"
	case UploadDuplicate:
		return "duplicate"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ObjectStore is the durable storage collaborator. Implementations must
// report an existing object as UploadDuplicate, not as an error.
type ObjectStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (UploadOutcome, error)
	PublicURL(path string) (string, error)
}

// Index remembers which storage paths were already published. Optional; a
// hit skips the upload.
type Index interface {
	Lookup(ctx context.Context, path string) (publicURL string, ok bool, err error)
	Remember(ctx context.Context, path, publicURL string) error
}

// IngestKind classifies an ingestion failure.
type IngestKind int

const (
	FetchFailed IngestKind = iota + 1
	UploadFailed
)

func (k IngestKind) String() string {
	switch k {
	case FetchFailed:
		return "fetch failed"
	case UploadFailed:
		return "upload failed"
	default:
		return "ingest failed"
	}
}

// IngestError is returned for every failed ingestion. The caller falls back
// to the ephemeral URL (or drops the photo) and must not record an asset.
type IngestError struct {
	Kind      IngestKind
	SourceURL string
	Path      string
	Err       error
}

func (e *IngestError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s for %s (%s): %v", e.Kind, e.SourceURL, e.Path, e.Err)
	}
	return fmt.Sprintf("%s for %s: %v", e.Kind, e.SourceURL, e.Err)
}

func (e *IngestError) Unwrap() []error {
	sentinel := apperrors.ErrFetchFailed
	if e.Kind == UploadFailed {
		sentinel = apperrors.ErrUploadFailed
	}
	return []error{sentinel, e.Err}
}

// Result of a successful ingestion.
type Result struct {
	PublicURL    string
	Path         string
	Fingerprint  string
	Deduplicated bool // no new object was written
	Asset        persona.MediaAsset
}

type Options struct {
	FetchTimeout  time.Duration
	UploadTimeout time.Duration
	MaxBytes      int64
	AllowLocalIPs bool
	PathPrefix    string
}

// Ingester moves generator-hosted images into durable storage. It keeps no
// per-request state, so concurrent calls need no coordination: identical
// bytes map to the same path and the store treats the second write as a
// duplicate.
type Ingester struct {
	fetcher       *Fetcher
	store         ObjectStore
	index         Index
	uploadTimeout time.Duration
	pathPrefix    string
}

func NewIngester(store ObjectStore, index Index, opts Options) *Ingester {
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 30 * time.Second
	}
	if opts.PathPrefix == "" {
		opts.PathPrefix = "personas"
	}
	return &Ingester{
		fetcher: NewFetcher(FetcherOptions{
			Timeout:       opts.FetchTimeout,
			MaxBytes:      opts.MaxBytes,
			AllowLocalIPs: opts.AllowLocalIPs,
		}),
		store:         store,
		index:         index,
		uploadTimeout: opts.UploadTimeout,
		pathPrefix:    opts.PathPrefix,
	}
}

// Fingerprint is the first 16 hex chars of the sha256 of the bytes. Collisions
// are assumed negligible at this corpus size.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// StoragePath derives the deterministic object path for an image.
func (i *Ingester) StoragePath(personaID string, photoType persona.PhotoType, fingerprint, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%s%s", i.pathPrefix, personaID, photoType.Slug(), fingerprint, ext)
}

// Ingest fetches sourceURL once, stores it under a content-addressed path and
// returns the durable public URL. At most one object is written per call.
func (i *Ingester) Ingest(ctx context.Context, sourceURL, personaID string, photoType persona.PhotoType) (*Result, error) {
	if !persona.ValidID(personaID) {
		return nil, &apperrors.ValidationError{Field: "persona_id", Value: personaID, Message: "must match [a-zA-Z0-9_-]+"}
	}
	if !photoType.Valid() {
		return nil, &apperrors.ValidationError{Field: "photo_type", Value: int(photoType), Message: "unknown photo type"}
	}

	fetched, err := i.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, &IngestError{Kind: FetchFailed, SourceURL: sourceURL, Err: err}
	}

	detected, err := detect(fetched.Data, fetched.ContentType)
	if err != nil {
		return nil, &IngestError{Kind: FetchFailed, SourceURL: sourceURL, Err: err}
	}

	fp := Fingerprint(fetched.Data)
	path := i.StoragePath(personaID, photoType, fp, detected.Extension)

	result := &Result{
		Path:        path,
		Fingerprint: fp,
		Asset: persona.MediaAsset{
			PersonaID:   personaID,
			PhotoType:   photoType,
			Fingerprint: fp,
			Path:        path,
			ContentType: detected.ContentType,
			Width:       detected.Width,
			Height:      detected.Height,
			Size:        int64(len(fetched.Data)),
		},
	}

	if publicURL, ok := i.lookupIndex(ctx, path); ok {
		result.PublicURL = publicURL
		result.Deduplicated = true
		result.Asset.PublicURL = publicURL
		log.Printf("Media index hit for %s, skipping upload", path)
		return result, nil
	}

	// Once the bytes are in hand the write is allowed to finish even if the
	// caller has gone away; it is idempotent.
	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.uploadTimeout)
	defer cancel()

	outcome, err := i.store.Upload(uploadCtx, path, fetched.Data, detected.ContentType)
	if err != nil {
		return nil, &IngestError{Kind: UploadFailed, SourceURL: sourceURL, Path: path, Err: err}
	}

	publicURL, err := i.store.PublicURL(path)
	if err != nil {
		return nil, &IngestError{Kind: UploadFailed, SourceURL: sourceURL, Path: path, Err: fmt.Errorf("resolve public url: %w", err)}
	}

	result.PublicURL = publicURL
	result.Deduplicated = outcome == UploadDuplicate
	result.Asset.PublicURL = publicURL

	if i.index != nil {
		if err := i.index.Remember(uploadCtx, path, publicURL); err != nil {
			log.Printf("Error remembering media path %s: %v", path, err)
		}
	}

	log.Printf("Ingested %s -> %s (%s, %d bytes, %s)", personaID, path, detected.ContentType, len(fetched.Data), outcome)
	return result, nil
}

func (i *Ingester) lookupIndex(ctx context.Context, path string) (string, bool) {
	if i.index == nil {
		return "", false
	}
	publicURL, ok, err := i.index.Lookup(ctx, path)
	if err != nil {
		log.Printf("Error checking media index for %s: %v", path, err)
		return "", false
	}
	return publicURL, ok && publicURL != ""
}
