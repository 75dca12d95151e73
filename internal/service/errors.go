package service

import "errors"

// Sentinel errors for the pipeline core. Callers branch with errors.Is; the
// wrapped message carries the offending identifiers.
var (
	// ErrThreadNotFound is returned when no thread exists for a root id.
	ErrThreadNotFound = errors.New("thread not found")
	// ErrTranslationNotFound is returned when no translation exists for a root id.
	ErrTranslationNotFound = errors.New("translation not found")
	// ErrAlreadyPublished guards the publish-once policy.
	ErrAlreadyPublished = errors.New("translation has already been published")
	// ErrUnknownHandler is returned by Enqueue when no handler is registered
	// for the requested job name.
	ErrUnknownHandler = errors.New("no handler registered for job")
	// ErrUnknownProfile is returned when a publishing profile name is not configured.
	ErrUnknownProfile = errors.New("publishing profile is not defined")
	// ErrProfileMisconfigured is returned when a configured profile is missing
	// credential fields.
	ErrProfileMisconfigured = errors.New("publishing profile is misconfigured")

	// Plan reconciliation failures. Threads and translations evolve
	// independently, so every drift case gets its own sentinel.
	ErrDuplicateSegment        = errors.New("duplicate translation segment")
	ErrMissingTranslation      = errors.New("missing translations for segments")
	ErrUnknownSegmentReference = errors.New("translations reference unknown segments")
	ErrNoTitles                = errors.New("no titles available for this translation")
	ErrTitleIndexOutOfRange    = errors.New("title index is out of range")
	ErrTextTooLong             = errors.New("post text exceeds platform length limit")
)
