// Package storage archives spoken clips to Supabase Storage so a session's
// narration can be replayed later. Archival is best-effort and optional.
package storage

import (
	"bytes"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// Archive uploads clips to a Supabase bucket.
type Archive struct {
	client *supabase.Client
	bucket string
}

// New returns nil (disabled archive) when the config is incomplete.
func New(config Config) (*Archive, error) {
	if config.URL == "" || config.ServiceRoleKey == "" {
		return nil, nil
	}
	client, err := supabase.NewClient(config.URL, config.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Archive{client: client, bucket: config.Bucket}, nil
}

// Upload stores clip bytes under key. A nil Archive silently succeeds.
func (a *Archive) Upload(key string, data []byte) error {
	if a == nil {
		return nil
	}
	if _, err := a.client.Storage.UploadFile(a.bucket, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("upload clip to supabase: %w", err)
	}
	return nil
}
