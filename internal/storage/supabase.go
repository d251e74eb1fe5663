package storage

import (
	"bytes"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// Config identifies the Supabase project and bucket recordings land in.
type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// Supabase uploads call artifacts to a Supabase storage bucket.
type Supabase struct {
	client *supabase.Client
	bucket string
}

func New(cfg Config) (*Supabase, error) {
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Supabase{client: client, bucket: cfg.Bucket}, nil
}

// Upload stores one object in the bucket.
func (s *Supabase) Upload(objectKey string, contentType string, body []byte) error {
	_, err := s.client.Storage.UploadFile(s.bucket, objectKey, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("upload %s to supabase: %w", objectKey, err)
	}
	return nil
}
