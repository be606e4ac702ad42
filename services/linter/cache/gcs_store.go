// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore is a Store backed by a Google Cloud Storage prefix.
//
// Each entry is one JSON object named <prefix>/<key>.json. Lets CI runners
// share a cache.
//
// Thread Safety: Safe for concurrent use.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// ParseGCSLocation splits "gs://bucket/some/prefix" into bucket and prefix.
func ParseGCSLocation(location string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(location, "gs://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not a gs:// URL", ErrInvalidLocation, location)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: %q has no bucket", ErrInvalidLocation, location)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// NewGCSStore connects to the bucket named by location.
//
// Inputs:
//
//	ctx             - Context for client creation.
//	location        - "gs://bucket/prefix".
//	credentialsFile - Optional service-account key. Empty uses
//	                  application default credentials.
//
// Outputs:
//
//	*GCSStore - The store. Caller must Close it.
//	error     - Non-nil if the location is invalid or the client fails.
func NewGCSStore(ctx context.Context, location, credentialsFile string) (*GCSStore, error) {
	bucket, prefix, err := ParseGCSLocation(location)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSStore) objectName(key Key) string {
	return path.Join(s.prefix, key.String()+".json")
}

// Get reads the entry object for key. A missing object is a miss.
func (s *GCSStore) Get(ctx context.Context, key Key) (Entry, bool, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.objectName(key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	defer r.Close()

	var entry Entry
	if err := json.NewDecoder(r).Decode(&entry); err != nil {
		return Entry{}, false, fmt.Errorf("decoding gs://%s/%s: %w", s.bucket, s.objectName(key), err)
	}
	return entry, true, nil
}

// Set writes the entry object for key, replacing any previous object.
func (s *GCSStore) Set(ctx context.Context, key Key, entry Entry) error {
	name := s.objectName(key)

	writer := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if err := json.NewEncoder(writer).Encode(entry); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write GCS object %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", name, err)
	}
	return nil
}

// Clear deletes every entry object under the prefix.
func (s *GCSStore) Clear(ctx context.Context) error {
	query := &storage.Query{Prefix: s.prefix}
	if s.prefix != "" {
		query.Prefix = s.prefix + "/"
	}

	bucket := s.client.Bucket(s.bucket)
	it := bucket.Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("listing gs://%s/%s: %w", s.bucket, s.prefix, err)
		}
		if !strings.HasSuffix(attrs.Name, ".json") {
			continue
		}
		if err := bucket.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("deleting gs://%s/%s: %w", s.bucket, attrs.Name, err)
		}
	}
}

// Close closes the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
