// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This file holds the Cloud Storage models: the Pub/Sub notification payload
// sent on object changes, the gs:// URI helpers and the V4 URL signer used to
// hand result viewers a temporary link to the source video.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
)

// GetGCSObjectName is the chain context key holding the *GCSObject being
// ingested.
func GetGCSObjectName() string {
	return "__GCS__OBJ__"
}

// GCSPubSubNotification is the JSON payload of a Cloud Storage notification.
type GCSPubSubNotification struct {
	Kind        string                 `json:"kind"`
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Bucket      string                 `json:"bucket"`
	Generation  string                 `json:"generation"`
	ContentType string                 `json:"contentType"`
	TimeCreated string                 `json:"timeCreated"`
	Updated     string                 `json:"updated"`
	Size        string                 `json:"size"`
	MD5Hash     string                 `json:"md5Hash"`
	MediaLink   string                 `json:"mediaLink"`
	MetaData    map[string]interface{} `json:"metadata"`
}

// GCSObject is the part of a notification the ingest workflow passes along.
type GCSObject struct {
	Bucket   string
	Name     string
	MIMEType string
	MetaData map[string]interface{}
}

// URI renders the object as gs://bucket/name.
func (o *GCSObject) URI() string {
	return fmt.Sprintf("gs://%s/%s", o.Bucket, o.Name)
}

// ParseGCSURI splits gs://bucket/path/to/object.
func ParseGCSURI(uri string) (bucket string, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URI: %q", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs:// URI must name a bucket and an object: %q", uri)
	}
	return bucket, object, nil
}

// URLSigner issues V4 signed GET URLs for Cloud Storage objects. Signing goes
// through the IAM credentials API so no private key has to be on disk.
type URLSigner struct {
	iam            *credentials.IamCredentialsClient
	serviceAccount string
	ttl            time.Duration
}

func NewURLSigner(iam *credentials.IamCredentialsClient, serviceAccount string, ttl time.Duration) *URLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &URLSigner{iam: iam, serviceAccount: serviceAccount, ttl: ttl}
}

// SignURL returns a signed URL for a gs:// URI.
func (s *URLSigner) SignURL(ctx context.Context, uri string) (string, error) {
	if s == nil || s.iam == nil || s.serviceAccount == "" {
		return "", errors.New("url signing is not configured")
	}
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return "", err
	}
	return storage.SignedURL(bucket, object, &storage.SignedURLOptions{
		GoogleAccessID: s.serviceAccount,
		Method:         "GET",
		Expires:        time.Now().Add(s.ttl),
		Scheme:         storage.SigningSchemeV4,
		SignBytes: func(payload []byte) ([]byte, error) {
			resp, err := s.iam.SignBlob(ctx, &credentialspb.SignBlobRequest{
				Name:    "projects/-/serviceAccounts/" + s.serviceAccount,
				Payload: payload,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to sign url: %w", err)
			}
			return resp.SignedBlob, nil
		},
	})
}
