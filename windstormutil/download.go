/*
Copyright © 2019 the windstorm authors.
This file is part of windstorm.

windstorm is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

windstorm is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with windstorm.  If not, see <http://www.gnu.org/licenses/>.
*/


package windstormutil

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/google/go-cloud/blob/gcsblob"
	"github.com/google/go-cloud/blob/s3blob"
	"github.com/google/go-cloud/gcp"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/windstorm/internal/hash"
)

// downloader fetches remote input files into a temporary directory.
type downloader struct {
	dir string
	log logrus.FieldLogger

	// newBackOff returns the retry policy for each download.
	newBackOff func() backoff.BackOff
}

func newDownloader(log logrus.FieldLogger) *downloader {
	return &downloader{
		log: log,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(
				backoff.WithMaxElapsedTime(2 * time.Minute),
			)
		},
	}
}

// maybeDownload checks if the input is an existing file locally.
// If not, it checks if the file is a URL or a blob storage location.
// If it is, it downloads the file and returns the path to the
// downloaded file. Other paths are returned unchanged.
func (d *downloader) maybeDownload(ctx context.Context, path string) (string, error) {
	// Check if local file exists. If it does, return the given path.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return d.fetch(ctx, path, func(w io.Writer) error { return downloadHTTP(ctx, path, w) })
	}
	if IsBlob(path) {
		return d.fetch(ctx, path, func(w io.Writer) error { return downloadBlob(ctx, path, w) })
	}
	return path, nil
}

// localName returns a location in dir for a copy of the remote file
// path. Files with the same base name in different remote directories
// get different local directories.
func localName(dir, path string) (string, error) {
	sub := filepath.Join(dir, hash.Hash(path))
	if err := os.MkdirAll(sub, os.ModePerm); err != nil {
		return "", err
	}
	return filepath.Join(sub, filepath.Base(path)), nil
}

// fetch creates a local file named after path and fills it using get,
// retrying failures.
func (d *downloader) fetch(ctx context.Context, path string, get func(io.Writer) error) (string, error) {
	if d.dir == "" {
		dir, err := ioutil.TempDir("", "windstorm")
		if err != nil {
			return "", fmt.Errorf("windstormutil: creating temporary download directory: %v", err)
		}
		d.dir = dir
	}
	local, err := localName(d.dir, path)
	if err != nil {
		return "", fmt.Errorf("windstormutil: downloading %s: %v", path, err)
	}
	op := func() error {
		w, err := os.Create(local)
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := get(w); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	}
	notify := func(err error, wait time.Duration) {
		d.log.WithFields(logrus.Fields{
			"path": path,
			"wait": wait,
		}).Warnf("download failed, retrying: %v", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(d.newBackOff(), ctx), notify); err != nil {
		return "", fmt.Errorf("windstormutil: downloading %s: %v", path, err)
	}
	d.log.WithFields(logrus.Fields{"path": path, "local": local}).Debug("downloaded input file")
	return local, nil
}

// cleanup removes the downloaded files.
func (d *downloader) cleanup() error {
	if d.dir == "" {
		return nil
	}
	return os.RemoveAll(d.dir)
}

// downloadHTTP copies the file at the specified URL to w.
func downloadHTTP(ctx context.Context, path string, w io.Writer) error {
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("server returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return backoff.Permanent(fmt.Errorf("server returned %s", resp.Status))
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// IsBlob returns whether the given filename represents a blob.
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// splitBlob returns the bucket name and key of a blob path.
func splitBlob(path string) (bucket, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", err
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("windstormutil: blob path %s has no key", path)
	}
	return u.Scheme + "://" + u.Host, key, nil
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name' where provider
// is the name of the storage provider and name is the name of the bucket.
// The currently accepted storage providers are "file" for the local filesystem
// (e.g., for testing), "gs" for Google Cloud Storage, and "s3" for AWS S3.
// For "file", name is a directory relative to the working directory.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	url, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("windstormutil.OpenBucket: %v", err)
	}
	switch url.Scheme {
	case "file":
		return fileblob.NewBucket(url.Hostname())
	case "gs":
		return gsBucket(ctx, url.Hostname())
	case "s3":
		return s3Bucket(ctx, url.Hostname())
	default:
		return nil, fmt.Errorf("windstormutil.OpenBucket: invalid provider %s", url.Scheme)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	// See here for information on credentials:
	// https://cloud.google.com/docs/authentication/getting-started
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, name, c)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "eu-west-1"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, err
	}
	return s3blob.OpenBucket(ctx, s, name)
}

// downloadBlob copies the specified file from blob storage to w.
func downloadBlob(ctx context.Context, path string, w io.Writer) error {
	bucketName, key, err := splitBlob(path)
	if err != nil {
		return backoff.Permanent(err)
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return backoff.Permanent(err)
	}
	r, err := bucket.NewReader(ctx, key)
	if err != nil {
		return backoff.Permanent(err)
	}
	defer r.Close()
	_, err = io.Copy(w, r)
	return err
}
